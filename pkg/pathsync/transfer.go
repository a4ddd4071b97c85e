package pathsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
	"github.com/paulschiretz/pgl-sync/pkg/workqueue"
)

// TaskKind tags a Task.
type TaskKind int

const (
	TaskCopy TaskKind = iota
	TaskDelete
)

func (k TaskKind) String() string {
	switch k {
	case TaskCopy:
		return "copy"
	case TaskDelete:
		return "delete"
	default:
		return fmt.Sprintf("unknown_task(%d)", int(k))
	}
}

// Task is one unit of transfer work. Once queued it is handled by exactly one worker.
type Task struct {
	Kind    TaskKind
	RelPath string
	// Size is the source size measured when the copy was enqueued.
	Size    int64
	Outcome Outcome
}

// transferWorker drains the copy and delete queues. It exits once both queues
// are closed and empty, or when ctx is cancelled. While idle it waits for a
// push notification, bounded by the poll interval.
func (r *syncRun) transferWorker(ctx context.Context) error {
	for {
		wake := r.signal.C()
		if err := ctx.Err(); err != nil {
			return err
		}
		if task, ok := r.copyQueue.TryPop(); ok {
			r.runTask(ctx, task)
			continue
		}
		if task, ok := r.deleteQueue.TryPop(); ok {
			r.runTask(ctx, task)
			continue
		}
		if r.queuesDrained() {
			return nil
		}
		if err := workqueue.Await(ctx, wake, r.pollInterval); err != nil {
			return err
		}
	}
}

// queuesDrained is true once no producer will push again and nothing is left.
// Each term is monotonic, so the conjunction cannot flip back to false.
func (r *syncRun) queuesDrained() bool {
	return r.doneDiffing.Load() && r.copyQueue.Drained() && r.deleteQueue.Drained()
}

// runTask executes one task. Any failure, including a panic, ends up in the
// error log and never stops the worker.
func (r *syncRun) runTask(ctx context.Context, task Task) {
	defer func() {
		if p := recover(); p != nil {
			r.errs.Add(task.errorKind(r.plan.Move), task.RelPath, fmt.Errorf("panic during %s: %v", task.Kind, p))
		}
	}()

	switch task.Kind {
	case TaskCopy:
		r.processCopy(ctx, task)
	case TaskDelete:
		r.processDelete(task)
	}
}

func (t Task) errorKind(move bool) ErrorKind {
	switch {
	case t.Kind == TaskDelete:
		return DeleteError
	case move:
		return MoveError
	default:
		return CopyError
	}
}

func (r *syncRun) processCopy(ctx context.Context, task Task) {
	absSrc := filepath.Join(r.src, task.RelPath)
	absDst := filepath.Join(r.dst, task.RelPath)

	if r.plan.DryRun {
		if r.plan.Move {
			plog.Notice("[DRY RUN] MOVE", "path", task.RelPath, "reason", task.Outcome)
		} else {
			plog.Notice("[DRY RUN] COPY", "path", task.RelPath, "reason", task.Outcome)
		}
		return
	}

	// The reconciler has normally settled the parent already. A remembered
	// failure fails the copy without touching the disk.
	if parent := filepath.Dir(task.RelPath); parent != "." {
		if err := r.ensureDir(parent); err != nil {
			r.errs.Add(task.errorKind(r.plan.Move), task.RelPath, fmt.Errorf("destination directory %s is unavailable: %w", parent, err))
			return
		}
	}

	if r.plan.Move {
		n, err := r.moveFile(ctx, absSrc, absDst, task.RelPath)
		if err != nil {
			r.errs.Add(MoveError, task.RelPath, err)
			return
		}
		plog.Notice("MOVE", "path", task.RelPath, "reason", task.Outcome)
		r.progress.FilesCopied.Add(1)
		r.progress.BytesCopied.Add(n)
		return
	}

	n, err := r.copyFile(ctx, absSrc, absDst, task.RelPath)
	if err != nil {
		r.errs.Add(CopyError, task.RelPath, err)
		return
	}
	plog.Notice("COPY", "path", task.RelPath, "reason", task.Outcome)
	r.progress.FilesCopied.Add(1)
	r.progress.BytesCopied.Add(n)
}

func (r *syncRun) processDelete(task Task) {
	if r.plan.DryRun {
		plog.Notice("[DRY RUN] DELETE", "path", task.RelPath)
		return
	}
	err := os.Remove(filepath.Join(r.dst, task.RelPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.errs.Add(DeleteError, task.RelPath, fmt.Errorf("failed to delete file: %w", err))
		return
	}
	if err != nil {
		plog.Debug("File already removed", "path", task.RelPath)
		return
	}
	plog.Notice("DELETE", "path", task.RelPath)
	r.progress.FilesDeleted.Add(1)
}

// moveFile renames absSrc onto absDst. Across filesystems it falls back to a
// copy followed by removing the source.
func (r *syncRun) moveFile(ctx context.Context, absSrc, absDst, relPath string) (int64, error) {
	info, err := os.Stat(absSrc)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file %s: %w", absSrc, err)
	}

	err = r.rename(absSrc, absDst)
	if err == nil {
		return info.Size(), nil
	}
	if !isCrossDevice(err) {
		return 0, fmt.Errorf("failed to move %s to %s: %w", absSrc, absDst, err)
	}

	plog.Debug("Cross-device move, copying instead", "path", relPath)
	n, err := r.copyFile(ctx, absSrc, absDst, relPath)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(absSrc); err != nil {
		return 0, fmt.Errorf("copied %s but failed to remove the source: %w", absSrc, err)
	}
	return n, nil
}

// copyFile copies absSrc to absDst through a temporary file and an atomic
// rename, retrying transient failures according to the plan.
func (r *syncRun) copyFile(ctx context.Context, absSrc, absDst, relPath string) (int64, error) {
	info, err := os.Stat(absSrc)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file %s: %w", absSrc, err)
	}

	operation := func() (int64, error) {
		n, err := r.copyOnce(absSrc, absDst, info)
		if err != nil && !isRetryable(err) {
			return 0, backoff.Permanent(err)
		}
		return n, err
	}

	n, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.plan.RetryWait)),
		backoff.WithMaxTries(uint(r.plan.RetryCount+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			plog.Warn("Retrying file copy", "path", relPath, "after", next, "error", err)
		}),
	)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// isRetryable filters out failures that another attempt cannot fix.
func isRetryable(err error) bool {
	switch ClassifyReason(err) {
	case ReasonNotFound, ReasonPermission, ReasonDiskFull:
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (r *syncRun) copyFileOnce(absSrc, absDst string, info os.FileInfo) (n int64, err error) {
	in, err := os.Open(absSrc)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", absSrc, err)
	}
	defer in.Close()

	absDstDir := filepath.Dir(absDst)
	out, err := os.CreateTemp(absDstDir, ".pgl-sync-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file in %s: %w", absDstDir, err)
	}
	absTempPath := out.Name()
	defer func() {
		if absTempPath != "" {
			out.Close()
			os.Remove(absTempPath)
		}
	}()

	bufPtr := r.buffers.ForFile(info.Size())
	defer r.buffers.Put(bufPtr)

	if n, err = io.CopyBuffer(out, in, *bufPtr); err != nil {
		return 0, fmt.Errorf("failed to copy content from %s to %s: %w", absSrc, absTempPath, err)
	}

	// The destination keeps the source mode plus owner write, so the next run
	// can replace it.
	if err := out.Chmod(util.WithUserWritePermission(info.Mode().Perm())); err != nil {
		return 0, fmt.Errorf("failed to set permissions on temporary file %s: %w", absTempPath, err)
	}
	// Close before Chtimes: flushing may touch the modification time.
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary file %s: %w", absTempPath, err)
	}
	if err := os.Chtimes(absTempPath, info.ModTime(), info.ModTime()); err != nil {
		return 0, fmt.Errorf("failed to set timestamps on %s: %w", absTempPath, err)
	}
	if err := os.Rename(absTempPath, absDst); err != nil {
		return 0, fmt.Errorf("failed to move temporary file into place at %s: %w", absDst, err)
	}
	absTempPath = ""
	return n, nil
}
