// Package pathsync synchronizes a destination directory tree with a source tree.
//
// A run goes through these phases:
//
//  1. Index: both roots are walked concurrently, following symlinks.
//  2. Normalize: four concurrent passes strip the root prefixes and fill the
//     source-file queue and the source-dir, dest-file and dest-dir sets.
//  3. Reconcile: missing destination directories are created before any file
//     is transferred.
//  4. Diff and transfer: diff workers pop source files and enqueue copies while
//     the transfer workers drain the queue. Leftover destination files become
//     delete tasks when DeleteWithoutMatch is set.
//  5. Completion: both queues are closed, the workers drain them and exit, and
//     destination-only directories are removed deepest first.
//
// Only a failure to prepare the destination root is fatal. Every other failure
// is recorded in the run's ErrorLog and the run carries on.
package pathsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/pool"
	"github.com/paulschiretz/pgl-sync/pkg/preflight"
	"github.com/paulschiretz/pgl-sync/pkg/sharded"
	"github.com/paulschiretz/pgl-sync/pkg/workqueue"
)

// minBufferSize is the smallest copy buffer handed out for tiny files.
const minBufferSize = 4 * 1024

// Syncer starts sync runs. It holds no per-run state, so one Syncer can drive
// any number of runs, sequentially or concurrently.
type Syncer struct {
	pollInterval time.Duration
}

// NewSyncer returns a Syncer with default settings.
func NewSyncer() *Syncer {
	return &Syncer{pollInterval: defaultPollInterval}
}

// syncRun is the state of a single run. Every phase works on it explicitly;
// nothing is shared between runs.
type syncRun struct {
	src, dst     string
	plan         Plan
	excl         exclusionSet
	pollInterval time.Duration

	progress *Progress
	errs     *ErrorLog
	buffers  *pool.BufferPool

	// Populated by the normalizer, then consumed by the later phases.
	srcFiles *workqueue.Queue[string]
	srcDirs  *sharded.Set
	dstFiles *sharded.Set
	dstDirs  *sharded.Set

	signal      *workqueue.Signal
	copyQueue   *workqueue.Queue[Task]
	deleteQueue *workqueue.Queue[Task]

	dirGroup   singleflight.Group
	dirsReady  *sharded.Set
	dirsFailed *sharded.Map[error]

	// Filesystem primitives of the transfer workers.
	copyOnce func(absSrc, absDst string, info os.FileInfo) (int64, error)
	rename   func(oldPath, newPath string) error

	// doneDiffing is set once every diff worker and the delete producer have
	// returned; the queues are closed right after.
	doneDiffing atomic.Bool
}

// Run is the handle of a started sync.
type Run struct {
	ID          string
	Source      string
	Destination string
	Plan        Plan
	StartedAt   time.Time

	sr       *syncRun
	done     chan struct{}
	finished atomic.Bool
	err      error
	endedAt  time.Time
}

// Start validates the plan, prepares the destination root and launches the
// run in the background. Errors returned here are fatal: nothing was
// transferred. The plan is copied; later changes to it have no effect.
func (s *Syncer) Start(ctx context.Context, src, dst string, plan Plan) (*Run, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync plan: %w", err)
	}
	plan = plan.withDefaults()

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source path %s: %w", src, err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination path %s: %w", dst, err)
	}

	if err := preflight.CheckSourceAccessible(absSrc); err != nil {
		return nil, err
	}
	if err := preflight.CheckPathNesting(absSrc, absDst); err != nil {
		return nil, err
	}
	if err := preflight.CheckTargetAccessible(absDst); err != nil {
		return nil, err
	}
	if !plan.DryRun {
		if err := preflight.EnsureTargetRoot(absDst); err != nil {
			return nil, err
		}
	}

	sr := newSyncRun(absSrc, absDst, plan, s.pollInterval)
	run := &Run{
		ID:          uuid.NewString(),
		Source:      absSrc,
		Destination: absDst,
		Plan:        plan,
		StartedAt:   time.Now(),
		sr:          sr,
		done:        make(chan struct{}),
	}

	go func() {
		err := sr.execute(ctx)
		run.endedAt = time.Now()
		run.err = err
		run.finished.Store(true)
		close(run.done)
	}()
	return run, nil
}

// Copy runs a sync to completion. The returned Run is non-nil whenever the
// sync got past Start, even if it ended with an error.
func (s *Syncer) Copy(ctx context.Context, src, dst string, plan Plan) (*Run, error) {
	run, err := s.Start(ctx, src, dst, plan)
	if err != nil {
		return nil, err
	}
	return run, run.Wait()
}

// IsFinished reports, without blocking, whether all workers have joined.
func (r *Run) IsFinished() bool {
	return r.finished.Load()
}

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run has finished. It returns a non-nil error only if
// the run was cancelled; per-file failures are in Errors.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Progress returns the current counters.
func (r *Run) Progress() ProgressSnapshot {
	return r.sr.progress.Snapshot()
}

// Errors returns the failures recorded so far.
func (r *Run) Errors() []ErrorRecord {
	return r.sr.errs.Records()
}

// Duration is the run time so far, or the total once finished.
func (r *Run) Duration() time.Duration {
	if r.IsFinished() {
		return r.endedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

func newSyncRun(src, dst string, plan Plan, pollInterval time.Duration) *syncRun {
	signal := workqueue.NewSignal()
	r := &syncRun{
		src:          src,
		dst:          dst,
		plan:         plan,
		excl:         makeExclusionSet(plan.Excludes),
		pollInterval: pollInterval,
		progress:     &Progress{},
		errs:         &ErrorLog{},
		buffers:      pool.NewBufferPool(minBufferSize, int64(plan.BufferSizeKB)*1024),
		srcFiles:     workqueue.New[string](nil),
		srcDirs:      sharded.NewSet(),
		dstFiles:     sharded.NewSet(),
		dstDirs:      sharded.NewSet(),
		signal:       signal,
		copyQueue:    workqueue.New[Task](signal),
		deleteQueue:  workqueue.New[Task](signal),
		dirsReady:    sharded.NewSet(),
		dirsFailed:   sharded.NewMap[error](),
		rename:       os.Rename,
	}
	r.copyOnce = r.copyFileOnce
	return r
}

// execute runs all phases. It returns only cancellation errors.
func (r *syncRun) execute(ctx context.Context) error {
	start := time.Now()
	plog.Info("Starting sync", "from", r.src, "to", r.dst, "workers", r.plan.Workers, "dry_run", r.plan.DryRun)

	r.progress.StartProgress("Sync progress", r.plan.ProgressInterval)
	defer r.progress.StopProgress()

	if err := r.indexAndNormalize(ctx); err != nil {
		return err
	}
	if err := r.reconcileDirectories(ctx); err != nil {
		return err
	}

	// Transfer workers start before the diff so copying overlaps classification.
	var workers errgroup.Group
	for range r.plan.Workers {
		workers.Go(func() error { return r.transferWorker(ctx) })
	}

	var producers errgroup.Group
	for range r.plan.DiffWorkers {
		producers.Go(func() error { return r.diffWorker(ctx) })
	}
	diffErr := producers.Wait()
	if diffErr == nil && r.plan.DeleteWithoutMatch {
		r.enqueueDeletes()
	}
	r.doneDiffing.Store(true)
	r.copyQueue.Close()
	r.deleteQueue.Close()

	workErr := workers.Wait()
	if err := errors.Join(diffErr, workErr); err != nil {
		return err
	}

	if r.plan.DeleteWithoutMatch {
		if err := r.removeOrphanDirs(ctx); err != nil {
			return err
		}
	}

	r.progress.LogSummary("Sync finished", time.Since(start))
	if n := r.errs.Len(); n > 0 {
		plog.Warn(fmt.Sprintf("%d non-fatal errors occurred during sync", n),
			"scan", r.errs.CountKind(ScanError),
			"metadata", r.errs.CountKind(MetadataError),
			"copy", r.errs.CountKind(CopyError),
			"move", r.errs.CountKind(MoveError),
			"delete", r.errs.CountKind(DeleteError),
			"dir_create", r.errs.CountKind(DirectoryCreateError),
			"dir_delete", r.errs.CountKind(DirectoryDeleteError))
	}
	return nil
}

// indexAndNormalize indexes both roots in parallel and then runs the four
// normalization passes in parallel. The errgroup waits are the phase barriers.
func (r *syncRun) indexAndNormalize(ctx context.Context) error {
	var srcIndex, dstIndex IndexResult
	var g errgroup.Group
	g.Go(func() (err error) {
		srcIndex, err = index(ctx, r.src, &r.excl, r.errs, r.progress)
		return err
	})
	g.Go(func() (err error) {
		if r.plan.DryRun && !dirExists(r.dst) {
			return nil
		}
		dstIndex, err = index(ctx, r.dst, &r.excl, r.errs, r.progress)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	plog.Info("Indexed trees",
		"source_files", len(srcIndex.Files), "source_dirs", len(srcIndex.Dirs),
		"dest_files", len(dstIndex.Files), "dest_dirs", len(dstIndex.Dirs))

	srcPrefix, dstPrefix := PrefixLength(r.src), PrefixLength(r.dst)
	var n errgroup.Group
	n.Go(func() error { Normalize(srcIndex.Files, srcPrefix, queueSink{r.srcFiles}); return nil })
	n.Go(func() error { Normalize(srcIndex.Dirs, srcPrefix, r.srcDirs); return nil })
	n.Go(func() error { Normalize(dstIndex.Files, dstPrefix, r.dstFiles); return nil })
	n.Go(func() error { Normalize(dstIndex.Dirs, dstPrefix, r.dstDirs); return nil })
	if err := n.Wait(); err != nil {
		return err
	}
	r.srcFiles.Close()
	return ctx.Err()
}

// enqueueDeletes turns the destination files nobody matched into delete tasks.
func (r *syncRun) enqueueDeletes() {
	for _, relPath := range r.dstFiles.Keys() {
		r.progress.FilesToDelete.Add(1)
		r.deleteQueue.Push(Task{Kind: TaskDelete, RelPath: relPath})
	}
}
