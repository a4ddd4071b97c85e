package pathsync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

// Outcome is the result of comparing a source file with its destination counterpart.
type Outcome int

const (
	// OutcomeNew: the path exists only in the source.
	OutcomeNew Outcome = iota
	// OutcomeSourceNewer: the source modification time is later.
	OutcomeSourceNewer
	// OutcomeDestNewer: the destination modification time is later.
	OutcomeDestNewer
	// OutcomeIdentical: the modification times are equal (within the window).
	OutcomeIdentical
)

var outcomeToString = map[Outcome]string{
	OutcomeNew:         "new",
	OutcomeSourceNewer: "source-newer",
	OutcomeDestNewer:   "dest-newer",
	OutcomeIdentical:   "identical",
}

func (o Outcome) String() string {
	if s, ok := outcomeToString[o]; ok {
		return s
	}
	return fmt.Sprintf("unknown_outcome(%d)", o)
}

// MarshalJSON implements the json.Marshaler interface.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// FileMeta is the metadata the diff decision is based on.
type FileMeta struct {
	Size    int64
	ModTime time.Time
}

func metaOf(info os.FileInfo) FileMeta {
	return FileMeta{Size: info.Size(), ModTime: info.ModTime()}
}

// Classify compares a file present on both sides and reports the outcome and
// whether it must be copied:
//
//	source newer                          -> copy
//	destination newer                     -> copy only with Force
//	equal mtime, OverwriteExisting        -> copy
//	equal mtime, sizes differ             -> copy
//	equal mtime, equal size               -> skip
func Classify(src, dst FileMeta, plan Plan) (Outcome, bool) {
	switch compareModTime(src.ModTime, dst.ModTime, plan.ModTimeWindow) {
	case 1:
		return OutcomeSourceNewer, true
	case -1:
		return OutcomeDestNewer, plan.Force
	default:
		return OutcomeIdentical, plan.OverwriteExisting || src.Size != dst.Size
	}
}

// compareModTime returns 1 if a is later than b, -1 if earlier and 0 if they
// are equal or within window of each other.
func compareModTime(a, b time.Time, window time.Duration) int {
	d := a.Sub(b)
	switch {
	case d > window:
		return 1
	case d < -window:
		return -1
	default:
		return 0
	}
}

// diffWorker pops source paths until the source queue is empty. Several
// diffWorkers share the queue, so the work balances itself.
func (r *syncRun) diffWorker(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		relPath, ok := r.srcFiles.TryPop()
		if !ok {
			return nil
		}
		r.diffPath(relPath)
	}
}

// diffPath decides copy or skip for one source file and, if the destination
// has the same path, removes it from the destination set. Whatever is left in
// that set afterwards exists only in the destination.
func (r *syncRun) diffPath(relPath string) {
	srcInfo, srcErr := os.Stat(filepath.Join(r.src, relPath))
	if srcErr != nil {
		r.errs.Add(MetadataError, relPath, fmt.Errorf("failed to stat source file: %w", srcErr))
	}
	var size int64
	if srcErr == nil {
		size = srcInfo.Size()
	}

	if !r.dstFiles.Take(relPath) {
		r.enqueueCopy(relPath, size, OutcomeNew)
		return
	}

	dstInfo, dstErr := os.Stat(filepath.Join(r.dst, relPath))
	if dstErr != nil {
		r.errs.Add(MetadataError, relPath, fmt.Errorf("failed to stat destination file: %w", dstErr))
	}
	if srcErr != nil || dstErr != nil {
		// Without metadata the file cannot be proven up to date.
		r.enqueueCopy(relPath, size, OutcomeSourceNewer)
		return
	}

	outcome, needsCopy := Classify(metaOf(srcInfo), metaOf(dstInfo), r.plan)
	if needsCopy {
		r.enqueueCopy(relPath, size, outcome)
		return
	}
	r.progress.FilesUpToDate.Add(1)
	plog.Debug("SKIP", "path", relPath, "outcome", outcome)
}

// enqueueCopy counts the file and its size at enqueue time, then hands it to
// the transfer workers.
func (r *syncRun) enqueueCopy(relPath string, size int64, outcome Outcome) {
	r.progress.BytesToCopy.Add(size)
	r.progress.FilesToCopy.Add(1)
	r.copyQueue.Push(Task{Kind: TaskCopy, RelPath: relPath, Size: size, Outcome: outcome})
}
