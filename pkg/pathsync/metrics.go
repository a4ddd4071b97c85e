package pathsync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// Progress holds the counters of one run. They only ever increase and are
// safe to read from any goroutine while the run is in progress.
type Progress struct {
	BytesToCopy  atomic.Int64
	BytesCopied  atomic.Int64
	FilesToCopy  atomic.Int64
	FilesCopied  atomic.Int64
	FilesDeleted atomic.Int64

	FilesUpToDate  atomic.Int64
	FilesToDelete  atomic.Int64
	DirsCreated    atomic.Int64
	DirsDeleted    atomic.Int64
	EntriesIndexed atomic.Int64

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	BytesToCopy    int64 `json:"bytesToCopy"`
	BytesCopied    int64 `json:"bytesCopied"`
	FilesToCopy    int64 `json:"filesToCopy"`
	FilesCopied    int64 `json:"filesCopied"`
	FilesDeleted   int64 `json:"filesDeleted"`
	FilesUpToDate  int64 `json:"filesUpToDate"`
	FilesToDelete  int64 `json:"filesToDelete"`
	DirsCreated    int64 `json:"dirsCreated"`
	DirsDeleted    int64 `json:"dirsDeleted"`
	EntriesIndexed int64 `json:"entriesIndexed"`
}

// Snapshot loads every counter. Individual counters are read atomically; the
// set as a whole is not a consistent cut while workers are running.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		BytesToCopy:    p.BytesToCopy.Load(),
		BytesCopied:    p.BytesCopied.Load(),
		FilesToCopy:    p.FilesToCopy.Load(),
		FilesCopied:    p.FilesCopied.Load(),
		FilesDeleted:   p.FilesDeleted.Load(),
		FilesUpToDate:  p.FilesUpToDate.Load(),
		FilesToDelete:  p.FilesToDelete.Load(),
		DirsCreated:    p.DirsCreated.Load(),
		DirsDeleted:    p.DirsDeleted.Load(),
		EntriesIndexed: p.EntriesIndexed.Load(),
	}
}

// LogSummary logs the counters with a custom message.
// It is called by the progress ticker and once at the end of a run.
func (p *Progress) LogSummary(msg string, elapsed time.Duration) {
	s := p.Snapshot()
	plog.Info(msg,
		"files_copied", s.FilesCopied,
		"files_to_copy", s.FilesToCopy,
		"bytes_copied", util.ByteCountIEC(s.BytesCopied),
		"bytes_to_copy", util.ByteCountIEC(s.BytesToCopy),
		"files_deleted", s.FilesDeleted,
		"files_uptodate", s.FilesUpToDate,
		"dirs_created", s.DirsCreated,
		"dirs_deleted", s.DirsDeleted,
		"duration", elapsed.Round(time.Millisecond),
	)
}

// StartProgress logs the counters every interval until StopProgress is called.
func (p *Progress) StartProgress(msg string, interval time.Duration) {
	if interval <= 0 {
		return
	}
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	start := time.Now()
	ticker := time.NewTicker(interval)
	go func() {
		defer close(p.doneChan)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.LogSummary(msg, time.Since(start))
			case <-p.stopChan:
				return
			}
		}
	}()
}

// StopProgress stops the ticker started by StartProgress and waits for it to exit.
func (p *Progress) StopProgress() {
	if p.stopChan == nil {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stopChan)
		<-p.doneChan
	})
}
