// Package lockfile guards a destination directory against concurrent syncs
// with an OS-level advisory lock. The lock dies with its process, so a crashed
// run never leaves a stale lock behind.
package lockfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// LockContent is written into the lock file for diagnostics only. Exclusion
// comes from the OS lock, not from the content.
type LockContent struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquiredAt"`
	AppID      string    `json:"appID"`
}

// ErrLockActive is returned when another process holds the lock.
type ErrLockActive struct {
	PID       int64
	Hostname  string
	AppID     string
	TimeSince time.Duration
}

// Error implements the error interface for ErrLockActive.
func (e *ErrLockActive) Error() string {
	if e.PID == 0 {
		return "lock is active, held by another process"
	}
	return fmt.Sprintf("lock is active, held by PID %d on host '%s' (App: %s), acquired %s ago", e.PID, e.Hostname, e.AppID, e.TimeSince.Truncate(time.Second))
}

// Lock is a held lock on a directory.
type Lock struct {
	path string
	fl   *flock.Flock

	mu   sync.Mutex
	held bool
}

// Acquire takes the lock for dirPath without waiting. It returns
// (nil, *ErrLockActive) if another process holds it.
func Acquire(ctx context.Context, dirPath string, appID string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absLockFilePath := filepath.Join(dirPath, buildinfo.LockFileName)
	fl := flock.New(absLockFilePath, flock.SetPermissions(util.UserWritableFilePerms))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to access lock file %s: %w", absLockFilePath, err)
	}
	if !locked {
		active := &ErrLockActive{}
		if content, readErr := readLockContent(absLockFilePath); readErr == nil {
			active.PID = content.PID
			active.Hostname = content.Hostname
			active.AppID = content.AppID
			active.TimeSince = time.Since(content.AcquiredAt)
		}
		return nil, active
	}

	hostname, _ := os.Hostname()
	content := LockContent{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
		AppID:      appID,
	}
	if err := writeLockContent(absLockFilePath, content); err != nil {
		// Some platforms refuse writes through a second handle to a locked file.
		plog.Debug("Could not write lock file content", "path", absLockFilePath, "error", err)
	}

	plog.Debug("Lock acquired", "path", absLockFilePath)
	return &Lock{path: absLockFilePath, fl: fl, held: true}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the lock file and leaves it in place. Unlinking it would let
// a process that opened the old file and one that creates a new file hold
// the lock at the same time. It is safe to call more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false

	if err := l.fl.Close(); err != nil {
		plog.Warn("Failed to release lock", "path", l.path, "error", err)
	}
}

func writeLockContent(absLockFilePath string, content LockContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal lock content: %w", err)
	}
	return os.WriteFile(absLockFilePath, data, util.UserWritableFilePerms)
}

func readLockContent(absLockFilePath string) (LockContent, error) {
	data, err := os.ReadFile(absLockFilePath)
	if err != nil {
		return LockContent{}, err
	}
	var content LockContent
	if err := json.Unmarshal(data, &content); err != nil {
		return LockContent{}, fmt.Errorf("lock file %s is corrupt or empty: %w", absLockFilePath, err)
	}
	return content, nil
}
