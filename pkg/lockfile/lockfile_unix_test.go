//go:build !windows

package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
)

// A contender that opened the lock file while it was held and locks it right
// after Release must still exclude every later Acquire.
func TestRelease_ContenderOnOpenHandleExcludesNewcomers(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, buildinfo.LockFileName)

	lock1, err := Acquire(context.Background(), dir, "app-1")
	require.NoError(t, err)

	f, err := os.OpenFile(lockPath, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	lock1.Release()
	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB))
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	_, err = Acquire(context.Background(), dir, "app-3")
	var lockErr *ErrLockActive
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "app-1", lockErr.AppID)
}
