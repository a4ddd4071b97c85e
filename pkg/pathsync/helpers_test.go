package pathsync

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// createFile writes content to path, creating parents, and sets its mtime.
func createFile(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func createDir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0755))
}

func pathExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Lstat(path)
	if err == nil {
		return true
	}
	require.True(t, os.IsNotExist(err), "unexpected error for %s: %v", path, err)
	return false
}

func getFileContent(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func getFileModTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

// testPlan returns a plan with the given worker count and no progress ticker.
func testPlan(workers int) Plan {
	p := DefaultPlan()
	p.Workers = workers
	return p
}

// runSync runs a sync to completion and fails the test on a fatal error.
func runSync(t *testing.T, src, dst string, plan Plan) *Run {
	t.Helper()
	run, err := NewSyncer().Copy(context.Background(), src, dst, plan)
	require.NoError(t, err)
	require.True(t, run.IsFinished())
	return run
}

func relFiles(t *testing.T, root string) map[string]struct{} {
	t.Helper()
	files, err := RelativeFiles(context.Background(), root)
	require.NoError(t, err)
	return files
}

func errorKinds(run *Run) map[ErrorKind][]string {
	out := make(map[ErrorKind][]string)
	for _, rec := range run.Errors() {
		out[rec.Kind] = append(out[rec.Kind], rec.Path)
	}
	return out
}

// syncBuffer is a bytes.Buffer safe for a background logger and a reading test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
