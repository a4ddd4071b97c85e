package pathsync

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedRel(t *testing.T, root string, abs []string) []string {
	t.Helper()
	out := make([]string, 0, len(abs))
	for _, p := range abs {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestIndex_ListsFilesAndDirs(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "a.txt"), "a", baseTime)
	createFile(t, filepath.Join(root, "sub", "b.txt"), "b", baseTime)
	createDir(t, filepath.Join(root, "sub", "empty"))

	errs := &ErrorLog{}
	res, err := Index(context.Background(), root, nil, errs)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, sortedRel(t, root, res.Files))
	assert.Equal(t, []string{"sub", "sub/empty"}, sortedRel(t, root, res.Dirs))
	assert.Zero(t, errs.Len())
}

func TestIndex_Excludes(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "keep.txt"), "k", baseTime)
	createFile(t, filepath.Join(root, "skip.tmp"), "s", baseTime)
	createFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x", baseTime)

	res, err := Index(context.Background(), root, []string{"*.tmp", "node_modules"}, &ErrorLog{})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.txt"}, sortedRel(t, root, res.Files))
	assert.Empty(t, res.Dirs, "excluded directories are not descended into")
}

func TestIndex_FollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	outside := t.TempDir()
	createFile(t, filepath.Join(outside, "linked.txt"), "l", baseTime)

	root := t.TempDir()
	createFile(t, filepath.Join(root, "real.txt"), "r", baseTime)
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "filelink")))

	errs := &ErrorLog{}
	res, err := Index(context.Background(), root, nil, errs)
	require.NoError(t, err)

	assert.Equal(t, []string{"dirlink/linked.txt", "filelink", "real.txt"}, sortedRel(t, root, res.Files))
	assert.Equal(t, []string{"dirlink"}, sortedRel(t, root, res.Dirs))
	assert.Zero(t, errs.Len())
}

func TestIndex_SymlinkLoopIsRecordedAndSkipped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	createFile(t, filepath.Join(root, "sub", "f.txt"), "f", baseTime)
	require.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop")))

	errs := &ErrorLog{}
	res, err := Index(context.Background(), root, nil, errs)
	require.NoError(t, err)

	assert.Equal(t, []string{"sub/f.txt"}, sortedRel(t, root, res.Files))
	require.Equal(t, 1, errs.CountKind(ScanError))
	assert.ErrorIs(t, errs.Records()[0], ErrSymlinkLoop)
}

func TestIndex_BrokenSymlinkIsScanError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	createFile(t, filepath.Join(root, "ok.txt"), "ok", baseTime)
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))

	errs := &ErrorLog{}
	res, err := Index(context.Background(), root, nil, errs)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.txt"}, sortedRel(t, root, res.Files))
	require.Equal(t, 1, errs.Len())
	assert.Equal(t, ReasonNotFound, errs.Records()[0].Reason)
}

func TestIndex_UnreadableSubtreeContinues(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	root := t.TempDir()
	createFile(t, filepath.Join(root, "locked", "secret.txt"), "s", baseTime)
	createFile(t, filepath.Join(root, "open", "visible.txt"), "v", baseTime)
	require.NoError(t, os.Chmod(filepath.Join(root, "locked"), 0000))
	t.Cleanup(func() { os.Chmod(filepath.Join(root, "locked"), 0755) })

	errs := &ErrorLog{}
	res, err := Index(context.Background(), root, nil, errs)
	require.NoError(t, err)

	assert.Equal(t, []string{"open/visible.txt"}, sortedRel(t, root, res.Files))
	require.Equal(t, 1, errs.CountKind(ScanError))
	assert.Equal(t, ReasonPermission, errs.Records()[0].Reason)
}

func TestIndex_MissingRoot(t *testing.T) {
	errs := &ErrorLog{}
	res, err := Index(context.Background(), filepath.Join(t.TempDir(), "nope"), nil, errs)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, 1, errs.CountKind(ScanError))
}

func TestIndex_Cancelled(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "a.txt"), "a", baseTime)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Index(ctx, root, nil, &ErrorLog{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelativeFiles(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "x", "y.txt"), "y", baseTime)
	createFile(t, filepath.Join(root, "z.txt"), "z", baseTime)

	files, err := RelativeFiles(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		filepath.Join("x", "y.txt"): {},
		"z.txt":                     {},
	}, files)
}
