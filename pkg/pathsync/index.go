package pathsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSymlinkLoop is recorded when a directory symlink points back into the
// directory chain currently being walked.
var ErrSymlinkLoop = errors.New("symlink loop detected")

// IndexResult holds the absolute paths found below one root.
type IndexResult struct {
	Files []string
	Dirs  []string
}

// indexer walks one root. Unreadable entries become ScanErrors and the walk
// continues with their siblings.
type indexer struct {
	ctx      context.Context
	root     string
	excl     *exclusionSet
	errs     *ErrorLog
	progress *Progress
	result   IndexResult
}

// Index recursively lists every file and directory below root, following
// symbolic links. Symlinks to directories are descended into unless they
// loop back into the current chain. Only cancellation is returned as an
// error; everything else is recorded in errs.
func Index(ctx context.Context, root string, excludes []string, errs *ErrorLog) (IndexResult, error) {
	excl := makeExclusionSet(excludes)
	return index(ctx, root, &excl, errs, &Progress{})
}

func index(ctx context.Context, root string, excl *exclusionSet, errs *ErrorLog, progress *Progress) (IndexResult, error) {
	ix := &indexer{ctx: ctx, root: root, excl: excl, errs: errs, progress: progress}

	rootInfo, err := os.Stat(root)
	if err != nil {
		errs.Add(ScanError, root, fmt.Errorf("failed to stat root: %w", err))
		return ix.result, nil
	}
	if err := ix.walk(root, "", []os.FileInfo{rootInfo}); err != nil {
		return ix.result, err
	}
	return ix.result, nil
}

// walk lists absDir. ancestors holds the directories on the current chain,
// used to stop symlink cycles.
func (ix *indexer) walk(absDir, relDir string, ancestors []os.FileInfo) error {
	if err := ix.ctx.Err(); err != nil {
		return err
	}

	// ReadDir returns the entries read before a failure, so a partially
	// readable directory still contributes what it could list.
	entries, err := os.ReadDir(absDir)
	if err != nil {
		ix.errs.Add(ScanError, absDir, fmt.Errorf("failed to read directory: %w", err))
	}

	for _, entry := range entries {
		name := entry.Name()
		absPath := filepath.Join(absDir, name)
		relPath := name
		if relDir != "" {
			relPath = filepath.Join(relDir, name)
		}

		isSymlink := entry.Type()&fs.ModeSymlink != 0
		var info os.FileInfo
		if isSymlink {
			info, err = os.Stat(absPath)
			if err != nil {
				ix.errs.Add(ScanError, absPath, fmt.Errorf("failed to resolve symlink: %w", err))
				continue
			}
		} else {
			info, err = entry.Info()
			if err != nil {
				ix.errs.Add(ScanError, absPath, fmt.Errorf("failed to stat entry: %w", err))
				continue
			}
		}

		isDir := info.IsDir()
		if ix.excl.matches(relPath, isDir) {
			continue
		}
		ix.progress.EntriesIndexed.Add(1)

		if !isDir {
			ix.result.Files = append(ix.result.Files, absPath)
			continue
		}

		if isSymlink && onChain(ancestors, info) {
			ix.errs.Add(ScanError, absPath, ErrSymlinkLoop)
			continue
		}
		ix.result.Dirs = append(ix.result.Dirs, absPath)
		if err := ix.walk(absPath, relPath, append(ancestors, info)); err != nil {
			return err
		}
	}
	return nil
}

func onChain(ancestors []os.FileInfo, info os.FileInfo) bool {
	for _, a := range ancestors {
		if os.SameFile(a, info) {
			return true
		}
	}
	return false
}

// RelativeFiles returns the relative paths of all files below root. It is a
// convenience for verifying a finished sync.
func RelativeFiles(ctx context.Context, root string) (map[string]struct{}, error) {
	errs := &ErrorLog{}
	res, err := Index(ctx, root, nil, errs)
	if err != nil {
		return nil, err
	}
	if errs.Len() > 0 {
		return nil, errs.Records()[0]
	}
	out := make(map[string]struct{}, len(res.Files))
	Normalize(res.Files, PrefixLength(root), setSink(out))
	return out, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
