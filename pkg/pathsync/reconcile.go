package pathsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// reconcileDirectories runs before any transfer starts. Source directories
// that already exist in the destination are removed from the destination
// set; the rest are created. Afterwards the destination set holds only
// destination-only directories.
func (r *syncRun) reconcileDirectories(ctx context.Context) error {
	var missing []string
	for _, relPath := range r.srcDirs.Keys() {
		if r.dstDirs.Take(relPath) {
			r.dirsReady.Store(relPath)
			continue
		}
		missing = append(missing, relPath)
	}
	if len(missing) == 0 {
		return nil
	}

	// Shallow first, so most parents are created by their own entry rather
	// than by a child's recursion.
	slices.SortFunc(missing, func(a, b string) int {
		if d := pathDepth(a) - pathDepth(b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.plan.Workers)
	for _, relPath := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_ = r.ensureDir(relPath)
			return nil
		})
	}
	return g.Wait()
}

// ensureDir makes sure the destination directory relPath exists, creating
// missing parents first. Concurrent calls for the same path share one
// attempt, and a failure is remembered so children fail fast. Each failed
// directory is recorded once as a DirectoryCreateError.
func (r *syncRun) ensureDir(relPath string) error {
	if r.dirsReady.Has(relPath) {
		return nil
	}
	if err, ok := r.dirsFailed.Load(relPath); ok {
		return err
	}

	_, err, _ := r.dirGroup.Do(relPath, func() (any, error) {
		if r.dirsReady.Has(relPath) {
			return nil, nil
		}
		if err, ok := r.dirsFailed.Load(relPath); ok {
			return nil, err
		}
		if err := r.createDir(relPath); err != nil {
			r.dirsFailed.Store(relPath, err)
			r.errs.Add(DirectoryCreateError, relPath, err)
			return nil, err
		}
		r.dirsReady.Store(relPath)
		return nil, nil
	})
	return err
}

func (r *syncRun) createDir(relPath string) error {
	if parent := filepath.Dir(relPath); parent != "." {
		if err := r.ensureDir(parent); err != nil {
			return fmt.Errorf("parent directory %s was not created: %w", parent, err)
		}
	}

	perm := util.UserWritableDirPerms
	if info, err := os.Stat(filepath.Join(r.src, relPath)); err == nil {
		perm = util.DirPerms(info.Mode())
	}

	if r.plan.DryRun {
		plog.Notice("[DRY RUN] DIR", "path", relPath)
		return nil
	}

	absPath := filepath.Join(r.dst, relPath)
	err := os.Mkdir(absPath, perm)
	if err == nil {
		plog.Notice("DIR", "path", relPath)
		r.progress.DirsCreated.Add(1)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		info, statErr := os.Stat(absPath)
		if statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("failed to create directory %s: a non-directory entry is in the way: %w", absPath, err)
	}
	return fmt.Errorf("failed to create directory %s: %w", absPath, err)
}

// removeOrphanDirs deletes destination-only directories after all transfers
// are done, deepest first so children go before their parents. A directory
// that is still not empty (excluded content, or a file that failed to delete)
// is left in place.
func (r *syncRun) removeOrphanDirs(ctx context.Context) error {
	relPaths := r.dstDirs.Keys()
	slices.SortFunc(relPaths, func(a, b string) int {
		if d := pathDepth(b) - pathDepth(a); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	for _, relPath := range relPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.plan.DryRun {
			plog.Notice("[DRY RUN] DELETE", "path", relPath)
			continue
		}

		err := os.Remove(filepath.Join(r.dst, relPath))
		switch {
		case err == nil:
			plog.Notice("DELETE", "path", relPath)
			r.progress.DirsDeleted.Add(1)
		case errors.Is(err, fs.ErrNotExist):
			plog.Debug("Directory already removed", "path", relPath)
		case isDirNotEmpty(err):
			plog.Debug("Directory removal skipped (not empty)", "path", relPath, "error", err)
		default:
			r.errs.Add(DirectoryDeleteError, relPath, fmt.Errorf("failed to remove directory: %w", err))
		}
	}
	return nil
}

func pathDepth(relPath string) int {
	return strings.Count(relPath, string(filepath.Separator))
}
