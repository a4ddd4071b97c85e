// Package preflight provides the checks that run before a sync starts. Apart
// from EnsureTargetRoot they do not modify the filesystem.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// CheckSourceAccessible validates that the source path exists and is a directory.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}
	return nil
}

// CheckTargetAccessible gives friendlier errors than a failing os.MkdirAll:
// the volume must exist, the path must not be a filesystem or drive root, an
// existing path must be a directory and a missing path must have a reachable
// ancestor.
func CheckTargetAccessible(targetPath string) error {
	if err := checkVolumeExists(targetPath); err != nil {
		return err
	}
	if isUnsafeRoot(filepath.Clean(targetPath)) {
		return fmt.Errorf("refusing to use filesystem root %s as destination", targetPath)
	}

	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		ancestor := filepath.Dir(targetPath)
		for {
			if _, statErr := os.Stat(ancestor); statErr == nil {
				return nil
			} else if !os.IsNotExist(statErr) {
				return fmt.Errorf("cannot access ancestor directory %s: %w", ancestor, statErr)
			}
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				return fmt.Errorf("no existing ancestor for target path %s", targetPath)
			}
			ancestor = parent
		}
	} else if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}
	return nil
}

// EnsureTargetRoot creates the destination root (and missing parents) and
// verifies it is writable. Failure here is fatal for a sync run.
func EnsureTargetRoot(targetPath string) error {
	if err := os.MkdirAll(targetPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create target directory %s: %w", targetPath, err)
	}

	f, err := os.CreateTemp(targetPath, ".pgl-sync-writetest-*.tmp")
	if err != nil {
		return fmt.Errorf("target directory %s is not writable: %w", targetPath, err)
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return nil
}

// CheckPathNesting rejects source and destination roots that are equal or
// contain one another; syncing such a pair would feed its own output back in.
// Both paths must be absolute and clean.
func CheckPathNesting(src, dst string) error {
	a, b := src, dst
	if util.IsHostCaseInsensitiveFS() {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	if a == b {
		return fmt.Errorf("source and destination are the same directory: %s", src)
	}
	if isWithin(a, b) {
		return fmt.Errorf("destination %s is inside source %s", dst, src)
	}
	if isWithin(b, a) {
		return fmt.Errorf("source %s is inside destination %s", src, dst)
	}
	return nil
}

// isWithin reports whether child lies strictly below parent.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
