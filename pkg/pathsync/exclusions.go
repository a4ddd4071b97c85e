package pathsync

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// exclusion is one pre-analyzed exclude pattern.
type exclusion struct {
	pattern       string // normalized doublestar pattern
	matchBasename bool   // no slash in the pattern: match the last path element
	dirOnly       bool   // trailing slash: only directories match
}

// exclusionSet matches relative paths against the run's exclude patterns.
// Literal base names are kept in a map since they are the common case
// ("node_modules", ".git").
type exclusionSet struct {
	basenameLiterals map[string]struct{}
	patterns         []exclusion
	foldCase         bool
}

func makeExclusionSet(patterns []string) exclusionSet {
	set := exclusionSet{
		basenameLiterals: make(map[string]struct{}),
		foldCase:         util.IsHostCaseInsensitiveFS(),
	}
	for _, raw := range patterns {
		p := normalizePattern(raw)
		if set.foldCase {
			p = strings.ToLower(p)
		}
		if p == "" {
			continue
		}
		ex := exclusion{dirOnly: strings.HasSuffix(p, "/")}
		p = strings.TrimSuffix(p, "/")
		ex.pattern = p
		ex.matchBasename = !strings.Contains(p, "/")

		if ex.matchBasename && !ex.dirOnly && !strings.ContainsAny(p, "*?[]{}") {
			set.basenameLiterals[p] = struct{}{}
			continue
		}
		set.patterns = append(set.patterns, ex)
	}
	return set
}

// matches reports whether relPath (platform separators) is excluded.
func (es *exclusionSet) matches(relPath string, isDir bool) bool {
	if len(es.basenameLiterals) == 0 && len(es.patterns) == 0 {
		return false
	}
	key := filepath.ToSlash(relPath)
	if es.foldCase {
		key = strings.ToLower(key)
	}
	base := path.Base(key)

	if _, ok := es.basenameLiterals[base]; ok {
		return true
	}
	for _, ex := range es.patterns {
		if ex.dirOnly && !isDir {
			continue
		}
		target := key
		if ex.matchBasename {
			target = base
		}
		ok, err := doublestar.Match(ex.pattern, target)
		if err != nil {
			plog.Warn("Invalid exclusion pattern", "pattern", ex.pattern, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// normalizePattern converts a user pattern to the slash form used for matching.
func normalizePattern(p string) string {
	p = strings.TrimSpace(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}
