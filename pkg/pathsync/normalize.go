package pathsync

import (
	"os"
	"strings"

	"github.com/paulschiretz/pgl-sync/pkg/sharded"
	"github.com/paulschiretz/pgl-sync/pkg/workqueue"
)

// PathSink receives relative paths produced by Normalize.
type PathSink interface {
	Store(relPath string)
}

// queueSink feeds normalized paths into a work queue.
type queueSink struct{ q *workqueue.Queue[string] }

func (s queueSink) Store(relPath string) { s.q.Push(relPath) }

// setSink collects normalized paths in a plain map. Not safe for concurrent use.
type setSink map[string]struct{}

func (s setSink) Store(relPath string) { s[relPath] = struct{}{} }

var _ PathSink = (*sharded.Set)(nil)
var _ PathSink = queueSink{}

// PrefixLength returns the number of leading bytes to strip from paths below
// root: the root itself plus one separator.
func PrefixLength(root string) int {
	if strings.HasSuffix(root, string(os.PathSeparator)) {
		return len(root)
	}
	return len(root) + 1
}

// Normalize strips the first prefixLength bytes from each absolute path and
// stores the remaining relative path in sink. Paths not longer than the
// prefix (the root itself) are skipped. It returns the number of paths stored.
func Normalize(absPaths []string, prefixLength int, sink PathSink) int {
	n := 0
	for _, p := range absPaths {
		if len(p) <= prefixLength {
			continue
		}
		sink.Store(p[prefixLength:])
		n++
	}
	return n
}
