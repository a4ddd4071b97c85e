package pathsync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

func TestExclusionSet_Matches(t *testing.T) {
	set := makeExclusionSet([]string{
		"node_modules",
		"*.tmp",
		"build/",
		"docs/**/*.draft",
		"./cache/*",
		"  ",
	})

	testCases := []struct {
		name    string
		relPath string
		isDir   bool
		want    bool
	}{
		{"Basename literal at top", "node_modules", true, true},
		{"Basename literal nested", filepath.Join("web", "node_modules"), true, true},
		{"Basename suffix glob", filepath.Join("a", "b", "x.tmp"), false, true},
		{"Basename glob does not match other ext", filepath.Join("a", "x.txt"), false, false},
		{"Dir-only pattern matches directory", "build", true, true},
		{"Dir-only pattern ignores file", "build", false, false},
		{"Dir-only pattern matches nested directory", filepath.Join("src", "build"), true, true},
		{"Double star", filepath.Join("docs", "x", "y", "z.draft"), false, true},
		{"Double star zero dirs", filepath.Join("docs", "z.draft"), false, true},
		{"Leading dot-slash stripped", filepath.Join("cache", "entry"), false, true},
		{"Not excluded", filepath.Join("src", "main.go"), false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, set.matches(tc.relPath, tc.isDir))
		})
	}
}

func TestExclusionSet_Empty(t *testing.T) {
	set := makeExclusionSet(nil)
	assert.False(t, set.matches("anything", false))
}

func TestExclusionSet_CaseFolding(t *testing.T) {
	set := makeExclusionSet([]string{"*.LOG"})
	assert.Equal(t, util.IsHostCaseInsensitiveFS(), set.matches("app.log", false))
	assert.True(t, set.matches("app.LOG", false))
}

func TestPlanValidate_RejectsBadPattern(t *testing.T) {
	p := DefaultPlan()
	p.Excludes = []string{"[unclosed"}
	assert.Error(t, p.Validate())

	p.Excludes = []string{"**/*.tmp"}
	assert.NoError(t, p.Validate())
}
