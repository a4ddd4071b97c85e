package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
)

func TestConfig_Validate(t *testing.T) {
	newValidConfig := func(t *testing.T) Config {
		cfg := NewDefault()
		cfg.Source = t.TempDir()
		cfg.Destination = t.TempDir()
		return cfg
	}

	t.Run("Valid Config", func(t *testing.T) {
		cfg := newValidConfig(t)
		assert.NoError(t, cfg.Validate())
	})

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Empty Source Path", func(c *Config) { c.Source = "" }, "source path cannot be empty"},
		{"Empty Destination Path", func(c *Config) { c.Destination = "" }, "destination path cannot be empty"},
		{"Invalid Log Level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"Negative Workers", func(c *Config) { c.Performance.Workers = -1 }, "workers must not be negative"},
		{"Negative Retry Count", func(c *Config) { c.Sync.RetryCount = -2 }, "retry count must not be negative"},
		{"Negative Progress Interval", func(c *Config) { c.Logging.ProgressInterval = -time.Second }, "progress interval"},
		{"Invalid Exclude Pattern", func(c *Config) { c.Sync.UserExcludes = []string{"[unclosed"} }, "invalid exclude pattern"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newValidConfig(t)
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("Empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, NewDefault(), cfg)
	})

	t.Run("Missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, NewDefault(), cfg)
	})

	t.Run("File overrides only the fields it sets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pgl-sync.yaml")
		content := `
version: "0.0.1"
sync:
  delete: true
  retryCount: 3
  retryWait: 250ms
  modTimeWindow: 2s
  excludes:
    - "*.log"
    - "build/"
performance:
  workers: 7
report:
  path: /tmp/report.json.gz
logging:
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		def := NewDefault()
		assert.True(t, cfg.Sync.DeleteWithoutMatch)
		assert.Equal(t, 3, cfg.Sync.RetryCount)
		assert.Equal(t, 250*time.Millisecond, cfg.Sync.RetryWait)
		assert.Equal(t, 2*time.Second, cfg.Sync.ModTimeWindow)
		assert.Equal(t, []string{"*.log", "build/"}, cfg.Sync.UserExcludes)
		assert.Equal(t, def.Sync.DefaultExcludes, cfg.Sync.DefaultExcludes)
		assert.Equal(t, 7, cfg.Performance.Workers)
		assert.Equal(t, def.Performance.DiffWorkers, cfg.Performance.DiffWorkers)
		assert.Equal(t, "/tmp/report.json.gz", cfg.Report.Path)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, buildinfo.Version, cfg.Version)
	})

	t.Run("Malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sync: [unterminated"), 0644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "error parsing config file")
	})
}

func TestConfig_Plan(t *testing.T) {
	cfg := NewDefault()
	cfg.Sync.Force = true
	cfg.Sync.UserExcludes = []string{"*.bak", ".DS_Store"}
	cfg.Performance.Workers = 3
	cfg.Logging.ProgressInterval = time.Second

	plan := cfg.Plan()
	assert.True(t, plan.Force)
	assert.True(t, plan.OverwriteExisting, "force implies overwrite")
	assert.Equal(t, 3, plan.Workers)
	assert.Equal(t, time.Second, plan.ProgressInterval)
	assert.Contains(t, plan.Excludes, buildinfo.LockFileName)
	assert.Contains(t, plan.Excludes, "*.bak")

	seen := map[string]int{}
	for _, p := range plan.Excludes {
		seen[p]++
	}
	assert.Equal(t, 1, seen[".DS_Store"], "excludes are deduplicated")
}

func newTestFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.BoolP("delete", "d", false, "")
	fs.BoolP("force", "f", false, "")
	fs.BoolP("move", "m", false, "")
	fs.IntP("workers", "p", 4, "")
	fs.Duration("retry-wait", time.Second, "")
	fs.StringArray("exclude", nil, "")
	fs.Bool("no-default-excludes", false, "")
	fs.String("log-level", "info", "")
	fs.Bool("quiet", false, "")
	return fs
}

func TestApplyFlags(t *testing.T) {
	t.Run("Only changed flags override", func(t *testing.T) {
		base := NewDefault()
		base.Performance.Workers = 9
		base.Logging.Level = "debug"

		fs := newTestFlagSet()
		require.NoError(t, fs.Parse([]string{"-d", "-m", "--retry-wait", "3s", "--exclude", "*.o", "--exclude", "tmp/"}))

		merged, err := ApplyFlags(base, fs)
		require.NoError(t, err)
		assert.True(t, merged.Sync.DeleteWithoutMatch)
		assert.True(t, merged.Sync.Move)
		assert.False(t, merged.Sync.Force)
		assert.Equal(t, 3*time.Second, merged.Sync.RetryWait)
		assert.Equal(t, []string{"*.o", "tmp/"}, merged.Sync.UserExcludes)
		assert.Equal(t, 9, merged.Performance.Workers, "unset flag must keep the config value")
		assert.Equal(t, "debug", merged.Logging.Level)
	})

	t.Run("Flags override config values", func(t *testing.T) {
		base := NewDefault()
		base.Performance.Workers = 9

		fs := newTestFlagSet()
		require.NoError(t, fs.Parse([]string{"-p", "2", "--log-level", "warn", "--quiet"}))

		merged, err := ApplyFlags(base, fs)
		require.NoError(t, err)
		assert.Equal(t, 2, merged.Performance.Workers)
		assert.Equal(t, "warn", merged.Logging.Level)
		assert.True(t, merged.Logging.Quiet)
	})

	t.Run("Excludes extend the config and leave the base untouched", func(t *testing.T) {
		base := NewDefault()
		base.Sync.UserExcludes = []string{"from-file"}

		fs := newTestFlagSet()
		require.NoError(t, fs.Parse([]string{"--exclude", "from-flag", "--no-default-excludes"}))

		merged, err := ApplyFlags(base, fs)
		require.NoError(t, err)
		assert.Equal(t, []string{"from-file", "from-flag"}, merged.Sync.UserExcludes)
		assert.Equal(t, []string{"from-file"}, base.Sync.UserExcludes)
		assert.Empty(t, merged.Sync.DefaultExcludes)
	})
}
