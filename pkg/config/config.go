// Package config holds the user-facing configuration of pgl-sync: defaults,
// an optional YAML file and command-line overrides. A validated Config is
// turned into an immutable pathsync.Plan for each run.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/pathsync"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// SyncConfig selects what a run does to the destination.
type SyncConfig struct {
	DeleteWithoutMatch bool `yaml:"delete"`
	OverwriteExisting  bool `yaml:"overwrite"`
	// Force also copies over newer destination files. It implies OverwriteExisting.
	Force  bool `yaml:"force"`
	Move   bool `yaml:"move"`
	DryRun bool `yaml:"dryRun"`

	RetryCount    int           `yaml:"retryCount"`
	RetryWait     time.Duration `yaml:"retryWait"`
	ModTimeWindow time.Duration `yaml:"modTimeWindow"`

	DefaultExcludes []string `yaml:"defaultExcludes"`
	UserExcludes    []string `yaml:"excludes"`
}

type PerformanceConfig struct {
	Workers      int `yaml:"workers"`
	DiffWorkers  int `yaml:"diffWorkers"`
	BufferSizeKB int `yaml:"bufferSizeKB"`
}

type ReportConfig struct {
	// Path of the JSON run report. A .gz or .zst suffix compresses it.
	// Empty disables the report.
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level            string        `yaml:"level"`
	Quiet            bool          `yaml:"quiet"`
	ProgressInterval time.Duration `yaml:"progressInterval"`
}

type Config struct {
	Version     string            `yaml:"version"`
	Source      string            `yaml:"-"`
	Destination string            `yaml:"-"`
	Sync        SyncConfig        `yaml:"sync"`
	Performance PerformanceConfig `yaml:"performance"`
	Report      ReportConfig      `yaml:"report"`
	Logging     LoggingConfig     `yaml:"logging"`
}

var validLogLevels = []string{"debug", "notice", "info", "warn", "warning", "error"}

// NewDefault returns the configuration used when no file and no flags are given.
func NewDefault() Config {
	return Config{
		Version: buildinfo.Version,
		Sync: SyncConfig{
			RetryCount: 0,
			RetryWait:  time.Second,
			DefaultExcludes: []string{
				"*.swp",       // Vim swap files
				".DS_Store",   // macOS folder customization file
				"Thumbs.db",   // Windows image thumbnail cache
				"desktop.ini", // Windows folder customization file
			},
			UserExcludes: []string{},
		},
		Performance: PerformanceConfig{
			Workers:      runtime.NumCPU(),
			DiffWorkers:  4,
			BufferSizeKB: 256,
		},
		Logging: LoggingConfig{
			Level:            "info",
			ProgressInterval: 0,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults, so fields
// missing from the file keep their default values. An empty path or a missing
// file yields the defaults without an error.
func Load(path string) (Config, error) {
	cfg := NewDefault()
	if path == "" {
		return cfg, nil
	}

	expanded, err := util.ExpandPath(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not expand config path %s: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			plog.Debug("No config file found, using defaults", "path", expanded)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", expanded, err)
	}

	plog.Info("Loading configuration", "path", expanded)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", expanded, err)
	}
	cfg.Version = buildinfo.Version
	return cfg, nil
}

// Validate checks the configuration for values a run cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source path cannot be empty"))
	}
	if c.Destination == "" {
		errs = append(errs, errors.New("destination path cannot be empty"))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("invalid log level %q. Must be one of %s", c.Logging.Level, strings.Join(validLogLevels, ", ")))
	}
	if c.Logging.ProgressInterval < 0 {
		errs = append(errs, fmt.Errorf("progress interval must not be negative, got %s", c.Logging.ProgressInterval))
	}
	if c.Sync.Move && c.Sync.DeleteWithoutMatch {
		plog.Warn("Move together with delete removes destination files that are not in the source")
	}
	if err := c.Plan().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Excludes returns the merged, deduplicated default and user patterns plus
// the destination lock file.
func (c *Config) Excludes() []string {
	return util.MergeAndDeduplicate([]string{buildinfo.LockFileName}, c.Sync.DefaultExcludes, c.Sync.UserExcludes)
}

// Plan converts the configuration into a run plan.
func (c *Config) Plan() pathsync.Plan {
	return pathsync.Plan{
		DeleteWithoutMatch: c.Sync.DeleteWithoutMatch,
		OverwriteExisting:  c.Sync.OverwriteExisting || c.Sync.Force,
		Force:              c.Sync.Force,
		Move:               c.Sync.Move,
		DryRun:             c.Sync.DryRun,
		Workers:            c.Performance.Workers,
		DiffWorkers:        c.Performance.DiffWorkers,
		RetryCount:         c.Sync.RetryCount,
		RetryWait:          c.Sync.RetryWait,
		ModTimeWindow:      c.Sync.ModTimeWindow,
		BufferSizeKB:       c.Performance.BufferSizeKB,
		ProgressInterval:   c.Logging.ProgressInterval,
		Excludes:           c.Excludes(),
	}
}

// LogSummary logs the effective configuration.
func (c *Config) LogSummary() {
	plog.Info("Configuration loaded",
		"source", c.Source,
		"destination", c.Destination,
		"delete", c.Sync.DeleteWithoutMatch,
		"overwrite", c.Sync.OverwriteExisting || c.Sync.Force,
		"force", c.Sync.Force,
		"move", c.Sync.Move,
		"dry_run", c.Sync.DryRun,
		"workers", c.Performance.Workers,
		"diff_workers", c.Performance.DiffWorkers,
		"buffer_size_kb", c.Performance.BufferSizeKB,
		"retry_count", c.Sync.RetryCount,
		"retry_wait", c.Sync.RetryWait,
		"mod_time_window", c.Sync.ModTimeWindow,
		"excludes", strings.Join(c.Excludes(), ", "),
		"report", c.Report.Path,
		"log_level", c.Logging.Level,
	)
}

// ApplyFlags overlays the flags the user explicitly set on top of c. Flags
// left at their defaults do not override values from the config file.
func ApplyFlags(c Config, flags *pflag.FlagSet) (Config, error) {
	merged := c
	merged.Sync.UserExcludes = slices.Clone(c.Sync.UserExcludes)

	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "delete":
			merged.Sync.DeleteWithoutMatch, err = flags.GetBool(f.Name)
		case "overwrite":
			merged.Sync.OverwriteExisting, err = flags.GetBool(f.Name)
		case "force":
			merged.Sync.Force, err = flags.GetBool(f.Name)
		case "move":
			merged.Sync.Move, err = flags.GetBool(f.Name)
		case "dry-run":
			merged.Sync.DryRun, err = flags.GetBool(f.Name)
		case "workers":
			merged.Performance.Workers, err = flags.GetInt(f.Name)
		case "diff-workers":
			merged.Performance.DiffWorkers, err = flags.GetInt(f.Name)
		case "buffer-size-kb":
			merged.Performance.BufferSizeKB, err = flags.GetInt(f.Name)
		case "retry-count":
			merged.Sync.RetryCount, err = flags.GetInt(f.Name)
		case "retry-wait":
			merged.Sync.RetryWait, err = flags.GetDuration(f.Name)
		case "mod-time-window":
			merged.Sync.ModTimeWindow, err = flags.GetDuration(f.Name)
		case "exclude":
			var patterns []string
			patterns, err = flags.GetStringArray(f.Name)
			merged.Sync.UserExcludes = append(merged.Sync.UserExcludes, patterns...)
		case "no-default-excludes":
			var off bool
			if off, err = flags.GetBool(f.Name); off {
				merged.Sync.DefaultExcludes = nil
			}
		case "report":
			merged.Report.Path, err = flags.GetString(f.Name)
		case "log-level":
			merged.Logging.Level, err = flags.GetString(f.Name)
		case "quiet":
			merged.Logging.Quiet, err = flags.GetBool(f.Name)
		case "progress-interval":
			merged.Logging.ProgressInterval, err = flags.GetDuration(f.Name)
		default:
			plog.Debug("Unhandled flag in ApplyFlags", "flag", f.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return merged, nil
}
