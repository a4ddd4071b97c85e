package pathsync

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	defaultDiffWorkers  = 4
	defaultBufferSizeKB = 256
	// defaultPollInterval bounds how long an idle transfer worker sleeps before
	// re-checking the queues and the completion flags.
	defaultPollInterval = 10 * time.Millisecond
)

// Plan is the immutable configuration of one sync run. Start copies it, so
// changing a Plan after Start has no effect on the run.
type Plan struct {
	// DeleteWithoutMatch removes destination files and directories that have no
	// counterpart in the source.
	DeleteWithoutMatch bool `json:"deleteWithoutMatch" yaml:"deleteWithoutMatch"`
	// OverwriteExisting re-copies files whose modification times are equal.
	OverwriteExisting bool `json:"overwriteExisting" yaml:"overwriteExisting"`
	// Force copies even when the destination file is newer than the source.
	Force bool `json:"force" yaml:"force"`
	// Move renames source files into place instead of copying them.
	Move bool `json:"move" yaml:"move"`
	// DryRun classifies and counts but never touches the destination.
	DryRun bool `json:"dryRun" yaml:"dryRun"`

	Workers          int           `json:"workers" yaml:"workers"`
	DiffWorkers      int           `json:"diffWorkers" yaml:"diffWorkers"`
	RetryCount       int           `json:"retryCount" yaml:"retryCount"`
	RetryWait        time.Duration `json:"retryWait" yaml:"retryWait"`
	ModTimeWindow    time.Duration `json:"modTimeWindow" yaml:"modTimeWindow"`
	BufferSizeKB     int           `json:"bufferSizeKB" yaml:"bufferSizeKB"`
	ProgressInterval time.Duration `json:"progressInterval" yaml:"progressInterval"`

	// Excludes are doublestar patterns matched against slash-separated
	// relative paths. Patterns without a slash match the base name anywhere,
	// a trailing slash restricts the pattern to directories.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// DefaultPlan returns a Plan that copies new and newer files using one
// worker per CPU and deletes nothing.
func DefaultPlan() Plan {
	return Plan{
		Workers:      runtime.NumCPU(),
		DiffWorkers:  defaultDiffWorkers,
		BufferSizeKB: defaultBufferSizeKB,
	}
}

// withDefaults fills zero-valued sizing fields and detaches the Excludes slice
// from the caller.
func (p Plan) withDefaults() Plan {
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.DiffWorkers <= 0 {
		p.DiffWorkers = defaultDiffWorkers
	}
	if p.BufferSizeKB <= 0 {
		p.BufferSizeKB = defaultBufferSizeKB
	}
	p.Excludes = slices.Clone(p.Excludes)
	return p
}

// Validate reports every invalid field at once.
func (p Plan) Validate() error {
	var errs []error
	if p.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", p.Workers))
	}
	if p.DiffWorkers < 0 {
		errs = append(errs, fmt.Errorf("diff workers must not be negative, got %d", p.DiffWorkers))
	}
	if p.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("retry count must not be negative, got %d", p.RetryCount))
	}
	if p.RetryWait < 0 {
		errs = append(errs, fmt.Errorf("retry wait must not be negative, got %s", p.RetryWait))
	}
	if p.ModTimeWindow < 0 {
		errs = append(errs, fmt.Errorf("mod time window must not be negative, got %s", p.ModTimeWindow))
	}
	for _, pattern := range p.Excludes {
		if !doublestar.ValidatePattern(normalizePattern(pattern)) {
			errs = append(errs, fmt.Errorf("invalid exclude pattern %q", pattern))
		}
	}
	return errors.Join(errs...)
}
