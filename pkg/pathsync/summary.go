package pathsync

import (
	"context"
	"errors"
	"time"
)

// Summary is the serializable outcome of a run, written as the run report.
type Summary struct {
	ID          string           `json:"id"`
	Source      string           `json:"source"`
	Destination string           `json:"destination"`
	Plan        Plan             `json:"plan"`
	StartedAt   time.Time        `json:"startedAt"`
	EndedAt     time.Time        `json:"endedAt,omitzero"`
	Finished    bool             `json:"finished"`
	Cancelled   bool             `json:"cancelled"`
	Progress    ProgressSnapshot `json:"progress"`
	Errors      []ErrorRecord    `json:"errors"`
}

// Summary captures the run's current state. Called on a finished run it is
// the final report.
func (r *Run) Summary() Summary {
	s := Summary{
		ID:          r.ID,
		Source:      r.Source,
		Destination: r.Destination,
		Plan:        r.Plan,
		StartedAt:   r.StartedAt,
		Progress:    r.Progress(),
		Errors:      r.Errors(),
	}
	if r.IsFinished() {
		s.Finished = true
		s.EndedAt = r.endedAt
		s.Cancelled = r.err != nil && (errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded))
	}
	return s
}
