// Package history defines the persisted record of sync runs.
package history

import (
	"time"

	"github.com/dshills/flowsync/pkg/domain/types"
)

// Verb names the kind of sync run.
type Verb string

const (
	VerbPushFlow    Verb = "push-flow"
	VerbPushProject Verb = "push-project"
	VerbPullFlow    Verb = "pull-flow"
	VerbPullProject Verb = "pull-project"
)

// Outcome summarizes a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// IsValid reports whether o is a known outcome.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSucceeded, OutcomePartial, OutcomeFailed:
		return true
	}
	return false
}

// Run is one recorded sync invocation and its ordered results.
type Run struct {
	ID          types.RunID
	Verb        Verb
	Profile     string
	Remote      string
	Branch      string
	Target      string // flow id, project id or path the run was invoked with
	Outcome     Outcome
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
	Results     []types.SyncResult
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// OutcomeFor derives a run outcome from its results and terminal error.
func OutcomeFor(results []types.SyncResult, err error) Outcome {
	if err != nil {
		return OutcomeFailed
	}
	for _, r := range results {
		if r.Failed() {
			return OutcomePartial
		}
	}
	return OutcomeSucceeded
}

// ListOptions filters and paginates run listings.
type ListOptions struct {
	Limit        int
	Offset       int
	Verb         *Verb
	Outcome      *Outcome
	StartedAfter *time.Time
}

// ListResult is one page of runs.
type ListResult struct {
	Runs       []*Run
	TotalCount int
	Limit      int
	Offset     int
}

// Repository persists runs.
type Repository interface {
	// Save persists a run together with its results.
	Save(run *Run) error

	// Load retrieves a run and its results by id.
	Load(id types.RunID) (*Run, error)

	// List returns runs, most recent first. Results are not loaded.
	List(options ListOptions) (*ListResult, error)
}
