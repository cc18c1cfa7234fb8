package gitsync

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
)

// Report is the ordered outcome of one sync operation.
type Report struct {
	RunID       types.RunID
	Verb        history.Verb
	Remote      string
	Branch      string
	Target      string
	Results     []types.SyncResult
	StartedAt   time.Time
	CompletedAt time.Time

	failures []error
}

func (o *Orchestrator) newReport(verb history.Verb, target string) *Report {
	return &Report{
		RunID:     types.NewRunID(),
		Verb:      verb,
		Target:    target,
		StartedAt: o.now(),
	}
}

func (r *Report) bind(s *session) {
	r.Remote = s.remote.Name
	r.Branch = s.branch
}

func (r *Report) add(res types.SyncResult, err error) {
	r.Results = append(r.Results, res)
	if err != nil {
		r.failures = append(r.failures, err)
	}
}

// Succeeded reports whether no unit of work failed.
func (r *Report) Succeeded() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return false
		}
	}
	return true
}

// Err combines the failures captured in the report, or returns nil.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, err := range r.failures {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// Count returns how many results have status s.
func (r *Report) Count(s types.SyncStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Warnings returns the non-empty warnings of all results.
func (r *Report) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		if res.Warning != "" {
			out = append(out, res.Warning)
		}
	}
	return out
}

// finish stamps the report and records it in history. err is the
// operation's terminal error, if any; it is returned unchanged.
func (o *Orchestrator) finish(r *Report, err error) (*Report, error) {
	r.CompletedAt = o.now()

	if o.history != nil {
		run := &history.Run{
			ID:          r.RunID,
			Verb:        r.Verb,
			Profile:     o.profile,
			Remote:      r.Remote,
			Branch:      r.Branch,
			Target:      r.Target,
			Outcome:     history.OutcomeFor(r.Results, err),
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Results:     r.Results,
		}
		if err != nil {
			run.Error = err.Error()
		}
		if saveErr := o.history.Save(run); saveErr != nil {
			o.logger.Warn("failed to record sync history", "run", r.RunID, "error", saveErr)
		}
	}

	if err != nil {
		o.logger.Debug("operation failed", "verb", r.Verb, "target", r.Target, "error", err)
	} else if len(r.failures) > 0 {
		o.logger.Warn("operation completed with failures", "verb", r.Verb, "target", r.Target, "failed", len(r.failures))
	}
	return r, err
}
