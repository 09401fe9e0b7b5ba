package scheduler

import (
	"sync"
	"time"

	"kampanyasepeti/crawlworker/internal/extract"
	"kampanyasepeti/crawlworker/internal/ingest"
)

// Outcome classifies how a dispatched run ended
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeFetchFailure      Outcome = "fetch_failure"
	OutcomeExtractionFailure Outcome = "extraction_failure"
	// OutcomePartial means candidates were extracted but the reconcile
	// stopped partway through
	OutcomePartial Outcome = "partial"
)

// Run is the handle for one dispatched execution of a rule. It is created
// when the rule leaves Due, resolves exactly once, and is not retained
// after completion beyond the rule's last-run timestamp and the emitted
// run summary.
type Run struct {
	RuleID    string
	BrandID   string
	StartedAt time.Time

	mu         sync.Mutex
	done       chan struct{}
	outcome    Outcome
	candidates []extract.Candidate
	result     ingest.ReconcileResult
	err        error
}

func newRun(ruleID, brandID string, startedAt time.Time) *Run {
	return &Run{
		RuleID:    ruleID,
		BrandID:   brandID,
		StartedAt: startedAt,
		done:      make(chan struct{}),
	}
}

// Done is closed when the run has finished, whatever the outcome
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns its outcome
func (r *Run) Wait() (Outcome, ingest.ReconcileResult, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.result, r.err
}

// Outcome returns the outcome; only meaningful after Done is closed
func (r *Run) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Result returns the reconcile result; only meaningful after Done is closed
func (r *Run) Result() ingest.ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Candidates returns the extracted candidates; only meaningful after
// Done is closed
func (r *Run) Candidates() []extract.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates
}

// Err returns the terminal error, nil on success
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) finish(outcome Outcome, result ingest.ReconcileResult, err error) {
	r.mu.Lock()
	r.outcome = outcome
	r.result = result
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
