// Package scheduler drives the crawl pipeline: it evaluates which active
// rules are due on each tick and runs fetch, extract and reconcile for
// each as an independent unit of work.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"kampanyasepeti/crawlworker/internal/extract"
	"kampanyasepeti/crawlworker/internal/fetch"
	"kampanyasepeti/crawlworker/internal/ingest"
	"kampanyasepeti/crawlworker/internal/publish"
	"kampanyasepeti/crawlworker/internal/rule"
	"kampanyasepeti/crawlworker/logger"
	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

// State is the derived lifecycle state of a rule. Only the active flag
// and the last-run timestamp are persisted; everything else falls out of
// the clock and the in-flight run table.
type State string

const (
	StateIdle     State = "idle"
	StateDue      State = "due"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
)

// RunSummary is published after every completed run
type RunSummary struct {
	RuleID    string                 `json:"rule_id"`
	BrandID   string                 `json:"brand_id"`
	StartedAt time.Time              `json:"started_at"`
	Outcome   Outcome                `json:"outcome"`
	Result    ingest.ReconcileResult `json:"result"`
	Error     string                 `json:"error,omitempty"`
}

// Scheduler owns the per-rule run lifecycle
type Scheduler struct {
	rules     rule.Store
	fetcher   fetch.Fetcher
	engine    *ingest.Engine
	publisher publish.Publisher
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	running map[string]*Run
}

// New creates a scheduler. publisher may be nil.
func New(rules rule.Store, fetcher fetch.Fetcher, engine *ingest.Engine, publisher publish.Publisher, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		rules:     rules,
		fetcher:   fetcher,
		engine:    engine,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		running:   make(map[string]*Run),
	}
}

// due reports whether an active rule's schedule period has elapsed.
// A rule that has never run is immediately due.
func due(r *rule.CrawlRule, now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.LastCrawledAt == nil {
		return true
	}
	return now.Sub(*r.LastCrawledAt) >= r.Schedule.Period()
}

// StateOf derives the display state for a rule
func (s *Scheduler) StateOf(r *rule.CrawlRule) State {
	if !r.Active {
		return StateDisabled
	}
	s.mu.Lock()
	_, isRunning := s.running[r.ID]
	s.mu.Unlock()
	if isRunning {
		return StateRunning
	}
	if due(r, s.now()) {
		return StateDue
	}
	return StateIdle
}

// Tick evaluates all active rules once and dispatches the due ones. It
// returns the dispatched runs; callers that need completion wait on them.
func (s *Scheduler) Tick(ctx context.Context) []*Run {
	active := true
	rules, err := s.rules.List(ctx, rule.Filter{Active: &active})
	if err != nil {
		s.log.WithError(err).Error().Msg("Tick failed to list active rules")
		return nil
	}

	now := s.now()
	var runs []*Run
	for _, r := range rules {
		if !due(r, now) {
			continue
		}
		run, err := s.dispatch(ctx, r)
		if err != nil {
			// A rule still running from a previous tick just keeps running
			if !apperrors.IsAlreadyRunning(err) {
				s.log.WithError(err).Error().Str("rule_id", r.ID).Msg("Failed to dispatch rule")
			}
			continue
		}
		runs = append(runs, run)
	}
	return runs
}

// TriggerNow runs a rule immediately, bypassing the due-time check but not
// the mutual exclusion: a rule already running is rejected with
// AlreadyRunning rather than raced against itself.
func (s *Scheduler) TriggerNow(ctx context.Context, ruleID string) (*Run, error) {
	r, err := s.rules.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, apperrors.NewValidation("is_active", "cannot trigger an inactive rule")
	}
	return s.dispatch(ctx, r)
}

// dispatch moves a rule from Due to Running, enforcing at most one
// in-flight execution per rule
func (s *Scheduler) dispatch(ctx context.Context, r *rule.CrawlRule) (*Run, error) {
	s.mu.Lock()
	if _, exists := s.running[r.ID]; exists {
		s.mu.Unlock()
		return nil, &apperrors.AlreadyRunningError{RuleID: r.ID}
	}
	run := newRun(r.ID, r.BrandID, s.now().UTC())
	s.running[r.ID] = run
	s.mu.Unlock()

	go s.execute(ctx, *r, run)
	return run, nil
}

// execute runs one fetch/extract/reconcile cycle. The rule always leaves
// Running, and recordRun fires exactly once whatever the outcome, so a
// failing URL waits out its schedule period like a success would.
func (s *Scheduler) execute(ctx context.Context, r rule.CrawlRule, run *Run) {
	log := s.log.WithFields(logger.Fields{"rule_id": r.ID, "brand_id": r.BrandID})

	var (
		outcome Outcome
		result  ingest.ReconcileResult
		runErr  error
	)

	defer func() {
		// recordRun must survive a cancelled tick context; it writes only
		// the last-run timestamp
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.rules.RecordRun(recordCtx, r.ID, run.StartedAt); err != nil {
			log.WithError(err).Error().Msg("Failed to record run")
		}

		s.mu.Lock()
		delete(s.running, r.ID)
		s.mu.Unlock()

		run.finish(outcome, result, runErr)
		s.publishSummary(r, run, outcome, result, runErr)
	}()

	doc, err := s.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		outcome, runErr = OutcomeFetchFailure, err
		log.WithError(err).Warn().Msg("Fetch failed")
		return
	}

	candidates, err := extract.Extract(doc.Body, r.URL, r.SelectorSet)
	if err != nil {
		outcome, runErr = OutcomeExtractionFailure, err
		log.WithError(err).Warn().Msg("Extraction failed")
		return
	}
	run.mu.Lock()
	run.candidates = candidates
	run.mu.Unlock()

	result, err = s.engine.Reconcile(ctx, r.BrandID, candidates, run.StartedAt)
	if err != nil {
		outcome, runErr = OutcomePartial, err
		log.WithError(err).Error().
			Int("inserted", result.Inserted).
			Int("updated", result.Updated).
			Msg("Reconcile stopped partway")
		return
	}

	outcome = OutcomeSuccess
	log.Info().
		Int("candidates", len(candidates)).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("expired", result.Expired).
		Msg("Run completed")
}

func (s *Scheduler) publishSummary(r rule.CrawlRule, run *Run, outcome Outcome, result ingest.ReconcileResult, runErr error) {
	if s.publisher == nil {
		return
	}
	summary := RunSummary{
		RuleID:    r.ID,
		BrandID:   r.BrandID,
		StartedAt: run.StartedAt,
		Outcome:   outcome,
		Result:    result,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		s.log.WithError(err).Error().Str("rule_id", r.ID).Msg("Failed to marshal run summary")
		return
	}
	if err := s.publisher.Publish(publish.KeyRunCompleted, payload); err != nil {
		s.log.WithError(err).Error().Str("rule_id", r.ID).Msg("Failed to publish run summary")
	}
}
