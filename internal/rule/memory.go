package rule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

// MemoryStore is an in-memory Store, used in tests and when no Postgres
// DSN is configured
type MemoryStore struct {
	mu     sync.RWMutex
	rules  map[string]CrawlRule
	brands BrandDirectory
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(brands BrandDirectory) *MemoryStore {
	return &MemoryStore{
		rules:  make(map[string]CrawlRule),
		brands: brands,
		now:    time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, draft Draft) (*CrawlRule, error) {
	if err := validateDraft(ctx, s.brands, draft); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := CrawlRule{
		ID:          uuid.NewString(),
		BrandID:     draft.BrandID,
		URL:         draft.URL,
		SelectorSet: draft.Selectors,
		Schedule:    draft.Schedule,
		Active:      draft.Active,
		CreatedAt:   s.now().UTC(),
	}
	s.rules[r.ID] = r

	out := r
	return &out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (*CrawlRule, error) {
	s.mu.Lock()
	current, ok := s.rules[id]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}

	patched := applyPatch(current, patch)
	draft := Draft{
		BrandID:   patched.BrandID,
		URL:       patched.URL,
		Selectors: patched.SelectorSet,
		Schedule:  patched.Schedule,
		Active:    patched.Active,
	}
	if err := validateDraft(ctx, s.brands, draft); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}
	// Re-apply on the latest copy; an interleaved RecordRun must survive
	latest := applyPatch(s.rules[id], patch)
	s.rules[id] = latest

	out := latest
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return apperrors.NewNotFound("crawl rule", id)
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) (*CrawlRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}
	r.Active = active
	s.rules[id] = r

	out := r
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*CrawlRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, apperrors.NewNotFound("crawl rule", id)
	}

	out := r
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*CrawlRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*CrawlRule
	for _, r := range s.rules {
		if filter.BrandID != nil && r.BrandID != *filter.BrandID {
			continue
		}
		if filter.Active != nil && r.Active != *filter.Active {
			continue
		}
		c := r
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) RecordRun(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return apperrors.NewNotFound("crawl rule", id)
	}
	t := ts.UTC()
	r.LastCrawledAt = &t
	s.rules[id] = r
	return nil
}
