package rule

import (
	"context"
	"time"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

var (
	errEmptyURL     = apperrors.NewValidation("url", "target URL must not be empty")
	errMalformedURL = apperrors.NewValidation("url", "target URL must be an absolute http(s) URL")
)

// BrandDirectory is the read-only brand lookup used to validate the
// brand reference on create and update
type BrandDirectory interface {
	BrandExists(ctx context.Context, id string) (bool, error)
}

// Filter narrows a Store.List call; nil fields match everything
type Filter struct {
	BrandID *string
	Active  *bool
}

// Store owns the set of crawl rules
type Store interface {
	// Create assigns a fresh identifier and creation timestamp; last-run
	// starts out null
	Create(ctx context.Context, draft Draft) (*CrawlRule, error)

	// Update applies the non-nil fields of patch
	Update(ctx context.Context, id string, patch Patch) (*CrawlRule, error)

	// Delete removes a rule; deleting an unknown id is NotFound, repeated
	// deletes included
	Delete(ctx context.Context, id string) error

	// SetActive flips the active flag
	SetActive(ctx context.Context, id string, active bool) (*CrawlRule, error)

	// Get returns one rule by id
	Get(ctx context.Context, id string) (*CrawlRule, error)

	// List returns rules matching the filter, oldest first
	List(ctx context.Context, filter Filter) ([]*CrawlRule, error)

	// RecordRun writes the last-run timestamp and nothing else, so a
	// concurrent admin edit of other fields is never clobbered
	RecordRun(ctx context.Context, id string, ts time.Time) error
}

// validateDraft enforces the create/update invariants shared by all stores
func validateDraft(ctx context.Context, brands BrandDirectory, d Draft) error {
	if err := ValidateURL(d.URL); err != nil {
		return err
	}
	if !d.Schedule.Valid() {
		return apperrors.NewValidation("schedule", "schedule must be hourly, daily or weekly")
	}
	if d.BrandID == "" {
		return apperrors.NewValidation("brand_id", "brand reference is required")
	}
	ok, err := brands.BrandExists(ctx, d.BrandID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewValidation("brand_id", "unknown brand "+d.BrandID)
	}
	return nil
}

// applyPatch folds patch into a copy of r and returns the patched draft
// for re-validation
func applyPatch(r CrawlRule, patch Patch) CrawlRule {
	if patch.BrandID != nil {
		r.BrandID = *patch.BrandID
	}
	if patch.URL != nil {
		r.URL = *patch.URL
	}
	if patch.Selectors != nil {
		r.SelectorSet = *patch.Selectors
	}
	if patch.Schedule != nil {
		r.Schedule = *patch.Schedule
	}
	return r
}
