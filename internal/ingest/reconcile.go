// Package ingest reconciles extracted campaign candidates against the
// campaign catalog: insert new, update changed, expire unseen.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"kampanyasepeti/crawlworker/internal/catalog"
	"kampanyasepeti/crawlworker/internal/extract"
	"kampanyasepeti/crawlworker/internal/publish"
	"kampanyasepeti/crawlworker/logger"
)

// ReconcileResult summarizes one reconcile call
type ReconcileResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Expired  int `json:"expired"`
}

// CampaignEvent is the payload published for each campaign change
type CampaignEvent struct {
	CampaignID   string    `json:"campaign_id"`
	BrandID      string    `json:"brand_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	DiscountRate *int      `json:"discount_rate,omitempty"`
	SourceURL    string    `json:"source_url"`
	RunTime      time.Time `json:"run_time"`
}

// Engine is the upsert engine. publisher may be nil; event emission is
// best effort and never fails a reconcile.
type Engine struct {
	catalog   catalog.Catalog
	brands    catalog.BrandDirectory
	publisher publish.Publisher
	log       *logger.Logger
}

// NewEngine creates an upsert engine
func NewEngine(cat catalog.Catalog, brands catalog.BrandDirectory, pub publish.Publisher, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{catalog: cat, brands: brands, publisher: pub, log: log}
}

// Reconcile applies one run's candidates for a brand to the catalog.
// runTime is used for every comparison and write in the call, so a slow
// write can never race the expiry sweep at the end.
func (e *Engine) Reconcile(ctx context.Context, brandID string, candidates []extract.Candidate, runTime time.Time) (ReconcileResult, error) {
	runTime = runTime.UTC()
	var res ReconcileResult

	for _, c := range candidates {
		if err := e.reconcileCandidate(ctx, brandID, c, runTime, &res); err != nil {
			return res, err
		}
	}

	// Anything still active for this brand that the run did not touch has
	// disappeared from the source and expires. This is the only automated
	// path to the expired status.
	actives, err := e.catalog.ListActiveByBrand(ctx, brandID)
	if err != nil {
		return res, err
	}
	for _, existing := range actives {
		if !existing.LastSeenAt.Before(runTime) {
			continue
		}
		status := catalog.StatusExpired
		updated, err := e.catalog.Update(ctx, existing.ID, catalog.Patch{
			Status:    &status,
			UpdatedAt: &runTime,
		})
		if err != nil {
			return res, err
		}
		res.Expired++
		e.emit(publish.KeyCampaignExpired, updated, runTime)
	}

	return res, nil
}

func (e *Engine) reconcileCandidate(ctx context.Context, brandID string, c extract.Candidate, runTime time.Time, res *ReconcileResult) error {
	sourceURL := NormalizeSourceURL(c.SourceURL)

	existing, err := e.catalog.FindByNaturalKey(ctx, brandID, sourceURL)
	if err != nil {
		return err
	}

	if existing == nil {
		inserted, err := e.catalog.Insert(ctx, e.newCampaign(ctx, brandID, sourceURL, c, runTime))
		if err != nil {
			return err
		}
		res.Inserted++
		e.emit(publish.KeyCampaignInserted, inserted, runTime)
		return nil
	}

	patch := fieldPatch(existing, c)
	if patch.IsEmpty() {
		// Nothing changed; only refresh the sighting
		_, err := e.catalog.Update(ctx, existing.ID, catalog.Patch{LastSeenAt: &runTime})
		return err
	}

	patch.UpdatedAt = &runTime
	patch.LastSeenAt = &runTime
	// A reappeared campaign goes active again, but hidden stays hidden:
	// it is an admin state the pipeline must not promote out of
	if existing.Status == catalog.StatusExpired {
		status := catalog.StatusActive
		patch.Status = &status
	}

	updated, err := e.catalog.Update(ctx, existing.ID, patch)
	if err != nil {
		return err
	}
	res.Updated++
	e.emit(publish.KeyCampaignUpdated, updated, runTime)
	return nil
}

func (e *Engine) newCampaign(ctx context.Context, brandID, sourceURL string, c extract.Candidate, runTime time.Time) *catalog.Campaign {
	campaign := &catalog.Campaign{
		BrandID:    brandID,
		SourceURL:  sourceURL,
		Status:     catalog.StatusActive,
		CreatedAt:  runTime,
		UpdatedAt:  runTime,
		LastSeenAt: runTime,
	}
	if c.Title != nil {
		campaign.Title = *c.Title
	}
	if c.Description != nil {
		campaign.Description = *c.Description
	}
	if c.ImageURL != nil {
		campaign.ImageURL = *c.ImageURL
	}
	if c.DiscountRate != nil {
		rate := *c.DiscountRate
		campaign.DiscountRate = &rate
	}

	// The candidate carries no category; inherit the brand's primary one
	if e.brands != nil {
		if brand, err := e.brands.GetBrand(ctx, brandID); err == nil && len(brand.CategoryIDs) > 0 {
			campaign.CategoryID = brand.CategoryIDs[0]
		}
	}
	return campaign
}

// fieldPatch diffs the candidate's extracted fields against the stored
// campaign; omitted fields never appear in the patch
func fieldPatch(existing *catalog.Campaign, c extract.Candidate) catalog.Patch {
	var patch catalog.Patch
	if c.Title != nil && *c.Title != existing.Title {
		patch.Title = c.Title
	}
	if c.Description != nil && *c.Description != existing.Description {
		patch.Description = c.Description
	}
	if c.ImageURL != nil && *c.ImageURL != existing.ImageURL {
		patch.ImageURL = c.ImageURL
	}
	if c.DiscountRate != nil {
		if existing.DiscountRate == nil || *existing.DiscountRate != *c.DiscountRate {
			patch.DiscountRate = c.DiscountRate
		}
	}
	return patch
}

func (e *Engine) emit(key string, campaign *catalog.Campaign, runTime time.Time) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(CampaignEvent{
		CampaignID:   campaign.ID,
		BrandID:      campaign.BrandID,
		Title:        campaign.Title,
		Status:       string(campaign.Status),
		DiscountRate: campaign.DiscountRate,
		SourceURL:    campaign.SourceURL,
		RunTime:      runTime,
	})
	if err != nil {
		e.log.WithError(err).Error().Str("campaign_id", campaign.ID).Msg("Failed to marshal campaign event")
		return
	}
	if err := e.publisher.Publish(key, payload); err != nil {
		e.log.WithError(err).Error().Str("campaign_id", campaign.ID).Msg("Failed to publish campaign event")
	}
}
