package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

// MemoryCatalog is an in-memory Catalog plus brand/category directories,
// used in tests and when no Postgres DSN is configured
type MemoryCatalog struct {
	mu         sync.RWMutex
	campaigns  map[string]Campaign
	byKey      map[string]string // brandID + "\x00" + sourceURL -> campaign id
	brands     map[string]Brand
	categories map[string]Category
}

// NewMemoryCatalog creates an empty in-memory catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		campaigns:  make(map[string]Campaign),
		byKey:      make(map[string]string),
		brands:     make(map[string]Brand),
		categories: make(map[string]Category),
	}
}

func naturalKey(brandID, sourceURL string) string {
	return brandID + "\x00" + sourceURL
}

// AddBrand seeds a brand into the directory
func (m *MemoryCatalog) AddBrand(b Brand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brands[b.ID] = b
}

// AddCategory seeds a category into the directory
func (m *MemoryCatalog) AddCategory(c Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

func (m *MemoryCatalog) FindByNaturalKey(ctx context.Context, brandID, sourceURL string) (*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[naturalKey(brandID, sourceURL)]
	if !ok {
		return nil, nil
	}
	c := m.campaigns[id]
	return &c, nil
}

func (m *MemoryCatalog) Insert(ctx context.Context, c *Campaign) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *c
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	m.campaigns[stored.ID] = stored
	m.byKey[naturalKey(stored.BrandID, stored.SourceURL)] = stored.ID

	out := stored
	return &out, nil
}

func (m *MemoryCatalog) Update(ctx context.Context, id string, patch Patch) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, apperrors.NewNotFound("campaign", id)
	}
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.DiscountRate != nil {
		rate := *patch.DiscountRate
		c.DiscountRate = &rate
	}
	if patch.ImageURL != nil {
		c.ImageURL = *patch.ImageURL
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.UpdatedAt != nil {
		c.UpdatedAt = *patch.UpdatedAt
	}
	if patch.LastSeenAt != nil {
		c.LastSeenAt = *patch.LastSeenAt
	}
	m.campaigns[id] = c

	out := c
	return &out, nil
}

func (m *MemoryCatalog) ListActiveByBrand(ctx context.Context, brandID string) ([]*Campaign, error) {
	status := StatusActive
	return m.List(ctx, Filter{BrandID: &brandID, Status: &status})
}

func (m *MemoryCatalog) List(ctx context.Context, filter Filter) ([]*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Campaign
	for _, c := range m.campaigns {
		if filter.BrandID != nil && c.BrandID != *filter.BrandID {
			continue
		}
		if filter.CategoryID != nil && c.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	sortCampaigns(out, filter.Sort)
	return out, nil
}

// sortCampaigns orders a listing in place. Popular has no engagement
// signal in the catalog, so it falls back to discount then recency.
func sortCampaigns(cs []*Campaign, opt SortOption) {
	less := func(i, j int) bool {
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	}
	switch opt {
	case SortEndingSoon:
		less = func(i, j int) bool {
			ei, ej := cs[i].EndDate, cs[j].EndDate
			if ei == nil && ej == nil {
				return cs[i].CreatedAt.After(cs[j].CreatedAt)
			}
			if ei == nil {
				return false
			}
			if ej == nil {
				return true
			}
			return ei.Before(*ej)
		}
	case SortHighestDiscount, SortPopular:
		less = func(i, j int) bool {
			di, dj := 0, 0
			if cs[i].DiscountRate != nil {
				di = *cs[i].DiscountRate
			}
			if cs[j].DiscountRate != nil {
				dj = *cs[j].DiscountRate
			}
			if di != dj {
				return di > dj
			}
			return cs[i].CreatedAt.After(cs[j].CreatedAt)
		}
	}
	sort.SliceStable(cs, less)
}

func (m *MemoryCatalog) BrandExists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.brands[id]
	return ok, nil
}

func (m *MemoryCatalog) GetBrand(ctx context.Context, id string) (*Brand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.brands[id]
	if !ok {
		return nil, apperrors.NewNotFound("brand", id)
	}
	out := b
	return &out, nil
}

func (m *MemoryCatalog) ListBrands(ctx context.Context) ([]*Brand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Brand
	for _, b := range m.brands {
		cp := b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCatalog) ListCategories(ctx context.Context) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Category
	for _, c := range m.categories {
		cp := c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
