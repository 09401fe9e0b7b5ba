package catalog

import "context"

// Catalog is the campaign write target of the ingestion pipeline and the
// read model of the browsing screens. FindByNaturalKey returns (nil, nil)
// when no campaign matches; the natural key is (brand id, normalized
// source URL) since scraped sources carry no external identifier.
type Catalog interface {
	FindByNaturalKey(ctx context.Context, brandID, sourceURL string) (*Campaign, error)
	Insert(ctx context.Context, c *Campaign) (*Campaign, error)
	Update(ctx context.Context, id string, patch Patch) (*Campaign, error)
	ListActiveByBrand(ctx context.Context, brandID string) ([]*Campaign, error)
	List(ctx context.Context, filter Filter) ([]*Campaign, error)
}

// BrandDirectory is the read-only brand lookup
type BrandDirectory interface {
	BrandExists(ctx context.Context, id string) (bool, error)
	GetBrand(ctx context.Context, id string) (*Brand, error)
	ListBrands(ctx context.Context) ([]*Brand, error)
}

// CategoryDirectory is the read-only category lookup
type CategoryDirectory interface {
	ListCategories(ctx context.Context) ([]*Category, error)
}
