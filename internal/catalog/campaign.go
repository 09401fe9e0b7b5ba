package catalog

import "time"

// Status is the lifecycle state of a campaign
type Status string

const (
	// StatusActive means the campaign is live and visible
	StatusActive Status = "active"
	// StatusExpired means the campaign stopped appearing in its source's
	// crawl output; only the ingestion pipeline sets this
	StatusExpired Status = "expired"
	// StatusHidden is an admin-only state the pipeline never overwrites
	StatusHidden Status = "hidden"
)

// Campaign is one shopping deal in the catalog
type Campaign struct {
	ID           string     `json:"id" db:"id"`
	BrandID      string     `json:"brand_id" db:"brand_id"`
	CategoryID   string     `json:"category_id" db:"category_id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description" db:"description"`
	DiscountRate *int       `json:"discount_rate" db:"discount_rate"`
	ImageURL     string     `json:"image_url" db:"image_url"`
	SourceURL    string     `json:"source_url" db:"source_url"`
	StartDate    *time.Time `json:"start_date" db:"start_date"`
	EndDate      *time.Time `json:"end_date" db:"end_date"`
	Status       Status     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastSeenAt   time.Time  `json:"last_seen_at" db:"last_seen_at"`
}

// Patch carries a partial campaign update; nil fields are left untouched
type Patch struct {
	Title        *string
	Description  *string
	DiscountRate *int
	ImageURL     *string
	Status       *Status
	UpdatedAt    *time.Time
	LastSeenAt   *time.Time
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DiscountRate == nil &&
		p.ImageURL == nil && p.Status == nil && p.UpdatedAt == nil && p.LastSeenAt == nil
}

// Brand is a followed merchant; campaigns reference it by id
type Brand struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	LogoURL     string   `json:"logo_url" db:"logo_url"`
	Domain      string   `json:"domain" db:"domain"`
	CategoryIDs []string `json:"category_ids" db:"-"`
}

// Category is a browsing bucket for campaigns
type Category struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Icon  string `json:"icon" db:"icon"`
	Color string `json:"color" db:"color"`
}

// SortOption orders a campaign listing
type SortOption string

const (
	SortNewest          SortOption = "newest"
	SortEndingSoon      SortOption = "ending_soon"
	SortHighestDiscount SortOption = "highest_discount"
	SortPopular         SortOption = "popular"
)

// Valid reports whether s is a known sort option
func (s SortOption) Valid() bool {
	switch s {
	case SortNewest, SortEndingSoon, SortHighestDiscount, SortPopular:
		return true
	}
	return false
}

// Filter narrows a campaign listing; nil fields match everything
type Filter struct {
	BrandID    *string
	CategoryID *string
	Status     *Status
	Sort       SortOption
}
