package rule

import (
	"net/url"
	"time"
)

// Schedule is the recurrence period of a crawl rule
type Schedule string

const (
	ScheduleHourly Schedule = "hourly"
	ScheduleDaily  Schedule = "daily"
	ScheduleWeekly Schedule = "weekly"
)

// Valid reports whether s is one of the three known schedule tokens
func (s Schedule) Valid() bool {
	switch s {
	case ScheduleHourly, ScheduleDaily, ScheduleWeekly:
		return true
	}
	return false
}

// Period returns the duration that must elapse between runs
func (s Schedule) Period() time.Duration {
	switch s {
	case ScheduleHourly:
		return time.Hour
	case ScheduleDaily:
		return 24 * time.Hour
	case ScheduleWeekly:
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// SelectorSpec describes how to extract one field from a fetched document.
// An empty spec means the field is not extracted.
type SelectorSpec string

// IsSet reports whether the spec selects anything
func (s SelectorSpec) IsSet() bool {
	return s != ""
}

// SelectorSet groups the selectors of one crawl rule. Item is the repeating
// campaign container on a listing page; when empty the whole page is treated
// as a single campaign.
type SelectorSet struct {
	Item        SelectorSpec `json:"selector_item" db:"selector_item"`
	Title       SelectorSpec `json:"selector_title" db:"selector_title"`
	Discount    SelectorSpec `json:"selector_discount" db:"selector_discount"`
	Image       SelectorSpec `json:"selector_image" db:"selector_image"`
	Description SelectorSpec `json:"selector_description" db:"selector_description"`
}

// CrawlRule is one scraping configuration bound to a single brand.
// The identifier is immutable after creation; LastCrawledAt is nil until
// the first run and is only ever written through Store.RecordRun.
type CrawlRule struct {
	ID            string     `json:"id" db:"id"`
	BrandID       string     `json:"brand_id" db:"brand_id"`
	URL           string     `json:"url" db:"url"`
	SelectorSet   `json:"selectors"`
	Schedule      Schedule   `json:"schedule" db:"schedule"`
	Active        bool       `json:"is_active" db:"is_active"`
	LastCrawledAt *time.Time `json:"last_crawled_at" db:"last_crawled_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Draft is the input to Store.Create, a rule without an identifier
type Draft struct {
	BrandID   string      `json:"brand_id"`
	URL       string      `json:"url"`
	Selectors SelectorSet `json:"selectors"`
	Schedule  Schedule    `json:"schedule"`
	Active    bool        `json:"is_active"`
}

// Patch carries the admin-editable fields of an update; nil means unchanged
type Patch struct {
	BrandID   *string      `json:"brand_id"`
	URL       *string      `json:"url"`
	Selectors *SelectorSet `json:"selectors"`
	Schedule  *Schedule    `json:"schedule"`
}

// ValidateURL checks that raw is a non-empty absolute http(s) URL
func ValidateURL(raw string) error {
	if raw == "" {
		return errEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errMalformedURL
	}
	return nil
}
