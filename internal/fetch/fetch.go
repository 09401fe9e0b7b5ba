package fetch

import (
	"context"
	"time"
)

// Document is the raw content of one fetched page, converted to UTF-8
type Document struct {
	URL       string
	Body      []byte
	FetchedAt time.Time
}

// Fetcher retrieves raw document content for a rule's target URL.
// Failures are reported as *errors.FetchError; retry policy lives in the
// scheduler, not here.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// BlockCache holds short-lived per-host block windows after an upstream
// asks us to back off. Backed by memcache in production.
type BlockCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, expiration time.Duration) error
	Delete(key string) error
}
