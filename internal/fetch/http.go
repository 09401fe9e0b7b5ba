package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
}

const defaultBlockWindow = 60 * time.Second

// HTTPFetcher fetches pages over plain HTTP with browser-like headers,
// a bounded per-request timeout, a per-host rate limit and a shared
// block window after a host asks us to back off
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	perHost rate.Limit
	blocks  BlockCache

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a fetcher. blocks may be nil to disable the
// shared block window.
func NewHTTPFetcher(timeout time.Duration, ratePerHost float64, blocks BlockCache) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		perHost:  rate.Limit(ratePerHost),
		blocks:   blocks,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.perHost, 1)
		f.limiters[host] = l
	}
	return l
}

// Fetch retrieves rawURL and returns its body converted to UTF-8
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, &apperrors.FetchError{Kind: apperrors.FetchUnreachable, URL: rawURL, Err: err}
	}
	host := u.Host

	if f.blocks != nil {
		if _, err := f.blocks.Get(blockKey(host)); err == nil {
			return nil, &apperrors.FetchError{
				Kind:       apperrors.FetchHTTPStatus,
				URL:        rawURL,
				StatusCode: http.StatusTooManyRequests,
				Err:        fmt.Errorf("host %s is in a block window", host),
			}
		}
	}

	if err := f.limiter(host).Wait(ctx); err != nil {
		return nil, &apperrors.FetchError{Kind: apperrors.FetchTimeout, URL: rawURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &apperrors.FetchError{Kind: apperrors.FetchUnreachable, URL: rawURL, Err: err}
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &apperrors.FetchError{Kind: classifyTransportError(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if f.blocks != nil {
			window := blockWindow(resp.Header.Get("Retry-After"))
			if setErr := f.blocks.Set(blockKey(host), []byte("1"), window); setErr != nil {
				// The block window is best effort; the fetch error stands
				_ = setErr
			}
		}
		return nil, &apperrors.FetchError{
			Kind:       apperrors.FetchHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apperrors.FetchError{
			Kind:       apperrors.FetchHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.FetchError{Kind: classifyTransportError(err), URL: rawURL, Err: err}
	}

	utf8Body, err := toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &apperrors.FetchError{Kind: apperrors.FetchUnreachable, URL: rawURL, Err: err}
	}

	return &Document{URL: rawURL, Body: utf8Body, FetchedAt: time.Now().UTC()}, nil
}

// toUTF8 converts body to UTF-8 based on the Content-Type header and the
// body content itself
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("failed to convert body to UTF-8: %w", err)
	}
	return buf.Bytes(), nil
}

func classifyTransportError(err error) apperrors.FetchKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.FetchTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperrors.FetchTimeout
	}
	return apperrors.FetchUnreachable
}

func blockKey(host string) string {
	return "fetch_block:" + host
}

func blockWindow(retryAfter string) time.Duration {
	if retryAfter != "" {
		if d, err := time.ParseDuration(retryAfter + "s"); err == nil && d > 0 {
			return d
		}
	}
	return defaultBlockWindow
}
