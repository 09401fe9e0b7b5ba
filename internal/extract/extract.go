// Package extract applies a crawl rule's selector set to a fetched
// document. Extraction is pure and deterministic: no I/O, no clock, and
// malformed input surfaces as a typed error rather than a panic.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kampanyasepeti/crawlworker/internal/rule"
	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

// Candidate is one campaign extracted from a page. Fields whose selector
// was empty are nil, not defaulted. SourceURL is always set and feeds the
// upsert engine's natural key.
type Candidate struct {
	SourceURL    string
	Title        *string
	Description  *string
	ImageURL     *string
	DiscountRate *int
}

var discountPattern = regexp.MustCompile(`\d+`)

// Extract applies selectors to body. When the item selector is set, each
// matching container yields one candidate; otherwise the whole page is a
// single candidate. A failure on any field of any item aborts the page.
func Extract(body []byte, pageURL string, selectors rule.SelectorSet) ([]Candidate, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &apperrors.ExtractionError{Reason: apperrors.ReasonUnparseable}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &apperrors.ExtractionError{Reason: apperrors.ReasonUnparseable}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var items []*goquery.Selection
	if selectors.Item.IsSet() {
		doc.Find(string(selectors.Item)).Each(func(i int, s *goquery.Selection) {
			items = append(items, s)
		})
	} else {
		items = append(items, doc.Selection)
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		c, err := extractItem(item, base, pageURL, selectors)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func extractItem(item *goquery.Selection, base *url.URL, pageURL string, selectors rule.SelectorSet) (Candidate, error) {
	c := Candidate{SourceURL: itemSourceURL(item, base, pageURL)}

	title, err := textField(item, selectors.Title, "title")
	if err != nil {
		return Candidate{}, err
	}
	c.Title = title

	desc, err := textField(item, selectors.Description, "description")
	if err != nil {
		return Candidate{}, err
	}
	c.Description = desc

	img, err := imageField(item, selectors.Image, base)
	if err != nil {
		return Candidate{}, err
	}
	c.ImageURL = img

	rate, err := discountField(item, selectors.Discount)
	if err != nil {
		return Candidate{}, err
	}
	c.DiscountRate = rate

	return c, nil
}

// itemSourceURL resolves the item's own link against the page URL. Items
// without an anchor collapse to the page URL itself, which is correct for
// single-campaign pages.
func itemSourceURL(item *goquery.Selection, base *url.URL, pageURL string) string {
	href, ok := item.Find("a[href]").First().Attr("href")
	if !ok {
		if h, selfOK := item.Attr("href"); selfOK {
			href = h
		} else {
			return pageURL
		}
	}
	return resolveURL(base, strings.TrimSpace(href), pageURL)
}

func resolveURL(base *url.URL, ref, fallback string) string {
	if ref == "" {
		return fallback
	}
	if base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return fallback
	}
	return base.ResolveReference(parsed).String()
}

// selectOne resolves a field selector to exactly one element
func selectOne(item *goquery.Selection, spec rule.SelectorSpec, field string) (*goquery.Selection, error) {
	sel := item.Find(string(spec))
	switch sel.Length() {
	case 0:
		return nil, &apperrors.ExtractionError{
			Field:    field,
			Selector: string(spec),
			Reason:   apperrors.ReasonSelectorNotFound,
		}
	case 1:
		return sel, nil
	default:
		return nil, &apperrors.ExtractionError{
			Field:    field,
			Selector: string(spec),
			Reason:   apperrors.ReasonAmbiguous,
		}
	}
}

func textField(item *goquery.Selection, spec rule.SelectorSpec, field string) (*string, error) {
	if !spec.IsSet() {
		return nil, nil
	}
	sel, err := selectOne(item, spec, field)
	if err != nil {
		return nil, err
	}

	// Prefer the title attribute when present, like a browser tooltip
	text, ok := sel.Attr("title")
	if !ok || strings.TrimSpace(text) == "" {
		text = sel.Text()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &apperrors.ExtractionError{
			Field:    field,
			Selector: string(spec),
			Reason:   apperrors.ReasonSelectorNotFound,
		}
	}
	return &text, nil
}

func imageField(item *goquery.Selection, spec rule.SelectorSpec, base *url.URL) (*string, error) {
	if !spec.IsSet() {
		return nil, nil
	}
	sel, err := selectOne(item, spec, "image")
	if err != nil {
		return nil, err
	}

	src, ok := sel.Attr("src")
	if !ok {
		src, ok = sel.Attr("data-src")
	}
	if !ok || strings.TrimSpace(src) == "" {
		return nil, &apperrors.ExtractionError{
			Field:    "image",
			Selector: string(spec),
			Reason:   apperrors.ReasonSelectorNotFound,
		}
	}
	resolved := resolveURL(base, strings.TrimSpace(src), strings.TrimSpace(src))
	return &resolved, nil
}

// discountField reads the first integer out of the selected text, so
// "%25", "25% off" and "-25" all yield 25
func discountField(item *goquery.Selection, spec rule.SelectorSpec) (*int, error) {
	if !spec.IsSet() {
		return nil, nil
	}
	sel, err := selectOne(item, spec, "discount")
	if err != nil {
		return nil, err
	}

	digits := discountPattern.FindString(sel.Text())
	if digits == "" {
		return nil, &apperrors.ExtractionError{
			Field:    "discount",
			Selector: string(spec),
			Reason:   apperrors.ReasonSelectorNotFound,
		}
	}
	rate, err := strconv.Atoi(digits)
	if err != nil {
		return nil, &apperrors.ExtractionError{
			Field:    "discount",
			Selector: string(spec),
			Reason:   apperrors.ReasonSelectorNotFound,
		}
	}
	return &rate, nil
}
