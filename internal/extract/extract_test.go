package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kampanyasepeti/crawlworker/internal/rule"
	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

const listingHTML = `<html><body>
	<div class="campaign-card">
		<a href="/kampanya/yaz-indirimi">detay</a>
		<h2 class="campaign-card__title">Yaz İndirimi</h2>
		<span class="campaign-card__discount">%25 indirim</span>
		<img class="campaign-card__image" src="/img/yaz.jpg"/>
		<p class="campaign-card__desc">Sezon sonu fırsatları</p>
	</div>
	<div class="campaign-card">
		<a href="https://www.trendyol.com/kampanya/teknoloji">detay</a>
		<h2 class="campaign-card__title">Teknoloji Günleri</h2>
		<span class="campaign-card__discount">40% off</span>
		<img class="campaign-card__image" src="/img/tek.jpg"/>
		<p class="campaign-card__desc">Elektronikte dev indirim</p>
	</div>
</body></html>`

func listingSelectors() rule.SelectorSet {
	return rule.SelectorSet{
		Item:        "div.campaign-card",
		Title:       ".campaign-card__title",
		Discount:    ".campaign-card__discount",
		Image:       ".campaign-card__image",
		Description: ".campaign-card__desc",
	}
}

func TestExtractListingPage(t *testing.T) {
	candidates, err := Extract([]byte(listingHTML), "https://www.trendyol.com/kampanyalar", listingSelectors())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "https://www.trendyol.com/kampanya/yaz-indirimi", first.SourceURL)
	require.NotNil(t, first.Title)
	assert.Equal(t, "Yaz İndirimi", *first.Title)
	require.NotNil(t, first.DiscountRate)
	assert.Equal(t, 25, *first.DiscountRate)
	require.NotNil(t, first.ImageURL)
	assert.Equal(t, "https://www.trendyol.com/img/yaz.jpg", *first.ImageURL)
	require.NotNil(t, first.Description)
	assert.Equal(t, "Sezon sonu fırsatları", *first.Description)

	second := candidates[1]
	assert.Equal(t, "https://www.trendyol.com/kampanya/teknoloji", second.SourceURL)
	require.NotNil(t, second.DiscountRate)
	assert.Equal(t, 40, *second.DiscountRate)
}

func TestExtractEmptySelectorsAreOmitted(t *testing.T) {
	selectors := listingSelectors()
	selectors.Discount = ""
	selectors.Image = ""

	candidates, err := Extract([]byte(listingHTML), "https://www.trendyol.com/kampanyalar", selectors)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Nil(t, candidates[0].DiscountRate)
	assert.Nil(t, candidates[0].ImageURL)
	assert.NotNil(t, candidates[0].Title)
}

func TestExtractSinglePageWithoutItemSelector(t *testing.T) {
	html := `<html><body>
		<h1 class="promo-title">Market Haftası</h1>
		<p class="promo-detail">Tüm reyonlarda geçerli</p>
	</body></html>`
	selectors := rule.SelectorSet{
		Title:       ".promo-title",
		Description: ".promo-detail",
	}

	candidates, err := Extract([]byte(html), "https://www.migros.com.tr/kampanyalar", selectors)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	// No anchor on the page: the page URL itself is the source
	assert.Equal(t, "https://www.migros.com.tr/kampanyalar", candidates[0].SourceURL)
	require.NotNil(t, candidates[0].Title)
	assert.Equal(t, "Market Haftası", *candidates[0].Title)
	assert.Nil(t, candidates[0].DiscountRate)
}

func TestExtractSelectorNotFound(t *testing.T) {
	selectors := listingSelectors()
	selectors.Title = ".does-not-exist"

	_, err := Extract([]byte(listingHTML), "https://www.trendyol.com/kampanyalar", selectors)
	require.Error(t, err)

	var exErr *apperrors.ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "title", exErr.Field)
	assert.Equal(t, apperrors.ReasonSelectorNotFound, exErr.Reason)
}

func TestExtractAmbiguousSelector(t *testing.T) {
	html := `<html><body>
	<div class="card">
		<span class="price">%10</span>
		<span class="price">%20</span>
	</div>
	</body></html>`
	selectors := rule.SelectorSet{Item: "div.card", Discount: ".price"}

	_, err := Extract([]byte(html), "https://example.com/deals", selectors)
	require.Error(t, err)

	var exErr *apperrors.ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "discount", exErr.Field)
	assert.Equal(t, apperrors.ReasonAmbiguous, exErr.Reason)
}

func TestExtractUnparseableDocument(t *testing.T) {
	_, err := Extract([]byte("   "), "https://example.com", listingSelectors())
	require.Error(t, err)

	var exErr *apperrors.ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, apperrors.ReasonUnparseable, exErr.Reason)
	assert.Empty(t, exErr.Field)
}

func TestExtractNoItemsIsNotAnError(t *testing.T) {
	html := `<html><body><p>bugün kampanya yok</p></body></html>`

	candidates, err := Extract([]byte(html), "https://example.com/deals", listingSelectors())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExtractDiscountWithoutDigitsFails(t *testing.T) {
	html := `<html><body>
	<div class="card"><span class="price">yakında</span></div>
	</body></html>`
	selectors := rule.SelectorSet{Item: "div.card", Discount: ".price"}

	_, err := Extract([]byte(html), "https://example.com/deals", selectors)
	require.Error(t, err)

	var exErr *apperrors.ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "discount", exErr.Field)
}

func TestExtractIsDeterministic(t *testing.T) {
	a, err := Extract([]byte(listingHTML), "https://www.trendyol.com/kampanyalar", listingSelectors())
	require.NoError(t, err)
	b, err := Extract([]byte(listingHTML), "https://www.trendyol.com/kampanyalar", listingSelectors())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
