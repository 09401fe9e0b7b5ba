package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kampanyasepeti/crawlworker/internal/catalog"
	"kampanyasepeti/crawlworker/internal/fetch"
	"kampanyasepeti/crawlworker/internal/ingest"
	"kampanyasepeti/crawlworker/internal/prefs"
	"kampanyasepeti/crawlworker/internal/rule"
	"kampanyasepeti/crawlworker/internal/scheduler"
	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// failFetcher fails every fetch; API tests never reach the network
type failFetcher struct{}

func (failFetcher) Fetch(ctx context.Context, url string) (*fetch.Document, error) {
	return nil, &apperrors.FetchError{Kind: apperrors.FetchUnreachable, URL: url}
}

type testServer struct {
	router  *gin.Engine
	rules   rule.Store
	catalog *catalog.MemoryCatalog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cat := catalog.NewMemoryCatalog()
	cat.AddCategory(catalog.Category{ID: "cat-moda", Name: "Moda"})
	cat.AddCategory(catalog.Category{ID: "cat-market", Name: "Market"})
	cat.AddBrand(catalog.Brand{ID: "brand-1", Name: "Trendyol", CategoryIDs: []string{"cat-moda"}})
	cat.AddBrand(catalog.Brand{ID: "brand-2", Name: "Migros", CategoryIDs: []string{"cat-market"}})

	rules := rule.NewMemoryStore(cat)
	engine := ingest.NewEngine(cat, cat, nil, nil)
	sched := scheduler.New(rules, failFetcher{}, engine, nil, nil)
	prefSvc := prefs.NewService(prefs.NewMemoryKV())

	server := NewServer(rules, cat, cat, cat, sched, prefSvc, nil)
	return &testServer{router: server.Router(), rules: rules, catalog: cat}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func validRuleBody() map[string]interface{} {
	return map[string]interface{}{
		"brand_id": "brand-1",
		"url":      "https://www.trendyol.com/kampanyalar",
		"selectors": map[string]string{
			"selector_item":  "div.deal",
			"selector_title": ".deal-title",
		},
		"schedule":  "daily",
		"is_active": true,
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRule(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/rules", validRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	decode(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "due", created.State, "a fresh active rule is immediately due")
}

func TestCreateRuleValidation(t *testing.T) {
	ts := newTestServer(t)

	body := validRuleBody()
	body["url"] = "not-a-url"
	rec := ts.do(t, http.MethodPost, "/api/v1/rules", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = validRuleBody()
	body["brand_id"] = "brand-404"
	rec = ts.do(t, http.MethodPost, "/api/v1/rules", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRuleNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/rules/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRule(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/rules", validRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = ts.do(t, http.MethodPut, "/api/v1/rules/"+created.ID, map[string]interface{}{
		"schedule": "weekly",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Schedule string `json:"schedule"`
		URL      string `json:"url"`
	}
	decode(t, rec, &updated)
	assert.Equal(t, "weekly", updated.Schedule)
	assert.Equal(t, "https://www.trendyol.com/kampanyalar", updated.URL, "unpatched fields survive")
}

func TestDeleteRuleTwice(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/rules", validRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = ts.do(t, http.MethodDelete, "/api/v1/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetRuleActive(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/rules", validRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = ts.do(t, http.MethodPut, "/api/v1/rules/"+created.ID+"/active", map[string]interface{}{
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated struct {
		Active bool   `json:"is_active"`
		State  string `json:"state"`
	}
	decode(t, rec, &updated)
	assert.False(t, updated.Active)
	assert.Equal(t, "disabled", updated.State)

	// Missing flag is a bad request, not a silent default
	rec = ts.do(t, http.MethodPut, "/api/v1/rules/"+created.ID+"/active", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRule(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/rules", validRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = ts.do(t, http.MethodPost, "/api/v1/rules/"+created.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted struct {
		RuleID    string    `json:"rule_id"`
		StartedAt time.Time `json:"started_at"`
	}
	decode(t, rec, &accepted)
	assert.Equal(t, created.ID, accepted.RuleID)
	assert.False(t, accepted.StartedAt.IsZero())
}

func TestTriggerInactiveRule(t *testing.T) {
	ts := newTestServer(t)

	body := validRuleBody()
	body["is_active"] = false
	rec := ts.do(t, http.MethodPost, "/api/v1/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = ts.do(t, http.MethodPost, "/api/v1/rules/"+created.ID+"/run", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerUnknownRule(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/rules/missing/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRulesFiltered(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/rules", validRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	other := validRuleBody()
	other["brand_id"] = "brand-2"
	other["is_active"] = false
	rec = ts.do(t, http.MethodPost, "/api/v1/rules", other)
	require.Equal(t, http.StatusCreated, rec.Code)

	var listing struct {
		Count int `json:"count"`
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, 2, listing.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/rules?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, 1, listing.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/rules?brand_id=brand-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, 1, listing.Count)
}

func TestListCampaigns(t *testing.T) {
	ts := newTestServer(t)

	now := time.Now().UTC()
	rate := 25
	_, err := ts.catalog.Insert(context.Background(), &catalog.Campaign{
		BrandID:      "brand-1",
		CategoryID:   "cat-moda",
		Title:        "Yaz İndirimi",
		DiscountRate: &rate,
		SourceURL:    "https://www.trendyol.com/kampanya/yaz",
		Status:       catalog.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSeenAt:   now,
	})
	require.NoError(t, err)

	var listing struct {
		Count int `json:"count"`
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/campaigns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, 1, listing.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/campaigns?brand_id=brand-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, 0, listing.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/campaigns?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/campaigns?sort=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/campaigns?sort=highest_discount", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBrandsAndCategories(t *testing.T) {
	ts := newTestServer(t)

	var brands struct {
		Count int `json:"count"`
	}
	rec := ts.do(t, http.MethodGet, "/api/v1/brands", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &brands)
	assert.Equal(t, 2, brands.Count)

	var categories struct {
		Count int `json:"count"`
	}
	rec = ts.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &categories)
	assert.Equal(t, 2, categories.Count)
}

func TestFollowEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/follows/brands/brand-1/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled struct {
		Following bool `json:"following"`
	}
	decode(t, rec, &toggled)
	assert.True(t, toggled.Following)

	rec = ts.do(t, http.MethodPost, "/api/v1/follows/brands/brand-404/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/follows/categories/cat-moda/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state struct {
		BrandIDs    []string `json:"brand_ids"`
		CategoryIDs []string `json:"category_ids"`
	}
	rec = ts.do(t, http.MethodGet, "/api/v1/follows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &state)
	assert.Equal(t, []string{"brand-1"}, state.BrandIDs)
	assert.Equal(t, []string{"cat-moda"}, state.CategoryIDs)
}

func TestSubscriptionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var sub struct {
		IsPremium bool `json:"is_premium"`
	}
	rec := ts.do(t, http.MethodGet, "/api/v1/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &sub)
	assert.False(t, sub.IsPremium)

	rec = ts.do(t, http.MethodPut, "/api/v1/subscription", map[string]string{"plan": "premium_monthly"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &sub)
	assert.True(t, sub.IsPremium)

	rec = ts.do(t, http.MethodPut, "/api/v1/subscription", map[string]string{"plan": "platinum"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var role struct {
		Role string `json:"role"`
	}
	rec := ts.do(t, http.MethodGet, "/api/v1/profile/role", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &role)
	assert.Equal(t, "user", role.Role)

	rec = ts.do(t, http.MethodPost, "/api/v1/profile/role/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &role)
	assert.Equal(t, "admin", role.Role)
}
