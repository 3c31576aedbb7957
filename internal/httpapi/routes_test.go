package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"priceradar-backend/internal/cache"
	"priceradar-backend/internal/feed"
	"priceradar-backend/internal/model"
	"priceradar-backend/internal/search"
	"priceradar-backend/internal/source"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	now := time.Now().UTC()
	saturn := source.NewMemoryAdapter(model.SourceSaturn)
	mm := source.NewMemoryAdapter(model.SourceMediaMarkt)
	seed := []struct {
		ad   *source.MemoryAdapter
		recs []model.ProductRecord
	}{
		{saturn, []model.ProductRecord{
			{ID: "s1", Title: "samsung galaxy", Brand: "Samsung", Category: "Handys",
				GTIN: "4003333333333", Price: 799, Currency: "EUR",
				ImageURL: "https://img/s1", ScrapedAt: &now},
			{ID: "s2", Title: "Galaxy Book Samsung", Brand: "Samsung", Category: "Laptops",
				Price: 1099, Currency: "EUR", ScrapedAt: &now},
		}},
		{mm, []model.ProductRecord{
			{ID: "m1", Title: "iPhone 15", Brand: "Apple", Category: "Handys",
				GTIN: "4003333333333", Price: 949, Currency: "EUR", ScrapedAt: &now},
		}},
	}
	for _, s := range seed {
		for _, rec := range s.recs {
			require.NoError(t, s.ad.Upsert(context.Background(), rec))
		}
	}

	registry := source.NewRegistry()
	require.NoError(t, registry.Register(saturn, source.DefaultOptions))
	require.NoError(t, registry.Register(mm, source.DefaultOptions))

	log := zap.NewNop()
	svc := search.NewService(registry, cache.NewMemory(), search.Config{}, log)
	fb := feed.NewBuilder(registry, "https://priceradar.example.com", log)
	retailers := []model.Retailer{
		{Name: "Saturn", Slug: model.SourceSaturn, Website: "https://www.saturn.de"},
		{Name: "MediaMarkt", Slug: model.SourceMediaMarkt, Website: "https://www.mediamarkt.de"},
	}

	r := mux.NewRouter()
	NewServer(svc, fb, registry, retailers, log).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *mux.Router, path string, dst any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if dst != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
	}
	return rec
}

func TestProductsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	var resp model.SearchResponse
	rec := doJSON(t, r, "/api/products?search=Samsung+Galaxy", &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "s1", resp.Results[0].ID)
	assert.Equal(t, model.SourceSaturn, resp.Results[0].Source)
	assert.False(t, resp.HasNext)
}

func TestProductsScoreNotSerialized(t *testing.T) {
	r := newTestRouter(t)

	var raw map[string]any
	doJSON(t, r, "/api/products?search=iphone", &raw)
	results := raw["results"].([]any)
	require.NotEmpty(t, results)
	first := results[0].(map[string]any)
	_, hasScore := first["Score"]
	assert.False(t, hasScore)
	assert.Equal(t, "mediamarkt", first["retailer"])
}

func TestProductsRetailerFilter(t *testing.T) {
	r := newTestRouter(t)

	var resp model.SearchResponse
	doJSON(t, r, "/api/products?retailer=MEDIAMARKT", &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "m1", resp.Results[0].ID)
}

func TestProductByIDAndNotFound(t *testing.T) {
	r := newTestRouter(t)

	var rec model.ScoredCandidate
	res := doJSON(t, r, "/api/products/s2", &rec)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Galaxy Book Samsung", rec.Title)

	res = doJSON(t, r, "/api/products/unknown", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "Product not found")
}

func TestByEANAcrossSources(t *testing.T) {
	r := newTestRouter(t)

	var list struct {
		Results []model.ScoredCandidate `json:"results"`
	}
	res := doJSON(t, r, "/api/products/by_ean/4003333333333", &list)
	assert.Equal(t, http.StatusOK, res.Code)
	require.Len(t, list.Results, 2)

	res = doJSON(t, r, "/api/products/by_ean/1111111111111", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestSimilarEndpoint(t *testing.T) {
	r := newTestRouter(t)

	var list struct {
		Results []model.ScoredCandidate `json:"results"`
	}
	res := doJSON(t, r, "/api/products/s1/similar?limit=5", &list)
	assert.Equal(t, http.StatusOK, res.Code)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "m1", list.Results[0].ID, "same category from the other source")
}

func TestCategoriesEndpoint(t *testing.T) {
	r := newTestRouter(t)

	var page model.CategoryPage
	doJSON(t, r, "/api/categories", &page)
	assert.Equal(t, 2, page.Count)
	require.NotEmpty(t, page.Results)
	assert.Equal(t, "Handys", page.Results[0].Name)
	assert.Equal(t, 2, page.Results[0].Total)
}

func TestRetailersEndpoint(t *testing.T) {
	r := newTestRouter(t)

	var list struct {
		Results []model.Retailer `json:"results"`
	}
	doJSON(t, r, "/api/retailers", &list)
	require.Len(t, list.Results, 2)
	assert.Equal(t, model.SourceSaturn, list.Results[0].Slug)
}

func TestHealthAndStatus(t *testing.T) {
	r := newTestRouter(t)

	res := doJSON(t, r, "/api/health", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "healthy")

	var status struct {
		Status  string                    `json:"status"`
		Sources map[string]map[string]any `json:"sources"`
	}
	doJSON(t, r, "/api/status", &status)
	assert.Equal(t, "operational", status.Status)
	assert.Equal(t, float64(2), status.Sources["saturn"]["products"])
}

func TestXMLNegotiation(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health?format=xml", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<health>")
	assert.Contains(t, rec.Body.String(), "<status>healthy</status>")
}

func TestGzipWhenAccepted(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x1f\x8b"), "gzip magic bytes")
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "/api/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "upstream-id", rr.Header().Get("X-Request-ID"))
}

func TestMerchantFeedEndpoint(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "/feed/google-merchant", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<g:id>saturn-s1</g:id>")
}
