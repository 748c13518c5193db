package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

func newTestRouter(t *testing.T, opts Options) (http.Handler, *health.Checker) {
	t.Helper()
	e, err := indexer.NewEngine(context.Background(), store.NewMemoryBackend(), indexer.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	agg := analytics.NewAggregator()
	m := metrics.New(prometheus.NewRegistry())
	if opts.Metrics == nil {
		opts.Metrics = m
	}
	checker := health.NewChecker()
	h := Handlers{
		Documents: ingesthandler.New(e, agg, m),
		Search: searchhandler.New(e, nil, agg, m, nil, searchhandler.Config{
			DefaultLimit: 10, MaxResults: 100, Timeout: time.Second,
		}),
		Analytics: analytics.NewHandler(agg),
		Health:    checker,
	}
	return New(h, opts), checker
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestDocumentLifecycleThroughRouter(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rec := do(h, http.MethodPost, "/api/v1/documents", `{"title":"fox","body":"the quick brown fox"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader))
	var created ingestion.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = do(h, http.MethodPost, "/api/v1/documents", `{"title":"dog","body":"the lazy dog"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/search?q=fox", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, created.DocumentID, res.Results[0].DocID)

	rec = do(h, http.MethodDelete, "/api/v1/documents/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodGet, "/api/v1/documents/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/search?q=fox", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res = executor.SearchResult{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Empty(t, res.Results)

	rec = do(h, http.MethodGet, "/api/v1/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats analytics.AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Equal(t, int64(2), stats.DocumentsAdded)
	assert.Equal(t, int64(1), stats.DocumentsRemoved)

	rec = do(h, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h, checker := newTestRouter(t, Options{})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/ready", "").Code)

	checker.Register("store", health.FromError(func(context.Context) error {
		return errors.New("unreachable")
	}))
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/health/ready", "").Code)
}

func TestRateLimitSkipsHealth(t *testing.T) {
	h, _ := newTestRouter(t, Options{Limiter: pkgmw.NewLimiter(0.001, 1)})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/stats", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/v1/stats", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/live", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, Options{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
