package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type fixture struct {
	engine  *indexer.Engine
	agg     *analytics.Aggregator
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

func newFixture(t *testing.T, opts indexer.Options) *fixture {
	t.Helper()
	e, err := indexer.NewEngine(context.Background(), store.NewMemoryBackend(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	agg := analytics.NewAggregator()
	m := metrics.New(prometheus.NewRegistry())
	h := New(e, agg, m)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("GET /api/v1/documents", h.List)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	return &fixture{engine: e, agg: agg, metrics: m, mux: mux}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestIngestAndGet(t *testing.T) {
	f := newFixture(t, indexer.Options{})

	rec := f.do(http.MethodPost, "/api/v1/documents", `{"title":"Fox","body":"the quick brown fox"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ingestion.IngestResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, uint64(1), resp.DocumentID)
	assert.Equal(t, 4, resp.Length)

	rec = f.do(http.MethodGet, "/api/v1/documents/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc store.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "Fox", doc.Title)
	assert.Equal(t, "the quick brown fox", doc.Body)

	res, err := f.engine.Search(context.Background(), "fox", 5)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DocsIndexedTotal))
	assert.Equal(t, int64(1), f.agg.Stats().DocumentsAdded)
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t, indexer.Options{})

	rec := f.do(http.MethodPost, "/api/v1/documents", `{"title":"t","body":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation failed")

	rec = f.do(http.MethodPost, "/api/v1/documents", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEscapedBodyAtLimit(t *testing.T) {
	f := newFixture(t, indexer.Options{})

	// Every '<' after the first word is escaped as \u003c, so the request
	// is about six times the body length.
	body := "fox " + strings.Repeat("<", validator.MaxBodyLength-4)
	payload, err := json.Marshal(ingestion.IngestRequest{Title: "escaped", Body: body})
	require.NoError(t, err)
	require.Greater(t, len(payload), 5*validator.MaxBodyLength)

	rec := f.do(http.MethodPost, "/api/v1/documents", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res, err := f.engine.Search(context.Background(), "fox", 5)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
}

func TestIngestRequestTooLarge(t *testing.T) {
	f := newFixture(t, indexer.Options{})

	payload := `{"body":"` + strings.Repeat("a", maxRequestBytes) + `"}`
	rec := f.do(http.MethodPost, "/api/v1/documents", payload)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, f.engine.DocumentCount())
}

func TestIngestDuplicate(t *testing.T) {
	opts := indexer.Options{}
	opts.Store.DedupByHash = true
	f := newFixture(t, opts)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/documents", `{"body":"same"}`).Code)
	rec := f.do(http.MethodPost, "/api/v1/documents", `{"body":"same"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, indexer.Options{})
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/documents", `{"body":"short lived"}`).Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/documents/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/documents/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/documents/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/documents/abc", "").Code)
	assert.Equal(t, int64(1), f.agg.Stats().DocumentsRemoved)
}

func TestList(t *testing.T) {
	f := newFixture(t, indexer.Options{})
	for _, body := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/documents", `{"body":"`+body+`"}`).Code)
	}

	rec := f.do(http.MethodGet, "/api/v1/documents?offset=1&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ingestion.DocumentList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, uint64(2), list.Documents[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/documents?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/documents?offset=-1", "").Code)
}
