// Package handler serves the search, index statistics and cache endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Searcher is the query side of the engine.
type Searcher interface {
	Plan(query string, boolean bool) *parser.QueryPlan
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
	Epoch() string
	Generation() uint64
	Stats() indexer.Stats
}

type Config struct {
	DefaultLimit int
	MaxResults   int
	Timeout      time.Duration
}

type Handler struct {
	searcher Searcher
	cache    *cache.QueryCache
	tracker  analytics.Tracker
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	cfg      Config
	logger   *slog.Logger
}

// New creates the search handler. queryCache, tracker, m and tracer may
// be nil.
func New(s Searcher, queryCache *cache.QueryCache, tracker analytics.Tracker, m *metrics.Metrics, tracer *tracing.Tracer, cfg Config) *Handler {
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	return &Handler{
		searcher: s,
		cache:    queryCache,
		tracker:  tracker,
		metrics:  m,
		tracer:   tracer,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&limit=&syntax=plain|boolean.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit := h.cfg.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.cfg.MaxResults)
	}
	syntax := r.URL.Query().Get("syntax")
	switch syntax {
	case "", "plain":
		syntax = "plain"
	case "boolean":
	default:
		h.writeError(w, http.StatusBadRequest, "syntax must be plain or boolean")
		return
	}

	ctx, span := h.tracer.Start(ctx, "search", logger.RequestID(ctx))
	defer span.Finish()
	span.SetAttr("query", query)

	plan := h.searcher.Plan(query, syntax == "boolean")
	version := cache.Version{Epoch: h.searcher.Epoch(), Generation: h.searcher.Generation()}

	var result *executor.SearchResult
	cacheHit := false
	err := resilience.WithTimeout(ctx, h.cfg.Timeout, "search", func(ctx context.Context) error {
		var err error
		if h.cache != nil && !plan.Empty() {
			result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, limit, version, func() (*executor.SearchResult, error) {
				return h.searcher.Execute(ctx, plan, limit)
			})
			return err
		}
		result, err = h.searcher.Execute(ctx, plan, limit)
		return err
	})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Error("search execution failed", "query", query, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, status, "search failed")
		return
	}

	latency := time.Since(start)
	span.SetAttr("total_hits", result.TotalHits)
	span.SetAttr("cache_hit", cacheHit)
	log.Info("search completed",
		"query", query,
		"syntax", syntax,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.observe(latency, result, cacheHit)
	h.tracker.Track(analytics.SearchEvent{
		Type:      analytics.SearchEventType(result.TotalHits, cacheHit),
		Query:     query,
		Syntax:    syntax,
		Terms:     plan.Terms,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	})
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) observe(latency time.Duration, result *executor.SearchResult, cacheHit bool) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero"
	}
	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
}

// Stats serves GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.searcher.Stats()
	if h.metrics != nil {
		h.metrics.IndexDocuments.Set(float64(stats.Index.DocumentCount))
		h.metrics.IndexTerms.Set(float64(stats.Index.TermCount))
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"generation": h.searcher.Generation(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
