// Package router wires up all HTTP routes and applies the middleware chain
// (RequestID → CORS → RateLimit → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

// Handlers groups the endpoint handlers. Analytics and Health may be nil.
type Handlers struct {
	Documents *ingesthandler.Handler
	Search    *searchhandler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
}

// Options configures the middleware chain. A nil Limiter disables rate
// limiting, nil Metrics disables request metrics and a zero Timeout
// disables the request deadline.
type Options struct {
	CORSOrigins []string
	Limiter     *pkgmw.Limiter
	Metrics     *metrics.Metrics
	Timeout     time.Duration
}

// New builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/documents           → add document
//	GET    /api/v1/documents           → list documents
//	GET    /api/v1/documents/{id}      → get document
//	DELETE /api/v1/documents/{id}      → remove document
//	GET    /api/v1/search              → ranked search
//	GET    /api/v1/stats               → index statistics
//	GET    /api/v1/analytics           → aggregated search analytics
//	GET    /api/v1/cache/stats         → query cache counters
//	POST   /api/v1/cache/invalidate    → drop cached results
//	GET    /health/live, /health/ready → health checks
func New(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /health/live", h.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", h.Health.ReadyHandler())
	}

	mux.HandleFunc("POST /api/v1/documents", h.Documents.Ingest)
	mux.HandleFunc("GET /api/v1/documents", h.Documents.List)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Documents.Get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Documents.Delete)

	mux.HandleFunc("GET /api/v1/search", h.Search.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Search.Stats)

	mux.HandleFunc("GET /api/v1/cache/stats", h.Search.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.Search.CacheInvalidate)

	if h.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", h.Analytics.Stats)
	}

	// applied inside-out
	var chain http.Handler = mux
	if opts.Timeout > 0 {
		chain = pkgmw.Timeout(opts.Timeout)(chain)
	}
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	if opts.Limiter != nil {
		chain = pkgmw.RateLimit(opts.Limiter, opts.Metrics)(chain)
	}
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig(opts.CORSOrigins))(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
