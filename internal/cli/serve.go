package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	indexconsumer "github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcp"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/rpcapi"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/rpc"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP document and search API. Depending on configuration this
also starts the RPC listener, the MCP streamable HTTP endpoint, the metrics
server, the Redis query cache and the Kafka analytics pipeline.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	slog.Info("starting docsearch", "version", version, "port", cfg.Server.Port, "backend", cfg.Storage.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := engineOptions(cfg)
	opts.OnCheckpoint = func(_ string, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.CheckpointsTotal.WithLabelValues(status).Inc()
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	engine, err := indexer.NewEngine(ctx, backend, opts)
	if err != nil {
		backend.Close()
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Error("closing engine failed", "error", err)
		}
	}()

	loader, loaded, err := loadCorpus(ctx, engine, cfg, "")
	if err != nil {
		return err
	}
	stats := engine.Stats()
	m.IndexDocuments.Set(float64(stats.Index.DocumentCount))
	m.IndexTerms.Set(float64(stats.Index.TermCount))
	slog.Info("engine ready", "documents", stats.Documents, "terms", stats.Index.TermCount, "corpus_loaded", loaded)

	g, gctx := errgroup.WithContext(ctx)

	aggregator := analytics.NewAggregator()
	var tracker analytics.Tracker = aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, time.Second)
		collector.Start(gctx)
		defer collector.Close()
		tracker = collector

		consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
		g.Go(func() error { return consumer.Start(gctx) })
		slog.Info("analytics pipeline started", "topic", topic)

		if ingestTopic := cfg.Kafka.Topics.DocumentIngest; ingestTopic != "" {
			ingest := kafka.NewConsumer(cfg.Kafka, ingestTopic, indexconsumer.HandleMessage(engine, tracker, m))
			g.Go(func() error { return ingest.Start(gctx) })
			slog.Info("document ingest consumer started", "topic", ingestTopic)
		}
	}

	queryCache, redisClient := openCache(ctx, cfg, m)
	if redisClient != nil {
		defer redisClient.Close()
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		st := engine.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", st.Index.DocumentCount, st.Index.TermCount),
		}
	})
	if p, ok := backend.(pinger); ok {
		checker.Register("store", health.FromError(p.Ping))
	}
	if redisClient != nil {
		checker.Register("redis", health.Degradable(redisClient.Ping))
	}

	handlers := router.Handlers{
		Documents: ingesthandler.New(engine, tracker, m),
		Search: searchhandler.New(engine, queryCache, tracker, m, tracing.NewTracer(cfg.Tracing), searchhandler.Config{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxResults:   cfg.Search.MaxResults,
			Timeout:      cfg.Search.Timeout,
		}),
		Analytics: analytics.NewHandler(aggregator),
		Health:    checker,
	}
	routerOpts := router.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     m,
		Timeout:     cfg.Server.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		limiter := pkgmw.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		routerOpts.Limiter = limiter
		g.Go(func() error {
			sweepLimiter(gctx, limiter)
			return nil
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(handlers, routerOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.RPC.Enabled {
		rpcServer := rpc.NewServer()
		rpcapi.Register(rpcServer, engine, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
		g.Go(func() error { return rpcServer.Serve(fmt.Sprintf(":%d", cfg.RPC.Port)) })
		g.Go(func() error {
			<-gctx.Done()
			rpcServer.Stop()
			return nil
		})
	}

	if cfg.MCP.Transport == "http" {
		mcpServer, err := mcp.NewServer(engine, cfg.Search.MaxResults)
		if err != nil {
			return err
		}
		g.Go(func() error { return mcpServer.RunHTTP(gctx, cfg.MCP.Addr) })
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	engine.StartCheckpointLoop(gctx, cfg.Index.CheckpointInterval)

	if cfg.Corpus.Watch && cfg.Corpus.Dir != "" {
		g.Go(func() error { return loader.Watch(gctx, cfg.Corpus.Dir) })
	}

	err = g.Wait()
	slog.Info("docsearch stopped")
	return err
}

// openCache connects to Redis when enabled. A connection failure disables
// caching rather than failing startup.
func openCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*cache.QueryCache, *pkgredis.Client) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		return nil, nil
	}
	breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	return cache.New(client, cfg.Redis.CacheTTL, breaker), client
}

func sweepLimiter(ctx context.Context, l *pkgmw.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter swept idle clients", "removed", n)
			}
		}
	}
}
