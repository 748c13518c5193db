package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	pgstore "github.com/Adithya-Monish-Kumar-K/docsearch/internal/store/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store/sqlite"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	pgclient "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// pinger is implemented by backends that talk to a database.
type pinger interface {
	Ping(ctx context.Context) error
}

var connectRetry = resilience.RetryConfig{
	MaxAttempts:    5,
	InitialDelay:   500 * time.Millisecond,
	MaxDelay:       5 * time.Second,
	Multiplier:     2,
	JitterFraction: 0.2,
}

// openBackend opens the configured document store backend. Network
// backends are retried with backoff so the service can start before its
// database does.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		b, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("document store opened", "backend", "sqlite", "path", cfg.Storage.SQLitePath)
		return b, nil
	case config.BackendPostgres:
		var client *pgclient.Client
		err := resilience.Retry(ctx, "postgres-connect", connectRetry, func() error {
			var err error
			client, err = pgclient.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b, err := pgstore.New(ctx, client)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("document store opened", "backend", "postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return b, nil
	default:
		slog.Info("document store opened", "backend", "memory")
		return store.NewMemoryBackend(), nil
	}
}

// engineOptions maps cfg onto engine options. Checkpoints only make sense
// with a persistent backend, so they are disabled for the memory backend.
func engineOptions(cfg *config.Config) indexer.Options {
	opts := indexer.OptionsFromConfig(cfg)
	if cfg.Storage.Backend == config.BackendMemory {
		opts.DataDir = ""
	}
	return opts
}

// openEngine opens the backend and builds the engine over it.
func openEngine(ctx context.Context, cfg *config.Config) (*indexer.Engine, store.Backend, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := indexer.NewEngine(ctx, backend, engineOptions(cfg))
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("starting engine: %w", err)
	}
	return engine, backend, nil
}

// loadCorpus loads cfg.Corpus.Dir, or dir when given, into the engine.
func loadCorpus(ctx context.Context, engine *indexer.Engine, cfg *config.Config, dir string) (*corpus.Loader, int, error) {
	if dir == "" {
		dir = cfg.Corpus.Dir
	}
	loader := corpus.NewLoader(engine, cfg.Corpus.Extensions)
	if dir == "" {
		return loader, 0, nil
	}
	n, err := loader.LoadDir(ctx, dir)
	if err != nil {
		return nil, 0, err
	}
	return loader, n, nil
}
