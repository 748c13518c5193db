package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields. Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	setInt("DS_SERVER_PORT", &cfg.Server.Port)
	setDuration("DS_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("DS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}

	setString("DS_STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("DS_STORAGE_SQLITE_PATH", &cfg.Storage.SQLitePath)
	setBool("DS_STORAGE_DEDUP_BY_HASH", &cfg.Storage.DedupByHash)

	setString("DS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("DS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("DS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("DS_POSTGRES_USER", &cfg.Postgres.User)
	setString("DS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("DS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	setBool("DS_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("DS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("DS_REDIS_PASSWORD", &cfg.Redis.Password)
	setDuration("DS_REDIS_CACHE_TTL", &cfg.Redis.CacheTTL)

	setBool("DS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("DS_KAFKA_INGEST_TOPIC", &cfg.Kafka.Topics.DocumentIngest)

	setString("DS_INDEX_DATA_DIR", &cfg.Index.DataDir)
	setDuration("DS_INDEX_CHECKPOINT_INTERVAL", &cfg.Index.CheckpointInterval)

	setFloat("DS_SEARCH_K1", &cfg.Search.K1)
	setFloat("DS_SEARCH_B", &cfg.Search.B)
	setInt("DS_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("DS_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)

	setBool("DS_TOKENIZER_STOP_WORDS", &cfg.Tokenizer.StopWords)
	setBool("DS_TOKENIZER_STEM", &cfg.Tokenizer.Stem)

	setString("DS_CORPUS_DIR", &cfg.Corpus.Dir)
	setBool("DS_CORPUS_WATCH", &cfg.Corpus.Watch)

	setString("DS_MCP_TRANSPORT", &cfg.MCP.Transport)
	setString("DS_MCP_ADDR", &cfg.MCP.Addr)

	setBool("DS_RPC_ENABLED", &cfg.RPC.Enabled)
	setInt("DS_RPC_PORT", &cfg.RPC.Port)

	setBool("DS_RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)

	setString("DS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("DS_LOGGING_FORMAT", &cfg.Logging.Format)

	setBool("DS_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setBool("DS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("DS_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
