// Package config loads and validates application configuration from YAML or
// TOML files, an optional .env file and DS_* environment overrides. It
// provides typed structs for every subsystem (Server, Storage, Index,
// Search, Redis, Kafka, MCP, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	MCP       MCPConfig       `yaml:"mcp"`
	RPC       RPCConfig       `yaml:"rpc"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StorageConfig selects the document store backend and duplicate policy.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlitePath"`
	DedupByHash bool   `yaml:"dedupByHash"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and query cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for analytics and
// document ingest events.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	// DocumentIngest, when set, is consumed and every event is added to
	// the index.
	DocumentIngest string `yaml:"documentIngest"`
}

// IndexConfig controls index checkpoints.
type IndexConfig struct {
	DataDir            string        `yaml:"dataDir"`
	CheckpointInterval time.Duration `yaml:"checkpointInterval"`
	CheckpointsToKeep  int           `yaml:"checkpointsToKeep"`
	RestoreCheckpoint  bool          `yaml:"restoreCheckpoint"`
}

// SearchConfig holds the BM25 constants and query limits.
type SearchConfig struct {
	K1           float64       `yaml:"k1"`
	B            float64       `yaml:"b"`
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	Timeout      time.Duration `yaml:"timeout"`
}

// TokenizerConfig mirrors tokenizer.Options.
type TokenizerConfig struct {
	StopWords bool `yaml:"stopWords"`
	Stem      bool `yaml:"stem"`
	MinLength int  `yaml:"minLength"`
}

// CorpusConfig points at a directory of text files loaded at startup.
type CorpusConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Watch      bool     `yaml:"watch"`
}

// MCPConfig controls the Model Context Protocol endpoint.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
}

// RPCConfig controls the JSON-over-TCP RPC listener.
type RPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RateLimitConfig bounds HTTP requests per client address.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML or TOML config file (if provided), loads a .env file
// when one exists and applies DS_* environment overrides. Missing values
// keep their defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	envFile := os.Getenv("DS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode accepts YAML by default and TOML for .toml files. TOML is
// normalised through YAML so both formats share the yaml tags and
// duration syntax.
func decode(path string, data []byte, cfg *Config) error {
	if !strings.EqualFold(filepath.Ext(path), ".toml") {
		return yaml.Unmarshal(data, cfg)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}
	normalised, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(normalised, cfg)
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: StorageConfig{
			Backend:     BackendMemory,
			SQLitePath:  "data/docsearch.db",
			DedupByHash: false,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-analytics",
			Topics: KafkaTopics{
				AnalyticsEvents: "analytics-events",
				DocumentIngest:  "",
			},
		},
		Index: IndexConfig{
			DataDir:            "data/index",
			CheckpointInterval: 0,
			CheckpointsToKeep:  2,
			RestoreCheckpoint:  true,
		},
		Search: SearchConfig{
			K1:           1.2,
			B:            0.75,
			DefaultLimit: 10,
			MaxResults:   100,
			Timeout:      5 * time.Second,
		},
		Tokenizer: TokenizerConfig{
			MinLength: 1,
		},
		Corpus: CorpusConfig{
			Extensions: []string{".txt", ".md"},
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Addr:      ":8090",
		},
		RPC: RPCConfig{
			Enabled: false,
			Port:    9091,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Search.K1 < 0 {
		return fmt.Errorf("search.k1 must be >= 0, got %v", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.b must be within [0, 1], got %v", c.Search.B)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Tokenizer.MinLength < 0 {
		return fmt.Errorf("tokenizer.minLength must be >= 0, got %d", c.Tokenizer.MinLength)
	}
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("mcp.transport must be stdio or http, got %q", c.MCP.Transport)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rateLimit requires positive requestsPerSecond and burst")
	}
	if c.Index.CheckpointsToKeep < 1 {
		return fmt.Errorf("index.checkpointsToKeep must be >= 1, got %d", c.Index.CheckpointsToKeep)
	}
	return nil
}
