// Package config loads process configuration from the environment, the way
// the teacher repo's config package does: typed getters with documented
// defaults, then a fail-fast validation pass.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	Host string
	Port int
}

func (s *ServerConfig) Address() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// DatabaseConfig configures the metadata store connection.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig configures the cache/broker connection.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r *RedisConfig) Address() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// DuplicateScope governs how content-hash deduplication is scoped (spec §9
// open question). per_tenant is accepted but behaves as global until a
// tenant column exists in the schema.
type DuplicateScope string

const (
	DuplicateScopeGlobal    DuplicateScope = "global"
	DuplicateScopePerUpload DuplicateScope = "per_upload"
	DuplicateScopePerTenant DuplicateScope = "per_tenant"
)

// LimitsConfig carries the invariant limits from spec §3/§6.
type LimitsConfig struct {
	MaxDocsPerBatch int
	MaxFileBytes    int64
	MaxPages        int
	MaxChunkTokens  int
	MinChunkTokens  int
	OverlapTokens   int
	MaxContextTokens int
	DuplicateScope  DuplicateScope
}

// RetrievalConfig carries retrieval-tuning parameters from spec §6.
type RetrievalConfig struct {
	TopK            int
	MMRLambda       float64
	RetrievalMethod string // "semantic" | "keyword" | "hybrid"
	RRFk            int
	BM25k1          float64
	BM25b           float64
}

// ProviderConfig names the active embedding/LLM/vector-store providers and
// their connection details. API credentials are opaque strings per spec §6.
type ProviderConfig struct {
	EmbeddingProvider string // "openai" | "gemini" | "fake"
	LLMProvider       string // "openai" | "anthropic" | "fake"
	EmbeddingModel    string
	GenerationModel   string
	EmbeddingAPIKey   string
	LLMAPIKey         string
	EmbeddingDimension int
	VectorStoreHost   string
	VectorStorePort   int
	VectorIndexName   string
	VectorMetric      string // "cosine" | "dot" | "euclid"
	TokenizerName     string
}

// ConcurrencyConfig carries the bounded-parallelism knobs of spec §5/§6.
type ConcurrencyConfig struct {
	IngestConcurrency int
	IndexConcurrency  int
	EmbedBatchSize    int
	UpsertBatchSize   int
	EmbedRetryMax     int
	EmbedRetryDelay   time.Duration
	LLMTimeoutSeconds int
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string
	Development bool
}

// Config is the fully assembled process configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Limits      LimitsConfig
	Retrieval   RetrievalConfig
	Providers   ProviderConfig
	Concurrency ConcurrencyConfig
	Logging     LoggingConfig
}

// Load builds Config from environment variables with defaults, then
// validates it. It never panics; callers treat a non-nil error as a fatal
// startup condition.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docqa"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "docqa"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Limits: LimitsConfig{
			MaxDocsPerBatch:  getEnvAsInt("MAX_DOCS_PER_BATCH", 20),
			MaxFileBytes:     int64(getEnvAsInt("MAX_FILE_BYTES", 50*1024*1024)),
			MaxPages:         getEnvAsInt("MAX_PAGES", 1000),
			MaxChunkTokens:   getEnvAsInt("MAX_CHUNK_TOKENS", 1000),
			MinChunkTokens:   getEnvAsInt("MIN_CHUNK_TOKENS", 100),
			OverlapTokens:    getEnvAsInt("OVERLAP_TOKENS", 150),
			MaxContextTokens: getEnvAsInt("MAX_CONTEXT_TOKENS", 6000),
			DuplicateScope:   DuplicateScope(getEnv("DUPLICATE_SCOPE", string(DuplicateScopeGlobal))),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("TOP_K", 10),
			MMRLambda:       getEnvAsFloat("MMR_LAMBDA", 0.5),
			RetrievalMethod: getEnv("RETRIEVAL_METHOD", "hybrid"),
			RRFk:            getEnvAsInt("RRF_K", 60),
			BM25k1:          getEnvAsFloat("BM25_K1", 1.2),
			BM25b:           getEnvAsFloat("BM25_B", 0.75),
		},
		Providers: ProviderConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			GenerationModel:    getEnv("GENERATION_MODEL", "gpt-4o-mini"),
			EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
			LLMAPIKey:          getEnv("LLM_API_KEY", ""),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			VectorStoreHost:    getEnv("VECTOR_STORE_HOST", "localhost"),
			VectorStorePort:    getEnvAsInt("VECTOR_STORE_PORT", 6334),
			VectorIndexName:    getEnv("VECTOR_INDEX_NAME", "docqa_chunks"),
			VectorMetric:       getEnv("VECTOR_METRIC", "cosine"),
			TokenizerName:      getEnv("TOKENIZER_NAME", "cl100k_base"),
		},
		Concurrency: ConcurrencyConfig{
			IngestConcurrency: getEnvAsInt("INGEST_CONCURRENCY", 5),
			IndexConcurrency:  getEnvAsInt("INDEX_CONCURRENCY", 3),
			EmbedBatchSize:    getEnvAsInt("EMBED_BATCH_SIZE", 32),
			UpsertBatchSize:   getEnvAsInt("UPSERT_BATCH_SIZE", 100),
			EmbedRetryMax:     getEnvAsInt("EMBED_RETRY_MAX", 5),
			EmbedRetryDelay:   time.Duration(getEnvAsInt("EMBED_RETRY_DELAY_MS", 200)) * time.Millisecond,
			LLMTimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Limits.MaxDocsPerBatch <= 0 {
		return fmt.Errorf("MAX_DOCS_PER_BATCH must be positive")
	}
	if c.Limits.MaxFileBytes <= 0 {
		return fmt.Errorf("MAX_FILE_BYTES must be positive")
	}
	if c.Limits.MinChunkTokens <= 0 || c.Limits.MaxChunkTokens <= 0 || c.Limits.MinChunkTokens > c.Limits.MaxChunkTokens {
		return fmt.Errorf("MIN_CHUNK_TOKENS/MAX_CHUNK_TOKENS misconfigured")
	}
	if c.Limits.OverlapTokens < 0 || c.Limits.OverlapTokens >= c.Limits.MaxChunkTokens {
		return fmt.Errorf("OVERLAP_TOKENS must be non-negative and smaller than MAX_CHUNK_TOKENS")
	}
	switch c.Limits.DuplicateScope {
	case DuplicateScopeGlobal, DuplicateScopePerUpload, DuplicateScopePerTenant:
	default:
		return fmt.Errorf("DUPLICATE_SCOPE %q is not a recognized scope", c.Limits.DuplicateScope)
	}
	if c.Providers.TokenizerName == "" {
		return fmt.Errorf("TOKENIZER_NAME must be set")
	}
	if c.Providers.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive")
	}
	if c.Concurrency.IngestConcurrency <= 0 || c.Concurrency.IndexConcurrency <= 0 {
		return fmt.Errorf("concurrency limits must be positive")
	}
	if c.Concurrency.EmbedBatchSize <= 0 || c.Concurrency.UpsertBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string, sep string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.Split(v, sep)
	}
	return fallback
}
