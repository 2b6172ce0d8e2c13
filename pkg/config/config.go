package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geocoder    GeocoderConfig
	OpenAI      OpenAIConfig
	Reranker    RerankerConfig
	Search      SearchConfig
	Ranking     RankingConfig
	Trace       TraceConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
	// PoolSize and DialTimeoutMs tune the cache connection pool.
	PoolSize      int
	DialTimeoutMs int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// GeocoderConfig holds the external geocoding service configuration
type GeocoderConfig struct {
	Enabled bool
	BaseURL string
	Token   string
}

// OpenAIConfig holds configuration for the OpenAI-compatible API
type OpenAIConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int
	ParseTemperature    float64
	RankTemperature     float64
}

// RerankerConfig holds the cross-encoder service configuration
type RerankerConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	Model   string
}

// SearchConfig holds retrieval configuration
type SearchConfig struct {
	RadiusKm              float64
	SemanticBackend       string // postgres or typesense
	MatchThreshold        float64
	MatchCount            int
	EmbeddingCacheTTLSecs int
}

// RankingConfig holds the ranking constants. The profiles are tuned per mode
// and are not derived from one another.
type RankingConfig struct {
	TopN                  int
	LLMMaxCandidates      int
	RerankPoolSize        int
	SimilarityWeight      float64
	RecencyWeight         float64
	DistanceSemanticScale float64
	DistanceRecencyScale  float64
	HybridSimilarity      float64
	HybridRecency         float64
	HybridProximity       float64
	SemanticHeavySim      float64
	SemanticHeavyRecency  float64
	SimilarityProfile     string // balanced or semantic_heavy
}

// TraceConfig holds trace persistence configuration
type TraceConfig struct {
	Enabled  bool
	PoolSize int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "stall_finder"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),

			PoolSize:      getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutMs: getEnvAsInt("REDIS_DIAL_TIMEOUT_MS", 2000),
		},
		Typesense: TypesenseConfig{
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "stalls"),
		},
		Geocoder: GeocoderConfig{
			Enabled: getEnvAsBool("GEOCODER_ENABLED", true),
			BaseURL: getEnv("ONEMAP_BASE_URL", "https://www.onemap.gov.sg"),
			Token:   getEnv("ONEMAP_TOKEN", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			BaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			ParseTemperature:    getEnvAsFloat("OPENAI_PARSE_TEMPERATURE", 0),
			RankTemperature:     getEnvAsFloat("OPENAI_RANK_TEMPERATURE", 0.2),
		},
		Reranker: RerankerConfig{
			Enabled: getEnvAsBool("RERANKER_ENABLED", false),
			URL:     getEnv("RERANKER_URL", ""),
			APIKey:  getEnv("RERANKER_API_KEY", ""),
			Model:   getEnv("RERANKER_MODEL", "BAAI/bge-reranker-base"),
		},
		Search: SearchConfig{
			RadiusKm:              getEnvAsFloat("SEARCH_RADIUS_KM", 5),
			SemanticBackend:       getEnv("SEMANTIC_BACKEND", "postgres"),
			MatchThreshold:        getEnvAsFloat("SEMANTIC_MATCH_THRESHOLD", 0.3),
			MatchCount:            getEnvAsInt("SEMANTIC_MATCH_COUNT", 50),
			EmbeddingCacheTTLSecs: getEnvAsInt("EMBEDDING_CACHE_TTL_SECONDS", 86400),
		},
		Ranking: DefaultRankingConfig(),
		Trace: TraceConfig{
			Enabled:  getEnvAsBool("TRACE_PERSIST_ENABLED", true),
			PoolSize: getEnvAsInt("TRACE_POOL_SIZE", 4),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "stall-finder"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}
	cfg.Ranking.SimilarityProfile = getEnv("RANKING_SIMILARITY_PROFILE", cfg.Ranking.SimilarityProfile)

	if cfg.Search.RadiusKm <= 0 {
		return nil, fmt.Errorf("SEARCH_RADIUS_KM must be positive, got %v", cfg.Search.RadiusKm)
	}
	switch cfg.Search.SemanticBackend {
	case "postgres", "typesense":
	default:
		return nil, fmt.Errorf("unknown SEMANTIC_BACKEND %q", cfg.Search.SemanticBackend)
	}

	return cfg, nil
}

// DefaultRankingConfig returns the hand-tuned ranking constants.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		TopN:                  10,
		LLMMaxCandidates:      50,
		RerankPoolSize:        20,
		SimilarityWeight:      0.7,
		RecencyWeight:         0.3,
		DistanceSemanticScale: 0.3,
		DistanceRecencyScale:  0.1,
		HybridSimilarity:      0.6,
		HybridRecency:         0.3,
		HybridProximity:       0.1,
		SemanticHeavySim:      0.9,
		SemanticHeavyRecency:  0.1,
		SimilarityProfile:     "balanced",
	}
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
