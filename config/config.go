package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Qdrant    QdrantConfig    `json:"qdrant"`
	Embedding EmbeddingConfig `json:"embedding"`
	LLM       LLMConfig       `json:"llm"`
	WebSearch WebSearchConfig `json:"web_search"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	CORS      CORSConfig      `json:"cors"`
	Logging   LoggingConfig   `json:"logging"`
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxLifetime  int    `json:"max_lifetime"`
}

// QdrantConfig holds configuration for the Qdrant vector search API
type QdrantConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
	VectorDim  int    `json:"vector_dim"`
	Timeout    int    `json:"timeout"`
}

// EmbeddingConfig holds configuration for the text embedding API
type EmbeddingConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// LLMConfig holds configuration for the chat completion API
type LLMConfig struct {
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Timeout     int     `json:"timeout"`
}

// WebSearchConfig holds configuration for the Tavily web search API
type WebSearchConfig struct {
	BaseURL     string `json:"base_url"`
	APIKey      string `json:"api_key"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
	Timeout     int    `json:"timeout"`
}

// RedisConfig holds configuration for the optional Redis cache backend.
// When Enabled is false the session caches run in-process.
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
}

// CacheConfig holds session cache parameters
type CacheConfig struct {
	TTLSeconds      int `json:"ttl_seconds"`       // safety net for sessions that skip cleanup
	SweepSeconds    int `json:"sweep_seconds"`     // in-memory expiry sweep interval
	MaxHistoryTurns int `json:"max_history_turns"` // one turn = user message + assistant reply
	MaxContextDocs  int `json:"max_context_docs"`  // cap on cached document chunks per session
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "policyuser"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "policy_db"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
		},
		Qdrant: QdrantConfig{
			BaseURL:    getEnv("QDRANT_BASE_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "policy_documents"),
			VectorDim:  getEnvAsInt("QDRANT_VECTOR_DIM", 1536),
			Timeout:    getEnvAsInt("QDRANT_TIMEOUT", 10),
		},
		Embedding: EmbeddingConfig{
			BaseURL: getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"),
			APIKey:  getEnv("EMBEDDING_API_KEY", ""),
			Model:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Timeout: getEnvAsInt("EMBEDDING_TIMEOUT", 10),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4o"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.1),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 2048),
			Timeout:     getEnvAsInt("LLM_TIMEOUT", 120),
		},
		WebSearch: WebSearchConfig{
			BaseURL:     getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
			APIKey:      getEnv("TAVILY_API_KEY", ""),
			MaxResults:  getEnvAsInt("WEB_SEARCH_MAX_RESULTS", 5),
			SearchDepth: getEnv("WEB_SEARCH_DEPTH", "advanced"),
			Timeout:     getEnvAsInt("WEB_SEARCH_TIMEOUT", 10),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Cache: CacheConfig{
			TTLSeconds:      getEnvAsInt("CACHE_TTL_SECONDS", 86400),
			SweepSeconds:    getEnvAsInt("CACHE_SWEEP_SECONDS", 300),
			MaxHistoryTurns: getEnvAsInt("CACHE_MAX_HISTORY_TURNS", 25),
			MaxContextDocs:  getEnvAsInt("CACHE_MAX_CONTEXT_DOCS", 500),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func validateConfig(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required (DB_PASSWORD)")
	}

	if config.Qdrant.BaseURL == "" {
		return fmt.Errorf("qdrant base URL is required (QDRANT_BASE_URL)")
	}

	if config.LLM.BaseURL == "" {
		return fmt.Errorf("LLM base URL is required (LLM_BASE_URL)")
	}

	// Tavily API key is optional - answers degrade to document-only evidence
	// and policy search skips the web fallback when it is missing.

	if config.Cache.MaxHistoryTurns <= 0 {
		return fmt.Errorf("CACHE_MAX_HISTORY_TURNS must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
