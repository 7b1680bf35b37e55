// Package config loads application configuration from environment
// variables. Required values fail Load so misconfiguration surfaces at
// startup rather than on the first request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	ServerPort  string
	BaseURL     string
	FrontendURL string

	// Model provider
	OpenAIKey string
	AIModel   string
	AIBaseURL string

	// Conversation limits
	TurnTimeout      time.Duration
	StreamTimeout    time.Duration
	MaxToolRounds    int
	ContextLookback  int
	RateLimitPerMin  int
	SessionIdleLimit time.Duration

	// Auth
	JWKSURL   string
	JWTIssuer string

	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	EnableHSTS      bool
	ServerDebugMode bool
	WorkerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", ""),
		AIBaseURL: getEnv("AI_BASE_URL", ""),

		TurnTimeout:      getEnvDuration("COACH_TURN_TIMEOUT", 60*time.Second),
		StreamTimeout:    getEnvDuration("COACH_STREAM_TIMEOUT", 120*time.Second),
		MaxToolRounds:    getEnvInt("COACH_MAX_TOOL_ROUNDS", 5),
		ContextLookback:  getEnvInt("COACH_CONTEXT_LOOKBACK_DAYS", 14),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		SessionIdleLimit: getEnvDuration("SESSION_IDLE_LIMIT", 30*time.Minute),

		JWKSURL:   getEnv("JWKS_URL", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIKey == "" && cfg.AIBaseURL == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required unless AI_BASE_URL points at a local provider")
	}

	if cfg.MaxToolRounds < 1 {
		return nil, fmt.Errorf("COACH_MAX_TOOL_ROUNDS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
