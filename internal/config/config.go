// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// MongoDB settings (empty MongoURI selects the in-memory store)
	MongoURI      string
	MongoDatabase string

	// Redis settings (empty RedisAddr selects the in-process lock)
	RedisAddr     string
	RedisPassword string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Model service settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultProvider string
	Model           string
	ModelTimeout    time.Duration
	MaxTokens       int
	Temperature     float64

	// Orchestrator settings
	HistoryLimit        int
	TokenBudget         int
	ToolTimeout         time.Duration
	SystemPromptShopper string
	SystemPromptCopilot string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// MongoDB
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "copilot"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Model service
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "anthropic"),
		Model:           getEnv("MODEL", ""),
		ModelTimeout:    getDurationEnv("MODEL_TIMEOUT", 30*time.Second),
		MaxTokens:       getIntEnv("MODEL_MAX_TOKENS", 1024),
		Temperature:     getFloatEnv("MODEL_TEMPERATURE", 0.2),

		// Orchestrator
		HistoryLimit: getIntEnv("HISTORY_LIMIT", 40),
		TokenBudget:  getIntEnv("HISTORY_TOKEN_BUDGET", 8000),
		ToolTimeout:  getDurationEnv("TOOL_TIMEOUT", 15*time.Second),
		SystemPromptShopper: getEnv("SYSTEM_PROMPT_SHOPPER",
			"You are a shopping assistant for an online store. Help customers track orders, manage their cart, and find products. Use the available tools when needed."),
		SystemPromptCopilot: getEnv("SYSTEM_PROMPT_COPILOT",
			"You are a back-office copilot for store operators. Help with analytics questions and campaign management. Use the available tools when needed, and never override committed campaign state without confirmation."),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
