package config

import (
	"os"
	"strconv"
)

// Config carries the process environment. Everything tunable at runtime
// lives in the settings table instead; this is connection and bootstrap
// material only.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	CORSOrigins string

	// LogDir, when set, mirrors logs into timestamped files there.
	LogDir string

	// Vector store connection.
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool

	// Provider credentials and endpoints.
	GeminiAPIKey    string
	GeminiBaseURL   string
	AnthropicAPIKey string
	ClaudeBaseURL   string

	// Embedding model wiring. Dimension must match the vector collections.
	EmbeddingModel     string
	EmbeddingDimension uint64

	// ResponseSeparator is the token the model is told to emit between its
	// visible reply and the hidden tail; display text truncates at it.
	ResponseSeparator string
}

// Load reads the configuration from the environment.
func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),
		CORSOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		LogDir:      getEnv("LOG_DIR", ""),

		QdrantHost:   getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:   getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),
		QdrantUseTLS: getEnv("QDRANT_USE_TLS", "false") == "true",

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		ClaudeBaseURL:   getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimension: uint64(getEnvInt("EMBEDDING_DIMENSION", 768)),

		ResponseSeparator: getEnv("RESPONSE_SEPARATOR", "---END---"),
	}
}

// getTablePrefix returns the table prefix, overridable via TABLE_PREFIX.
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "reverie_"
	case "test":
		return "reverie_test_"
	default:
		return "reverie_dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
