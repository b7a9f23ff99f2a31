// Package config provides environment-based configuration for Reclaim.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Reclaim matching service.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Database (PostgreSQL + pgvector)
	DatabaseURL string

	// NATS event bus
	NatsURL string

	// Embeddings
	EmbeddingBackend    string // "simple", "local" or "openai"
	OpenAIAPIKey        string
	OpenAIModel         string
	EmbeddingSidecarURL string
	RefreshTimeout      time.Duration // per-refresh deadline when triggered by events

	// Contact tokens
	ContactTokenKeyPath string
	ContactTokenKey     string // loaded from file or env

	// Rate limiting
	SearchRateLimit int           // requests per minute
	RateWindow      time.Duration // window for rate limiting
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	c := &Config{
		Port:                envInt("RECLAIM_PORT", 8400),
		LogLevel:            envStr("RECLAIM_LOG_LEVEL", "info"),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		NatsURL:             envStr("NATS_URL", "nats://localhost:4222"),
		EmbeddingBackend:    envStr("EMBEDDING_BACKEND", "simple"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIModel:         envStr("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingSidecarURL: envStr("EMBEDDING_SIDECAR_URL", "http://localhost:8501"),
		RefreshTimeout:      envDuration("REFRESH_TIMEOUT", 30*time.Second),
		ContactTokenKeyPath: envStr("CONTACT_TOKEN_KEY_PATH", "/run/secrets/contact_token_key"),
		ContactTokenKey:     envStr("CONTACT_TOKEN_KEY", ""),
		SearchRateLimit:     envInt("SEARCH_RATE_LIMIT", 60),
		RateWindow:          time.Minute,
	}

	// Load contact token key from file if not set via env
	if c.ContactTokenKey == "" {
		data, err := os.ReadFile(c.ContactTokenKeyPath)
		if err == nil {
			c.ContactTokenKey = string(data)
		}
		// If still empty, main generates an ephemeral key for development
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return c, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
