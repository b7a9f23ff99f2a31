package matching

import (
	"os"
	"strconv"
	"time"
)

// Config holds matching pipeline tunables loaded from environment variables.
type Config struct {
	// SimilarThreshold is the minimum similarity for item-to-item matching.
	SimilarThreshold float64
	// SemanticThreshold is the minimum similarity for free-text search. Looser
	// than item-to-item, since free text is noisier.
	SemanticThreshold float64
	// SimilarRadiusKm bounds item-to-item matches around a located source post.
	SimilarRadiusKm float64
	// MaxPageSize caps semantic search pagination.
	MaxPageSize int

	// SweepInterval is how often the stale-Processing sweeper runs.
	SweepInterval time.Duration
	// ProcessingTimeout is how long a post may sit in Processing before the
	// sweeper reverts it to Failed.
	ProcessingTimeout time.Duration
}

// ConfigFromEnv loads matching configuration from environment variables.
func ConfigFromEnv() Config {
	return Config{
		SimilarThreshold:  envFloatOrDefault("MATCH_SIMILAR_THRESHOLD", 0.70),
		SemanticThreshold: envFloatOrDefault("MATCH_SEMANTIC_THRESHOLD", 0.15),
		SimilarRadiusKm:   envFloatOrDefault("MATCH_SIMILAR_RADIUS_KM", 20),
		MaxPageSize:       envIntOrDefault("MATCH_MAX_PAGE_SIZE", 50),
		SweepInterval:     envDurationOrDefault("MATCH_SWEEP_INTERVAL", time.Minute),
		ProcessingTimeout: envDurationOrDefault("MATCH_PROCESSING_TIMEOUT", 5*time.Minute),
	}
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
