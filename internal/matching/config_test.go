package matching_test

import (
	"testing"
	"time"

	"github.com/reclaimhq/reclaim/internal/matching"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := matching.ConfigFromEnv()

	if cfg.SimilarThreshold != 0.70 {
		t.Errorf("expected SimilarThreshold 0.70, got %f", cfg.SimilarThreshold)
	}
	if cfg.SemanticThreshold != 0.15 {
		t.Errorf("expected SemanticThreshold 0.15, got %f", cfg.SemanticThreshold)
	}
	if cfg.SimilarRadiusKm != 20 {
		t.Errorf("expected SimilarRadiusKm 20, got %f", cfg.SimilarRadiusKm)
	}
	if cfg.MaxPageSize != 50 {
		t.Errorf("expected MaxPageSize 50, got %d", cfg.MaxPageSize)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("expected SweepInterval 1m, got %s", cfg.SweepInterval)
	}
	if cfg.ProcessingTimeout != 5*time.Minute {
		t.Errorf("expected ProcessingTimeout 5m, got %s", cfg.ProcessingTimeout)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MATCH_SIMILAR_THRESHOLD", "0.8")
	t.Setenv("MATCH_SWEEP_INTERVAL", "30s")

	cfg := matching.ConfigFromEnv()
	if cfg.SimilarThreshold != 0.8 {
		t.Errorf("expected SimilarThreshold 0.8, got %f", cfg.SimilarThreshold)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected SweepInterval 30s, got %s", cfg.SweepInterval)
	}
}
