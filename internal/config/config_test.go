// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/adlift/internal/pattern"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("built-in defaults do not validate: %v", err)
	}
	if cfg.Gate.EarlyImpressions != 100 || cfg.Gate.ConfirmedImpressions != 500 {
		t.Errorf("gate defaults = %d/%d, want 100/500", cfg.Gate.EarlyImpressions, cfg.Gate.ConfirmedImpressions)
	}
	if cfg.IntervalStrategy != "beta_quantile" {
		t.Errorf("interval strategy = %q, want beta_quantile", cfg.IntervalStrategy)
	}
	if cfg.Ingest.Topic != "observations.ingest" {
		t.Errorf("ingest topic = %q", cfg.Ingest.Topic)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adlift.yaml")
	yaml := `
logging:
  level: debug
gate:
  early_impressions: 250
  default_baseline: 0.03
baselines:
  skincare: 0.05
  supplements: 0.04
similarity:
  skincare:
    haircare: 0.8
market_priors:
  skincare:
    cvr: 0.05
    days: 30
    clicks_per_day: 1000
weighting:
  view:
    base_weight: 0.2
  purchase:
    base_weight: 1.0
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Gate.EarlyImpressions != 250 {
		t.Errorf("gate early impressions = %d, want 250", cfg.Gate.EarlyImpressions)
	}
	// Untouched keys keep their defaults.
	if cfg.Gate.ConfirmedImpressions != 500 {
		t.Errorf("gate confirmed impressions = %d, want default 500", cfg.Gate.ConfirmedImpressions)
	}
	if cfg.Baselines["skincare"] != 0.05 {
		t.Errorf("baseline = %v, want 0.05", cfg.Baselines["skincare"])
	}
	if cfg.Similarity["skincare"]["haircare"] != 0.8 {
		t.Errorf("similarity = %v, want 0.8", cfg.Similarity["skincare"]["haircare"])
	}
	if got := cfg.MarketPriors["skincare"]; got.CVR != 0.05 || got.Days != 30 || got.ClicksPerDay != 1000 {
		t.Errorf("market prior = %+v", got)
	}
	if got := cfg.Weighting["view"]; got.BaseWeight != 0.2 {
		t.Errorf("view weight = %+v, want 0.2", got)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adlift.yaml")
	if err := os.WriteFile(path, []byte("gate:\n  early_impressions: 250\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ADLIFT_GATE_EARLY_IMPRESSIONS", "400")
	t.Setenv("ADLIFT_LOGGING_LEVEL", "warn")
	t.Setenv("ADLIFT_INGEST_NATS_URL", "nats://10.0.0.5:4222")
	t.Setenv("ADLIFT_INTERVAL_STRATEGY", "normal_approx")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Gate.EarlyImpressions != 400 {
		t.Errorf("env did not beat file: early impressions = %d", cfg.Gate.EarlyImpressions)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Ingest.NATS.URL != "nats://10.0.0.5:4222" {
		t.Errorf("nats url = %q", cfg.Ingest.NATS.URL)
	}
	if cfg.IntervalStrategy != "normal_approx" {
		t.Errorf("interval strategy = %q, want normal_approx", cfg.IntervalStrategy)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown interval strategy", func(c *Config) { c.IntervalStrategy = "magic" }},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"baseline out of range", func(c *Config) { c.Baselines = map[string]float64{"skincare": 1.5} }},
		{"similarity out of range", func(c *Config) {
			c.Similarity = map[string]map[string]float64{"a": {"b": -0.1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid configuration")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ADLIFT_GATE_EARLY_IMPRESSIONS", "gate.early_impressions"},
		{"ADLIFT_LOGGING_LEVEL", "logging.level"},
		{"ADLIFT_INGEST_NATS_URL", "ingest.nats.url"},
		{"ADLIFT_INGEST_RETRY_COUNT", "ingest.retry_count"},
		{"ADLIFT_INTERVAL_STRATEGY", "interval_strategy"},
		{"ADLIFT_CONFIG", ""},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildVocabulary(t *testing.T) {
	cfg := Default()
	if v := cfg.BuildVocabulary(); v.Size(pattern.DimHook) == 0 {
		t.Error("empty table did not fall back to the built-in vocabulary")
	}

	cfg.Vocabulary = map[string][]string{
		"hook_type": {"question"},
		"pacing":    {"fast", "slow"},
	}
	v := cfg.BuildVocabulary()
	if !v.Known(pattern.DimHook, "question") {
		t.Error("configured hook value missing")
	}
	if v.Known(pattern.DimHook, "bold_claim") {
		t.Error("built-in value leaked into a configured vocabulary")
	}
	if v.Size(pattern.DimPacing) != 2 {
		t.Errorf("pacing size = %d, want 2", v.Size(pattern.DimPacing))
	}
}

func TestBuildWeighting(t *testing.T) {
	cfg := Default()
	w := cfg.BuildWeighting()
	if _, err := w.Lookup(pattern.EventPurchase); err != nil {
		t.Errorf("default weighting missing purchase: %v", err)
	}

	cfg.Weighting = map[string]pattern.EventWeight{"demo_request": {BaseWeight: 0.5, EarlyPredictor: true}}
	w = cfg.BuildWeighting()
	if ew, err := w.Lookup("demo_request"); err != nil || !ew.EarlyPredictor {
		t.Errorf("configured weighting lookup = %+v, %v", ew, err)
	}
	if _, err := w.Lookup(pattern.EventPurchase); err == nil {
		t.Error("configured table should fully replace the defaults")
	}
}
