// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package config loads the engine configuration from layered sources:
// built-in defaults, an optional YAML file, then ADLIFT_-prefixed
// environment variables, highest priority last.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/estimator"
	"github.com/tomtom215/adlift/internal/explore"
	"github.com/tomtom215/adlift/internal/gate"
	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/pattern"
	"github.com/tomtom215/adlift/internal/retrain"
	"github.com/tomtom215/adlift/internal/sampler"
)

// Config is the full engine configuration tree.
type Config struct {
	Logging    logging.Config           `koanf:"logging"`
	Store      StoreConfig              `koanf:"store"`
	History    HistoryConfig            `koanf:"history"`
	Updater    belief.UpdaterConfig     `koanf:"updater"`
	Estimator  estimator.Config         `koanf:"estimator"`
	Sampler    sampler.Config           `koanf:"sampler"`
	Gate       gate.Config              `koanf:"gate"`
	Dispatcher gate.DispatcherConfig    `koanf:"dispatcher"`
	Gap        explore.GapConfig        `koanf:"gap"`
	Trend      explore.TrendConfig      `koanf:"trend"`
	Uniqueness explore.UniquenessConfig `koanf:"uniqueness"`
	Retrain    retrain.Config           `koanf:"retrain"`
	Ingest     IngestConfig             `koanf:"ingest"`
	Server     ServerConfig             `koanf:"server"`

	// IntervalStrategy selects the credible-interval implementation:
	// "beta_quantile" (exact) or "normal_approx".
	IntervalStrategy string `koanf:"interval_strategy" validate:"oneof=beta_quantile normal_approx"`

	// Baselines maps product category to baseline CVR for the gate.
	Baselines map[string]float64 `koanf:"baselines"`

	// Similarity is the static category-similarity table for
	// cross-category borrowing.
	Similarity map[string]map[string]float64 `koanf:"similarity"`

	// MarketPriors maps product category to its market benchmark prior.
	MarketPriors map[string]belief.MarketPrior `koanf:"market_priors"`

	// Vocabulary maps dimension name to its known values.
	Vocabulary map[string][]string `koanf:"vocabulary"`

	// Weighting maps event type to its update weight.
	Weighting map[string]pattern.EventWeight `koanf:"weighting"`
}

// StoreConfig selects and locates the belief store backend.
type StoreConfig struct {
	// Backend is "badger" (durable) or "memory" (tests, ephemeral).
	Backend string `koanf:"backend" validate:"oneof=badger memory"`

	// Path is the badger data directory.
	Path string `koanf:"path"`
}

// HistoryConfig selects and locates the observation log backend.
type HistoryConfig struct {
	// Backend is "duckdb" (durable) or "memory" (tests, ephemeral).
	Backend string `koanf:"backend" validate:"oneof=duckdb memory"`

	// Path is the DuckDB database file; ":memory:" for ephemeral.
	Path string `koanf:"path"`
}

// IngestConfig holds the event ingestion pipeline configuration.
type IngestConfig struct {
	// Topic is the observation subscribe topic.
	Topic string `koanf:"topic"`

	// Subscribers is the handler concurrency for NATS consumption.
	Subscribers int `koanf:"subscribers" validate:"gte=1"`

	// RetryCount and RetryInitialInterval drive the router's
	// exponential-backoff retry middleware.
	RetryCount           int           `koanf:"retry_count" validate:"gte=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`

	// PoisonQueueEnabled routes messages that exhaust retries to
	// PoisonQueueTopic instead of blocking the stream.
	PoisonQueueEnabled bool   `koanf:"poison_queue_enabled"`
	PoisonQueueTopic   string `koanf:"poison_queue_topic"`

	// CloseTimeout bounds router shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures the optional NATS JetStream transport. Disabled
// means the in-process gochannel Pub/Sub is used instead.
type NATSConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server address.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process nats-server with JetStream.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the embedded server's JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// DurableName and QueueGroup identify the consumer.
	DurableName string `koanf:"durable_name"`
	QueueGroup  string `koanf:"queue_group"`
}

// ServerConfig holds the operational HTTP endpoint settings.
type ServerConfig struct {
	// OpsAddr serves /healthz and /metrics.
	OpsAddr string `koanf:"ops_addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Default returns the built-in configuration. Domain sections reuse
// each package's production defaults so there is a single source of
// truth per knob.
func Default() *Config {
	return &Config{
		Logging: logging.Config{
			Level:     "info",
			Format:    "json",
			Timestamp: true,
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/adlift/beliefs",
		},
		History: HistoryConfig{
			Backend: "duckdb",
			Path:    "/data/adlift/observations.duckdb",
		},
		Updater:    belief.DefaultUpdaterConfig(),
		Estimator:  estimator.DefaultConfig(),
		Sampler:    sampler.DefaultConfig(),
		Gate:       gate.DefaultConfig(),
		Dispatcher: gate.DefaultDispatcherConfig(),
		Gap:        explore.DefaultGapConfig(),
		Trend:      explore.DefaultTrendConfig(),
		Uniqueness: explore.DefaultUniquenessConfig(),
		Retrain:    retrain.DefaultConfig(),
		Ingest: IngestConfig{
			Topic:                "observations.ingest",
			Subscribers:          4,
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			PoisonQueueEnabled:   true,
			PoisonQueueTopic:     "observations.poison",
			CloseTimeout:         30 * time.Second,
			NATS: NATSConfig{
				Enabled:        false,
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: false,
				StoreDir:       "/data/adlift/jetstream",
				DurableName:    "adlift-ingest",
				QueueGroup:     "adlift",
			},
		},
		Server: ServerConfig{
			OpsAddr:         ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
		IntervalStrategy: "beta_quantile",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration tree.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for cat, baseline := range c.Baselines {
		if baseline <= 0 || baseline >= 1 {
			return fmt.Errorf("invalid configuration: baseline for %q must be in (0,1), got %v", cat, baseline)
		}
	}
	for cat, edges := range c.Similarity {
		for other, sim := range edges {
			if sim < 0 || sim > 1 {
				return fmt.Errorf("invalid configuration: similarity %s->%s must be in [0,1], got %v", cat, other, sim)
			}
		}
	}
	return nil
}

// BuildVocabulary converts the configured vocabulary table into the
// pattern registry, falling back to the built-in vocabulary when the
// table is empty.
func (c *Config) BuildVocabulary() *pattern.Vocabulary {
	if len(c.Vocabulary) == 0 {
		return pattern.DefaultVocabulary()
	}
	byDim := make(map[pattern.Dimension][]string, len(c.Vocabulary))
	for _, d := range pattern.Dimensions {
		if vals, ok := c.Vocabulary[d.String()]; ok {
			byDim[d] = vals
		}
	}
	return pattern.NewVocabulary(byDim)
}

// BuildWeighting converts the configured weighting table, falling back
// to the built-in table when empty.
func (c *Config) BuildWeighting() *pattern.Weighting {
	if len(c.Weighting) == 0 {
		return pattern.DefaultWeighting()
	}
	return pattern.NewWeighting(c.Weighting)
}
