// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package main is the entry point for the Adlift engine process.
//
// Adlift maintains a Bayesian belief (a Beta distribution) per creative
// pattern, consumes observation events from a message stream, predicts
// conversion rates with credible intervals, and recommends what to test
// next via Thompson sampling.
//
// The process initializes components in order:
//
//  1. Configuration: layered defaults, YAML file, ADLIFT_ env vars (Koanf v2)
//  2. Belief store: BadgerDB (or in-memory for development)
//  3. Observation log: DuckDB (or in-memory for development)
//  4. Transport: in-process Pub/Sub or NATS JetStream, optionally embedded
//  5. Engine: updater, estimator, sampler, gate, analyzers
//  6. Supervisor tree: ingest pipeline, retrainer, ops HTTP endpoint
//
// The ops endpoint serves /healthz and /metrics only; the business API
// is hosted by the surrounding platform.
//
// Shutdown is graceful on SIGINT and SIGTERM: the supervisor stops its
// services within the configured timeout, then the transport and both
// stores are closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/adlift/internal/api"
	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/config"
	"github.com/tomtom215/adlift/internal/engine"
	"github.com/tomtom215/adlift/internal/estimator"
	"github.com/tomtom215/adlift/internal/explore"
	"github.com/tomtom215/adlift/internal/gate"
	"github.com/tomtom215/adlift/internal/history"
	"github.com/tomtom215/adlift/internal/ingest"
	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/retrain"
	"github.com/tomtom215/adlift/internal/sampler"
	"github.com/tomtom215/adlift/internal/stats"
	"github.com/tomtom215/adlift/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The default logger handles errors before config is available.
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.Logging)

	logging.Info().
		Str("belief_backend", cfg.Store.Backend).
		Str("history_backend", cfg.History.Backend).
		Bool("nats_enabled", cfg.Ingest.NATS.Enabled).
		Str("interval_strategy", cfg.IntervalStrategy).
		Msg("configuration loaded")

	store, err := openBeliefStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open belief store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing belief store")
		}
	}()

	log, err := openHistoryStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open observation log")
	}
	defer func() {
		if err := log.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing observation log")
		}
	}()

	transport, err := ingest.NewTransport(cfg.Ingest)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start messaging transport")
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing transport")
		}
	}()

	weighting := cfg.BuildWeighting()
	vocabulary := cfg.BuildVocabulary()
	priors := belief.MarketPriors(cfg.MarketPriors)
	strategy := stats.StrategyByName(cfg.IntervalStrategy)

	updater := belief.NewUpdater(store, weighting, priors, cfg.Updater)
	est := estimator.New(store, strategy, cfg.Estimator)
	smp := sampler.New(store, sampler.SimilarityGraph(cfg.Similarity), cfg.Sampler)
	g := gate.New(cfg.Gate, gate.Baselines(cfg.Baselines))
	dispatcher := gate.NewDispatcher(transport.Publisher, cfg.Dispatcher)
	locks := retrain.NewLocks()

	eng := engine.New(engine.Deps{
		Store:      store,
		Log:        log,
		Updater:    updater,
		Estimator:  est,
		Sampler:    smp,
		Gate:       g,
		Dispatcher: dispatcher,
		Gaps:       explore.NewGapAnalyzer(store, vocabulary, cfg.Gap),
		Trends:     explore.NewTrendClassifier(log, cfg.Trend),
		Uniqueness: explore.NewUniquenessScorer(cfg.Uniqueness),
		Locks:      locks,
	})

	pipeline, err := ingest.NewPipeline(cfg.Ingest, transport, updater, log, g, dispatcher)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build ingest pipeline")
	}
	retrainer := retrain.New(store, log, est, retrain.LogReporter{}, locks, cfg.Retrain)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddIngestService(pipeline)
	tree.AddIngestService(retrainer)

	opsServer := &http.Server{
		Addr:              cfg.Server.OpsAddr,
		Handler:           api.NewOpsRouter(eng),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddOpsService(supervisor.NewHTTPService(opsServer, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", cfg.Server.OpsAddr).Msg("ops endpoint registered")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("stopped gracefully")
}

func openBeliefStore(cfg *config.Config) (belief.Store, error) {
	if cfg.Store.Backend == "memory" {
		return belief.NewMemoryStore(), nil
	}
	return belief.OpenBadgerStore(cfg.Store.Path)
}

func openHistoryStore(cfg *config.Config) (history.Store, error) {
	if cfg.History.Backend == "memory" {
		return history.NewMemoryStore(), nil
	}
	return history.NewDuckDBStore(cfg.History.Path)
}
