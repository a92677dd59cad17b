// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package metrics provides Prometheus instrumentation for the engine:
// belief updates and conflicts, prediction resolution methods, Thompson
// draws, gate triggers, ingest throughput, and retrain outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Belief update metrics
	BeliefUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "belief_updates_total",
			Help: "Total belief-state updates applied, by event type and outcome",
		},
		[]string{"event_type", "outcome"}, // outcome: "success", "failure"
	)

	BeliefUpdateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "belief_update_conflicts_total",
			Help: "Total optimistic-concurrency conflicts during belief updates",
		},
	)

	BeliefUpdateRetriesExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "belief_update_retries_exhausted_total",
			Help: "Belief updates abandoned after exhausting conflict retries",
		},
	)

	BeliefUpdateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "belief_update_duration_seconds",
			Help:    "Duration of a single belief update including retries",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	InvalidEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalid_events_total",
			Help: "Observations rejected as invalid, by reason",
		},
		[]string{"reason"}, // "unknown_event_type", "malformed"
	)

	PatternsSeeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patterns_seeded_total",
			Help: "New pattern belief states created, by source",
		},
		[]string{"source"}, // "benchmark", "client"
	)

	// Estimator metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvr_predictions_total",
			Help: "CVR predictions served, by resolution method",
		},
		[]string{"method"}, // "exact_match", "partial_match", "bayesian_backoff", "cold_start"
	)

	// Sampler metrics
	ThompsonDrawsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thompson_draws_total",
			Help: "Total Beta draws performed across Thompson sampling rounds",
		},
	)

	RecommendationRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_rounds_total",
			Help: "Thompson sampling rounds served, by mode",
		},
		[]string{"mode"}, // "standard", "cold_start", "cross_category"
	)

	// Gate metrics
	GateTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_gate_triggers_total",
			Help: "Significance gate trigger decisions, by reason",
		},
		[]string{"reason"}, // "benchmark", "early_winner", "confirmed_winner", "none"
	)

	TriggerDispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_trigger_dispatch_failures_total",
			Help: "Fire-and-forget trigger dispatches that failed to publish",
		},
	)

	// Ingest metrics
	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observations_ingested_total",
			Help: "Observations consumed from the event stream, by result",
		},
		[]string{"result"}, // "applied", "skipped", "retried", "poisoned"
	)

	// Retrainer metrics
	RetrainRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrain_runs_total",
			Help: "AutoRetrainer evaluation cycles, by verdict",
		},
		[]string{"verdict"}, // "improving", "degrading", "insufficient_data"
	)

	RetrainPredictionError = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retrain_prediction_mae",
			Help: "Mean absolute error between predicted and realized CVR per category",
		},
		[]string{"category"},
	)

	RetrainHitRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retrain_interval_hit_rate",
			Help: "Fraction of patterns whose realized CVR fell inside the predicted interval",
		},
		[]string{"category"},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "belief_store_operation_duration_seconds",
			Help:    "Duration of belief store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)
)

// ObserveStoreOperation records one store operation's duration.
func ObserveStoreOperation(operation, backend string, start time.Time) {
	StoreOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}
