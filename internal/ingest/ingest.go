// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package ingest consumes the observation event stream and drives the
// belief update path: decode, validate, apply, gate, dispatch. The
// pipeline is a Watermill router with recoverer, retry and poison-queue
// middleware; transport is in-process by default or NATS JetStream.
//
// Acknowledgement policy follows the error taxonomy: a malformed or
// unknown-event observation is acked and skipped (redelivery cannot fix
// the input), while conflict-exhaustion and store-unavailable errors
// are nacked so the retry middleware and, ultimately, the poison queue
// handle them.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/goccy/go-json"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/config"
	"github.com/tomtom215/adlift/internal/gate"
	"github.com/tomtom215/adlift/internal/history"
	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/pattern"
)

// Pipeline is the ingestion service: a Watermill router wired to the
// updater, the observation log, the gate and the trigger dispatcher.
type Pipeline struct {
	router     *message.Router
	updater    *belief.Updater
	log        history.Store
	gate       *gate.Gate
	dispatcher *gate.Dispatcher
	cfg        config.IngestConfig
}

// NewPipeline builds the router and registers the observation handler.
func NewPipeline(
	cfg config.IngestConfig,
	transport *Transport,
	updater *belief.Updater,
	log history.Store,
	g *gate.Gate,
	dispatcher *gate.Dispatcher,
) (*Pipeline, error) {
	logger := newWatermillLogger()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create ingest router: %w", err)
	}
	router.AddPlugin(plugin.SignalsHandler)

	// Middleware order, outer to inner: recover panics, retry
	// transient failures with backoff, then poison-queue what survives.
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitialInterval,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)
	if cfg.PoisonQueueEnabled && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(transport.Publisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue: %w", err)
		}
		router.AddMiddleware(poison)
	}

	p := &Pipeline{
		router:     router,
		updater:    updater,
		log:        log,
		gate:       g,
		dispatcher: dispatcher,
		cfg:        cfg,
	}

	router.AddConsumerHandler(
		"observation-ingest",
		cfg.Topic,
		transport.Subscriber,
		p.handle,
	)

	return p, nil
}

// Serve implements suture.Service: run the router until the context is
// canceled.
func (p *Pipeline) Serve(ctx context.Context) error {
	return p.router.Run(ctx)
}

// Running returns a channel closed once the router consumes messages.
func (p *Pipeline) Running() <-chan struct{} {
	return p.router.Running()
}

// Close stops the router.
func (p *Pipeline) Close() error {
	return p.router.Close()
}

// handle processes one observation message end to end.
func (p *Pipeline) handle(msg *message.Message) error {
	ctx := logging.ContextWithCorrelationID(msg.Context(), correlationID(msg))

	var obs pattern.Observation
	if err := json.Unmarshal(msg.Payload, &obs); err != nil {
		// Undecodable payloads can never succeed on redelivery.
		metrics.InvalidEventsTotal.WithLabelValues("malformed").Inc()
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable observation")
		return nil
	}
	if obs.ID == "" {
		obs.ID = msg.UUID
	}

	state, err := p.updater.ApplyEvent(ctx, obs)
	switch {
	case errors.Is(err, belief.ErrInvalidEvent):
		// Already counted and logged by the updater; ack and move on.
		return nil
	case err != nil:
		// Conflict exhaustion or store unavailability: retryable.
		return fmt.Errorf("apply observation %s: %w", obs.ID, err)
	}

	metrics.ObservationsIngested.WithLabelValues(obs.EventType).Inc()

	// The observation log feeds trend classification and retraining.
	// Belief state is the source of truth, so a log append failure is
	// logged but never fails the message.
	if err := p.log.Append(ctx, obs); err != nil {
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Str("observation_id", obs.ID).Msg("observation log append failed")
	}

	decision := p.gate.Decide(gate.Metrics{
		Pattern:     state.Pattern,
		IsBenchmark: state.Source == pattern.SourceBenchmark,
		Impressions: state.TotalClicks,
		Conversions: state.TotalConversions,
	})
	if decision.Trigger {
		p.dispatcher.Dispatch(ctx, gate.Trigger{
			Fingerprint: state.Fingerprint,
			Pattern:     state.Pattern,
			Decision:    decision,
			At:          obs.Timestamp,
		})
	}
	return nil
}

// correlationID reuses an upstream correlation ID when the producer set
// one, otherwise mints a fresh one per message.
func correlationID(msg *message.Message) string {
	if id := msg.Metadata.Get("correlation_id"); id != "" {
		return id
	}
	return logging.GenerateCorrelationID()
}
