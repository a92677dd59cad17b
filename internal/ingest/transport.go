// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package ingest

import (
	"context"
	"fmt"
	"time"

	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/adlift/internal/config"
)

// Transport bundles the subscriber consumed by the router and the
// publisher used for triggers and the poison queue, plus the optional
// embedded NATS server lifecycle.
type Transport struct {
	Subscriber message.Subscriber
	Publisher  message.Publisher

	// shared marks a single gochannel object serving both roles.
	shared   bool
	embedded *server.Server
}

// NewTransport builds the messaging transport. With NATS disabled, an
// in-process gochannel Pub/Sub serves both roles: fine for a single
// process, no durability. With NATS enabled, durable JetStream
// subscribe/publish, optionally against an embedded nats-server.
func NewTransport(cfg config.IngestConfig) (*Transport, error) {
	if !cfg.NATS.Enabled {
		pubsub := gochannel.NewGoChannel(gochannel.Config{}, newWatermillLogger())
		return &Transport{Subscriber: pubsub, Publisher: pubsub, shared: true}, nil
	}

	t := &Transport{}
	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		ns, err := startEmbeddedServer(cfg.NATS.StoreDir)
		if err != nil {
			return nil, err
		}
		t.embedded = ns
		url = ns.ClientURL()
	}

	logger := newWatermillLogger()
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(time.Second),
	}

	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.NATS.QueueGroup,
		SubscribersCount: cfg.Subscribers,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: cfg.NATS.DurableName,
		},
	}, logger)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	t.Subscriber = sub

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: true,
		},
	}, logger)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	t.Publisher = pub

	return t, nil
}

// startEmbeddedServer runs an in-process nats-server with JetStream for
// self-contained single-instance deployments.
func startEmbeddedServer(storeDir string) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "adlift-events",
		Host:       "127.0.0.1",
		Port:       -1, // random free port
		JetStream:  true,
		StoreDir:   storeDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}
	return ns, nil
}

// Close tears the transport down: subscriber, publisher, then the
// embedded server if one is running.
func (t *Transport) Close() error {
	var firstErr error
	if t.Subscriber != nil {
		if err := t.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.Publisher != nil && !t.shared {
		if err := t.Publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.embedded != nil {
		t.embedded.Shutdown()
		t.embedded.WaitForShutdown()
	}
	return firstErr
}

// Shutdown closes the transport, honoring the context for the embedded
// server drain.
func (t *Transport) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- t.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
