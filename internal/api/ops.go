// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package api serves the operational HTTP surface: health and
// Prometheus metrics. The engine's business API is served elsewhere;
// this process only exposes what operators and scrapers need.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/adlift/internal/engine"
	"github.com/tomtom215/adlift/internal/logging"
)

// StatusSource reports aggregate engine state for the health endpoint.
// Satisfied by *engine.Engine.
type StatusSource interface {
	Status(ctx context.Context) (engine.Status, error)
}

type healthResponse struct {
	Status string        `json:"status"`
	Engine engine.Status `json:"engine"`
}

// NewOpsRouter builds the chi router for /healthz and /metrics.
func NewOpsRouter(src StatusSource) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status, err := src.Status(req.Context())
		if err != nil {
			logger := logging.Ctx(req.Context())
			logger.Error().Err(err).Msg("health check failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Engine: status})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
