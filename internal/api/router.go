// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the reelgate HTTP surface: grant issuance, the
// streaming gateway, download links, probes and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/reelgate/internal/api/middleware"
	"github.com/ManuGH/reelgate/internal/download"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/health"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route paths.
const (
	PathIssue    = "/api/stream-token"
	PathStream   = "/api/stream"
	PathDownload = "/api/download"
	PathHealth   = "/healthz"
	PathReady    = "/readyz"
	PathMetrics  = "/metrics"
)

// Issuer signs grants. *grant.Issuer satisfies it.
type Issuer interface {
	Issue(ctx context.Context, req grant.Request) (grant.Issued, error)
}

// LinkBuilder builds download links. *download.Builder satisfies it.
type LinkBuilder interface {
	Build(ctx context.Context, req download.Request) (download.Links, error)
}

// Deps are the components served by the router.
type Deps struct {
	Issuer    Issuer
	Gateway   http.Handler
	Downloads LinkBuilder
	Health    *health.Manager
}

// RateLimit throttles the issue endpoint. Zero Requests disables it.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Options shape the middleware stack.
type Options struct {
	AllowedOrigins []string
	RateLimit      RateLimit
	TracingService string
	DisableLogging bool
}

// NewRouter wires every endpoint behind the canonical middleware stack.
func NewRouter(deps Deps, opts Options) (http.Handler, error) {
	if deps.Issuer == nil || deps.Gateway == nil {
		return nil, errors.New("api: issuer and gateway are required")
	}
	h := &handlers{issuer: deps.Issuer, downloads: deps.Downloads}

	r := chi.NewRouter()
	middleware.ApplyStack(r, middleware.StackConfig{
		AllowedOrigins: opts.AllowedOrigins,
		EnableMetrics:  true,
		TracingService: opts.TracingService,
		EnableLogging:  !opts.DisableLogging,
	})
	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)

	issue := r.With()
	if opts.RateLimit.Requests > 0 && opts.RateLimit.Window > 0 {
		issue = r.With(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit: opts.RateLimit.Requests,
			WindowSize:   opts.RateLimit.Window,
		}))
	}
	issue.Post(PathIssue, h.handleIssue)

	// The gateway answers every method itself, including its own 405.
	r.Handle(PathStream, deps.Gateway)

	if deps.Downloads != nil {
		r.Post(PathDownload, h.handleDownload)
	}

	if deps.Health != nil {
		r.Get(PathHealth, deps.Health.ServeHealth)
		r.Get(PathReady, deps.Health.ServeReady)
	}
	r.Handle(PathMetrics, promhttp.Handler())

	return r, nil
}
