// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/reelgate/internal/api"
	"github.com/ManuGH/reelgate/internal/config"
	"github.com/ManuGH/reelgate/internal/download"
	"github.com/ManuGH/reelgate/internal/gateway"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/health"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/platform/httpx"
	"github.com/ManuGH/reelgate/internal/telemetry"
	"github.com/ManuGH/reelgate/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(load func() (config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the grant issuer and streaming gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	handler, err := buildHandler(cfg)
	if err != nil {
		return err
	}

	if cfg.InsecureDev {
		logger.Warn().Str(log.FieldEvent, "config.insecure_dev").Msg("insecure development mode: short signing secrets are accepted")
	}
	logger.Info().
		Str(log.FieldEvent, "daemon.start").
		Str("listen", cfg.Listen).
		Str("origin", httpx.Redact(cfg.Origin.URL)).
		Dur("grant_lifetime", cfg.GrantLifetime).
		Dur("renew_interval", cfg.RenewInterval).
		Bool("previous_secret", cfg.PreviousSecret != "").
		Msg("starting reelgate")

	srv := api.NewServer(cfg.Listen, handler)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("reelgate stopped")
	return nil
}

// buildHandler wires every component from cfg.
func buildHandler(cfg config.AppConfig) (http.Handler, error) {
	codec, err := newCodec(cfg)
	if err != nil {
		return nil, err
	}

	originClient := httpx.Traced(httpx.NewStreamingClient(cfg.Origin.HeaderTimeout), "origin")
	gw, err := gateway.New(codec, cfg.Origin.URL, originClient)
	if err != nil {
		return nil, fmt.Errorf("init gateway: %w", err)
	}

	var shortener download.Shortener
	if cfg.Download.ShortenerURL != "" {
		s, err := download.NewHTTPShortener(cfg.Download.ShortenerURL, cfg.Download.ShortenerKey,
			httpx.Traced(httpx.NewClient(0), "shortener"))
		if err != nil {
			return nil, fmt.Errorf("init shortener: %w", err)
		}
		shortener = s
	}

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewSignerChecker(codec))
	hm.RegisterChecker(health.NewOriginChecker(cfg.Origin.URL, httpx.NewClient(0)))

	opts := api.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TracingService: serviceName,
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimit = api.RateLimit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}
	}

	return api.NewRouter(api.Deps{
		Issuer:    grant.NewIssuer(codec),
		Gateway:   gw,
		Downloads: download.NewBuilder(shortener, cfg.Download.TelegramBot),
		Health:    hm,
	}, opts)
}

func newCodec(cfg config.AppConfig) (*grant.Codec, error) {
	codec, err := grant.NewCodec([]byte(cfg.Secret), cfg.GrantLifetime,
		grant.WithPreviousSecret([]byte(cfg.PreviousSecret)))
	if err != nil {
		return nil, fmt.Errorf("init codec: %w", err)
	}
	return codec, nil
}
