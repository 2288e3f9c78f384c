// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/reelgate/internal/api"
	"github.com/ManuGH/reelgate/internal/client/session"
	"github.com/ManuGH/reelgate/internal/config"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/platform/httpx"
	"github.com/spf13/cobra"
)

type probeOptions struct {
	server string
	once   bool
	sel    grant.Selection
}

func newProbeCmd(load func() (config.AppConfig, error)) *cobra.Command {
	var (
		opts            probeOptions
		req             grant.Request
		season, episode int
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Hold a client stream session against a running server and check every renewed URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("season") {
				req.SeasonNumber = grant.Int(season)
			}
			if cmd.Flags().Changed("episode") {
				req.EpisodeNumber = grant.Int(episode)
			}
			if opts.sel, err = grant.Validate(req); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return probe(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost"+config.DefaultListen, "reelgate base URL")
	f.BoolVar(&opts.once, "once", false, "exit after the first verified URL")
	f.StringVar(&req.ContentID, "id", "", "content id")
	f.StringVar(&req.MediaType, "type", "movie", "media type (movie or show)")
	f.IntVar(&req.QualityIndex, "quality", 0, "quality index")
	f.IntVar(&season, "season", 0, "season number")
	f.IntVar(&episode, "episode", 0, "episode number")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// probe activates a session with the configured renewal cadence and fetches
// one byte through every URL it publishes, until ctx ends.
func probe(ctx context.Context, out io.Writer, cfg config.AppConfig, opts probeOptions) error {
	logger := log.WithComponent("probe")

	base, err := httpx.ParseServiceURL(opts.server)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	issuer, err := session.NewHTTPIssuer(base.String(), nil, cfg.IssueTimeout)
	if err != nil {
		return err
	}
	streamURL := *base
	streamURL.Path = strings.TrimRight(streamURL.Path, "/") + api.PathStream
	streamURL.RawPath = ""

	s, err := session.New(session.Config{
		Issuer:        issuer,
		StreamURL:     streamURL.String(),
		RenewInterval: cfg.RenewInterval,
		IssueTimeout:  cfg.IssueTimeout,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()
	if err := s.Activate(ctx, opts.sel); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	logger.Info().
		Str(log.FieldEvent, "probe.start").
		Str("server", httpx.Redact(base.String())).
		Str("selection", opts.sel.String()).
		Dur("renew_interval", cfg.RenewInterval).
		Msg("probing stream session")

	client := httpx.Traced(httpx.NewStreamingClient(cfg.Origin.HeaderTimeout), "probe")
	defer client.CloseIdleConnections()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.URL == "" || snap.URL == last {
				continue
			}
			last = snap.URL

			status, contentRange, err := fetchFirstByte(ctx, client, snap.URL)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "generation %d\tstatus %d\t%s\texpires %s\n",
				snap.Generation, status, contentRange, snap.ExpiresAt.Format(time.RFC3339))
			if opts.once {
				return nil
			}
		}
	}
}

func fetchFirstByte(ctx context.Context, client *http.Client, streamURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		// url.Error carries the full URL, grant included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return 0, "", fmt.Errorf("probe %s: %w", httpx.Redact(streamURL), err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return resp.StatusCode, "", fmt.Errorf("probe %s: unexpected status %d", httpx.Redact(streamURL), resp.StatusCode)
	}
	return resp.StatusCode, resp.Header.Get("Content-Range"), nil
}
