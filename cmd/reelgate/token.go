// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/reelgate/internal/config"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/spf13/cobra"
)

func newTokenCmd(load func() (config.AppConfig, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect stream grants with the configured secret",
	}
	cmd.AddCommand(newTokenIssueCmd(load), newTokenInspectCmd(load))
	return cmd
}

func newTokenIssueCmd(load func() (config.AppConfig, error)) *cobra.Command {
	var (
		req             grant.Request
		season, episode int
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a grant for one selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			codec, err := newCodec(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("season") {
				req.SeasonNumber = grant.Int(season)
			}
			if cmd.Flags().Changed("episode") {
				req.EpisodeNumber = grant.Int(episode)
			}

			issued, err := grant.NewIssuer(codec).Issue(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, issued.Token)
			fmt.Fprintf(out, "expires %s\n", issued.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ContentID, "id", "", "content id")
	f.StringVar(&req.MediaType, "type", "movie", "media type (movie or show)")
	f.IntVar(&req.QualityIndex, "quality", 0, "quality index")
	f.IntVar(&season, "season", 0, "season number")
	f.IntVar(&episode, "episode", 0, "episode number")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTokenInspectCmd(load func() (config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a grant and print what it unlocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			codec, err := newCodec(cfg)
			if err != nil {
				return err
			}

			g, err := codec.Decode(args[0])
			if err != nil {
				var authErr *grant.AuthError
				if errors.As(err, &authErr) {
					return fmt.Errorf("token rejected: %s", authErr.Kind)
				}
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "content\t%s\n", g.ContentID)
			fmt.Fprintf(tw, "type\t%s\n", g.Kind)
			fmt.Fprintf(tw, "quality\t%d\n", g.QualityIndex)
			if g.Season != nil {
				fmt.Fprintf(tw, "season\t%d\n", *g.Season)
			}
			if g.Episode != nil {
				fmt.Fprintf(tw, "episode\t%d\n", *g.Episode)
			}
			fmt.Fprintf(tw, "issued\t%s\n", g.IssuedAt.Format(time.RFC3339))
			fmt.Fprintf(tw, "expires\t%s\n", g.ExpiresAt.Format(time.RFC3339))
			return tw.Flush()
		},
	}
}
