// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command reelgate issues stream grants and relays authorized media from the
// origin store.
package main

import (
	"fmt"
	"os"

	"github.com/ManuGH/reelgate/internal/config"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/version"
	"github.com/spf13/cobra"
)

const serviceName = "reelgate"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Stream grant issuer and media gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")

	load := func() (config.AppConfig, error) {
		cfg, err := config.NewLoader(configPath).Load()
		if err != nil {
			return config.AppConfig{}, err
		}
		log.Configure(log.Config{
			Level:   cfg.LogLevel,
			Service: serviceName,
			Version: version.Version,
		})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newTokenCmd(load),
		newProbeCmd(load),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
