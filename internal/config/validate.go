// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/reelgate/internal/platform/httpx"
)

// ValidationError collects every configuration problem found in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks a resolved configuration.
func Validate(cfg AppConfig) error {
	v := &ValidationError{}

	switch {
	case cfg.Secret == "":
		v.addf("secret is required (%s)", EnvSecret)
	case len(cfg.Secret) < MinSecretBytes && !cfg.InsecureDev:
		v.addf("secret must be at least %d bytes (set %s=true to allow short secrets)", MinSecretBytes, EnvInsecureDev)
	}
	if cfg.PreviousSecret != "" && cfg.PreviousSecret == cfg.Secret {
		v.addf("previous secret must differ from the current secret")
	}

	if cfg.GrantLifetime <= 0 {
		v.addf("grant lifetime must be positive, got %s", cfg.GrantLifetime)
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.GrantLifetime {
		v.addf("renew interval %s must be positive and shorter than the grant lifetime %s", cfg.RenewInterval, cfg.GrantLifetime)
	}
	if cfg.IssueTimeout <= 0 {
		v.addf("issue timeout must be positive, got %s", cfg.IssueTimeout)
	}

	if cfg.Origin.URL == "" {
		v.addf("origin url is required (%s)", EnvOriginURL)
	} else if _, err := httpx.ParseServiceURL(cfg.Origin.URL); err != nil {
		v.addf("origin url: %v", err)
	}

	if cfg.Download.ShortenerURL != "" {
		if _, err := httpx.ParseServiceURL(cfg.Download.ShortenerURL); err != nil {
			v.addf("shortener url: %v", err)
		}
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0) {
		v.addf("rate limit needs positive requests and window")
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "grpc", "http":
		default:
			v.addf("tracing exporter %q must be grpc or http", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			v.addf("tracing sampling rate must be within [0,1]")
		}
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}
