// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the reelgate runtime configuration.
//
// Precedence is ENV > YAML file > defaults. Every environment key carries
// the REELGATE_ prefix.
package config

import (
	"time"

	"github.com/ManuGH/reelgate/internal/grant"
)

const (
	// DefaultListen is the HTTP listen address for `reelgate serve`.
	DefaultListen = ":8080"
	// DefaultRenewMargin is subtracted from the grant lifetime to derive the
	// client renewal interval.
	DefaultRenewMargin = 5 * time.Minute
	// DefaultIssueTimeout bounds a single issuer round trip from the client.
	DefaultIssueTimeout = 10 * time.Second
	// DefaultOriginHeaderTimeout bounds the wait for origin response headers.
	DefaultOriginHeaderTimeout = 15 * time.Second
	// MinSecretBytes is the shortest signing secret accepted outside dev mode.
	MinSecretBytes = 16
)

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Listen         string        `yaml:"listen"`
	Secret         string        `yaml:"secret"`
	PreviousSecret string        `yaml:"previousSecret"`
	GrantLifetime  time.Duration `yaml:"grantLifetime"`
	// RenewInterval of zero is derived from GrantLifetime at load time.
	RenewInterval  time.Duration `yaml:"renewInterval"`
	IssueTimeout   time.Duration `yaml:"issueTimeout"`
	LogLevel       string        `yaml:"logLevel"`
	InsecureDev    bool          `yaml:"insecureDev"`

	Origin    OriginConfig    `yaml:"origin"`
	Download  DownloadConfig  `yaml:"download"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// OriginConfig describes the upstream file server.
type OriginConfig struct {
	URL           string        `yaml:"url"`
	HeaderTimeout time.Duration `yaml:"headerTimeout"`
}

// DownloadConfig feeds the download link builder.
type DownloadConfig struct {
	ShortenerURL string `yaml:"shortenerUrl"`
	ShortenerKey string `yaml:"shortenerKey"`
	TelegramBot  string `yaml:"telegramBot"`
}

// RateLimitConfig throttles grant issuance per client IP.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// TracingConfig mirrors telemetry.Config.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Default returns the built-in defaults.
func Default() AppConfig {
	return AppConfig{
		Listen:        DefaultListen,
		GrantLifetime: grant.DefaultLifetime,
		IssueTimeout:  DefaultIssueTimeout,
		LogLevel:      "info",
		Origin: OriginConfig{
			HeaderTimeout: DefaultOriginHeaderTimeout,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 60,
			Window:   time.Minute,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// RenewIntervalFor returns the client renewal cadence for a grant lifetime:
// the lifetime minus DefaultRenewMargin, or half the lifetime when the
// lifetime is too short to leave that margin.
func RenewIntervalFor(lifetime time.Duration) time.Duration {
	if lifetime > 2*DefaultRenewMargin {
		return lifetime - DefaultRenewMargin
	}
	return lifetime / 2
}
