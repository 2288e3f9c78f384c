// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys.
const (
	EnvListen              = "REELGATE_LISTEN"
	EnvSecret              = "REELGATE_SECRET"
	EnvPreviousSecret      = "REELGATE_PREVIOUS_SECRET"
	EnvGrantLifetime       = "REELGATE_GRANT_LIFETIME"
	EnvRenewInterval       = "REELGATE_RENEW_INTERVAL"
	EnvIssueTimeout        = "REELGATE_ISSUE_TIMEOUT"
	EnvLogLevel            = "REELGATE_LOG_LEVEL"
	EnvInsecureDev         = "REELGATE_INSECURE_DEV"
	EnvOriginURL           = "REELGATE_ORIGIN_URL"
	EnvOriginHeaderTimeout = "REELGATE_ORIGIN_HEADER_TIMEOUT"
	EnvShortenerURL        = "REELGATE_SHORTENER_URL"
	EnvShortenerKey        = "REELGATE_SHORTENER_KEY"
	EnvTelegramBot         = "REELGATE_TELEGRAM_BOT"
	EnvRateLimitEnabled    = "REELGATE_RATELIMIT_ENABLED"
	EnvRateLimitRequests   = "REELGATE_RATELIMIT_REQUESTS"
	EnvRateLimitWindow     = "REELGATE_RATELIMIT_WINDOW"
	EnvCORSOrigins         = "REELGATE_CORS_ORIGINS"
	EnvTracingEnabled      = "REELGATE_TRACING_ENABLED"
	EnvTracingExporter     = "REELGATE_TRACING_EXPORTER"
	EnvTracingEndpoint     = "REELGATE_TRACING_ENDPOINT"
	EnvTracingSampling     = "REELGATE_TRACING_SAMPLING_RATE"
	EnvTracingEnvironment  = "REELGATE_TRACING_ENVIRONMENT"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, def)
}

// Load resolves the configuration: defaults, then the strict YAML file,
// then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}

	l.mergeEnv(&cfg)
	if cfg.RenewInterval == 0 {
		cfg.RenewInterval = RenewIntervalFor(cfg.GrantLifetime)
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *AppConfig) error {
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Listen = l.envString(EnvListen, cfg.Listen)
	cfg.Secret = l.envString(EnvSecret, cfg.Secret)
	cfg.PreviousSecret = l.envString(EnvPreviousSecret, cfg.PreviousSecret)
	cfg.GrantLifetime = l.envDuration(EnvGrantLifetime, cfg.GrantLifetime)
	cfg.RenewInterval = l.envDuration(EnvRenewInterval, cfg.RenewInterval)
	cfg.IssueTimeout = l.envDuration(EnvIssueTimeout, cfg.IssueTimeout)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.InsecureDev = l.envBool(EnvInsecureDev, cfg.InsecureDev)

	cfg.Origin.URL = l.envString(EnvOriginURL, cfg.Origin.URL)
	cfg.Origin.HeaderTimeout = l.envDuration(EnvOriginHeaderTimeout, cfg.Origin.HeaderTimeout)

	cfg.Download.ShortenerURL = l.envString(EnvShortenerURL, cfg.Download.ShortenerURL)
	cfg.Download.ShortenerKey = l.envString(EnvShortenerKey, cfg.Download.ShortenerKey)
	cfg.Download.TelegramBot = l.envString(EnvTelegramBot, cfg.Download.TelegramBot)

	cfg.RateLimit.Enabled = l.envBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = l.envInt(EnvRateLimitRequests, cfg.RateLimit.Requests)
	cfg.RateLimit.Window = l.envDuration(EnvRateLimitWindow, cfg.RateLimit.Window)

	cfg.CORS.AllowedOrigins = l.envList(EnvCORSOrigins, cfg.CORS.AllowedOrigins)

	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvTracingSampling, cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = l.envString(EnvTracingEnvironment, cfg.Tracing.Environment)
}
