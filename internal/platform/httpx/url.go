// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidServiceURL is wrapped by ParseServiceURL failures.
var ErrInvalidServiceURL = errors.New("invalid service url")

// ParseServiceURL validates the base URL of an upstream service (origin
// store, shortener, issuer). It requires http or https and a host, rejects
// fragments and normalizes internationalized host names to ASCII.
func ParseServiceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServiceURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not http(s)", ErrInvalidServiceURL, u.Scheme)
	}
	if u.Fragment != "" {
		return nil, fmt.Errorf("%w: fragments are not allowed", ErrInvalidServiceURL)
	}
	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	return u, nil
}

func normalizeHost(raw string) (string, error) {
	host := strings.TrimSuffix(raw, ".")
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidServiceURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: host %q: %w", ErrInvalidServiceURL, raw, err)
	}
	return strings.ToLower(ascii), nil
}

// Redact drops credentials and the query, which may carry grant tokens or
// API keys, so the URL can be logged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}
