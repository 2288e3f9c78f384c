// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ManuGH/reelgate/internal/platform/httpx"
)

// maxShortenerBody caps how much of a shortener reply is read.
const maxShortenerBody = 64 * 1024

// Shortener turns a long URL into a short one.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// HTTPShortener talks to a shortener API of the form
// GET {endpoint}?api={key}&url={longURL} -> {"shortenedUrl": "..."}.
type HTTPShortener struct {
	endpoint *url.URL
	key      string
	client   *http.Client
}

// NewHTTPShortener validates the endpoint and returns a shortener.
func NewHTTPShortener(endpoint, key string, client *http.Client) (*HTTPShortener, error) {
	u, err := httpx.ParseServiceURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("download: shortener: %w", err)
	}
	if key == "" {
		return nil, errors.New("download: shortener api key is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPShortener{endpoint: u, key: key, client: client}, nil
}

type shortenerReply struct {
	ShortenedURL string `json:"shortenedUrl"`
}

// Shorten calls the API once. Any failure is returned to the caller, which
// decides whether to fall back to the long URL.
func (s *HTTPShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	u := *s.endpoint
	q := u.Query()
	q.Set("api", s.key)
	q.Set("url", longURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("download: build shortener request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: shortener request: %w", errors.Unwrap(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("download: shortener returned status %d", resp.StatusCode)
	}
	var reply shortenerReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxShortenerBody)).Decode(&reply); err != nil {
		return "", fmt.Errorf("download: decode shortener reply: %w", err)
	}
	if reply.ShortenedURL == "" {
		return "", errors.New("download: shortener reply has no shortenedUrl")
	}
	return reply.ShortenedURL, nil
}
