// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/platform/httpx"
)

// IssuePath is the issuer endpoint relative to the server base URL.
const IssuePath = "/api/stream-token"

const maxIssueReplyBytes = 16 << 10

// HTTPIssuer requests grants from a reelgate server.
type HTTPIssuer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPIssuer targets baseURL + IssuePath. A nil client gets a short
// traced client bounded by timeout.
func NewHTTPIssuer(baseURL string, client *http.Client, timeout time.Duration) (*HTTPIssuer, error) {
	u, err := httpx.ParseServiceURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("session: issuer: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + IssuePath
	u.RawPath = ""
	if client == nil {
		client = httpx.Traced(httpx.NewClient(timeout), "issuer")
	}
	return &HTTPIssuer{endpoint: u.String(), client: client}, nil
}

type issueReply struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Error     string    `json:"error"`
}

// Issue posts req and returns the signed grant.
func (c *HTTPIssuer) Issue(ctx context.Context, req grant.Request) (grant.Issued, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return grant.Issued{}, fmt.Errorf("session: encode issue request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return grant.Issued{}, fmt.Errorf("session: build issue request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return grant.Issued{}, fmt.Errorf("session: issue request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var reply issueReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIssueReplyBytes)).Decode(&reply); err != nil {
		return grant.Issued{}, fmt.Errorf("session: decode issue reply (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return grant.Issued{}, fmt.Errorf("session: issuer returned %d: %s", resp.StatusCode, reply.Error)
	}
	if reply.Token == "" {
		return grant.Issued{}, fmt.Errorf("session: issuer reply has no token")
	}
	return grant.Issued{Token: reply.Token, ExpiresAt: reply.ExpiresAt}, nil
}
