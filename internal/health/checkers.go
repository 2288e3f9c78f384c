// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/reelgate/internal/grant"
)

// OriginChecker probes the origin base URL. Any HTTP answer counts as
// reachable; a transport failure degrades the service without failing
// readiness, since the gateway still answers with 502.
type OriginChecker struct {
	url    string
	client *http.Client
}

// NewOriginChecker creates a checker for the origin file server.
func NewOriginChecker(originURL string, client *http.Client) *OriginChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &OriginChecker{url: originURL, client: client}
}

func (c *OriginChecker) Name() string { return "origin" }

func (c *OriginChecker) Check(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "invalid origin url"}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	_ = resp.Body.Close()
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("status %d", resp.StatusCode)}
}

// SignerChecker proves the configured secret can sign and verify a grant.
type SignerChecker struct {
	codec *grant.Codec
}

// NewSignerChecker creates a checker around the live codec.
func NewSignerChecker(codec *grant.Codec) *SignerChecker {
	return &SignerChecker{codec: codec}
}

func (c *SignerChecker) Name() string { return "signer" }

func (c *SignerChecker) Check(_ context.Context) CheckResult {
	if c.codec == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "codec not configured"}
	}
	probe := c.codec.Stamp(grant.Selection{ContentID: "healthcheck", Kind: grant.KindMovie})
	token, err := c.codec.Encode(probe)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if _, err := c.codec.Decode(token); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
