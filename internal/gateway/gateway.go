// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gateway authorizes media requests by grant and relays the
// requested byte range from the origin file server.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/metrics"
	"github.com/ManuGH/reelgate/internal/platform/httpx"
	"github.com/ManuGH/reelgate/internal/problem"
	"github.com/ManuGH/reelgate/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TokenParam is the query parameter carrying the grant.
const TokenParam = "token"

// UnauthorizedMessage is the only body text a client sees for a bad grant.
const UnauthorizedMessage = "invalid or expired token"

// ErrOriginUnavailable reports that the origin could not serve the range.
var ErrOriginUnavailable = errors.New("origin unavailable")

// Verifier decodes and verifies grants. *grant.Codec satisfies it.
type Verifier interface {
	Decode(token string) (grant.Grant, error)
}

// forwardedRequestHeaders are copied verbatim to the origin. Cache
// validators other than If-Range are withheld: a 304 is not relayable.
var forwardedRequestHeaders = []string{"Range", "If-Range"}

// Gateway is the streaming endpoint. It holds no per-request state.
type Gateway struct {
	verifier Verifier
	origin   *url.URL
	client   *http.Client
}

// New builds a gateway for an absolute origin base URL.
func New(verifier Verifier, originURL string, client *http.Client) (*Gateway, error) {
	if verifier == nil {
		return nil, errors.New("gateway: verifier is required")
	}
	u, err := httpx.ParseServiceURL(originURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: origin: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{verifier: verifier, origin: u, client: client}, nil
}

// OriginURL derives the upstream address for a verified selection:
// {origin}/api/v1/dl/{contentId}?token=..&quality=..[&season=..&episode=..].
func (g *Gateway) OriginURL(sel grant.Selection, token string) string {
	u := *g.origin
	raw := strings.TrimRight(u.EscapedPath(), "/") + "/api/v1/dl/" + url.PathEscape(sel.ContentID)
	u.Path, _ = url.PathUnescape(raw)
	u.RawPath = raw

	q := url.Values{}
	q.Set(TokenParam, token)
	q.Set("quality", strconv.Itoa(sel.QualityIndex))
	if sel.Season != nil {
		q.Set("season", strconv.Itoa(*sel.Season))
	}
	if sel.Episode != nil {
		q.Set("episode", strconv.Itoa(*sel.Episode))
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "gateway")
	span := trace.SpanFromContext(r.Context())

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		problem.Write(w, r, http.StatusMethodNotAllowed, problem.CodeMethodNotAllowed, "method not allowed", nil)
		return
	}

	token := r.URL.Query().Get(TokenParam)
	if token == "" {
		metrics.IncGrantRejected("missing")
		problem.Write(w, r, http.StatusBadRequest, problem.CodeMissingToken, "missing token", nil)
		return
	}

	gr, err := g.verifier.Decode(token)
	if err != nil {
		reason := grant.Malformed.String()
		var authErr *grant.AuthError
		if errors.As(err, &authErr) {
			reason = authErr.Kind.String()
		}
		metrics.IncGrantRejected(reason)
		logger.Debug().Str(log.FieldEvent, "grant.rejected").Str(log.FieldReason, reason).Msg("stream request refused")
		span.SetAttributes(telemetry.ErrorAttributes("grant_" + reason)...)
		// Every verification failure looks the same from outside.
		problem.Write(w, r, http.StatusUnauthorized, "", UnauthorizedMessage, nil)
		return
	}
	metrics.IncGrantRedeemed()
	span.SetAttributes(telemetry.SelectionAttributes(gr.Selection)...)

	logger = logger.With().
		Str(log.FieldContentID, gr.ContentID).
		Str(log.FieldMediaKind, string(gr.Kind)).
		Int(log.FieldQualityIndex, gr.QualityIndex).
		Logger()

	if err := g.relay(r.Context(), w, r, gr.Selection, token, logger, span); err != nil {
		if errors.Is(err, ErrOriginUnavailable) {
			problem.Write(w, r, http.StatusBadGateway, problem.CodeOriginUnavailable, "origin unavailable", nil)
		}
	}
}

// relay fetches the range from the origin and streams it to w. It returns
// ErrOriginUnavailable only while nothing has been written to w yet.
func (g *Gateway) relay(ctx context.Context, w http.ResponseWriter, r *http.Request, sel grant.Selection, token string, logger zerolog.Logger, span trace.Span) error {
	req, err := http.NewRequestWithContext(ctx, r.Method, g.OriginURL(sel, token), nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build origin request")
		return ErrOriginUnavailable
	}
	for _, h := range forwardedRequestHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	rangeHeader := r.Header.Get("Range")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			metrics.IncRelayAbort("client_gone")
			logger.Debug().Str(log.FieldEvent, "relay.aborted").Msg("client went away before origin answered")
			return ctx.Err()
		}
		metrics.ObserveOrigin("error", 0, time.Since(start))
		span.SetStatus(codes.Error, "origin request failed")
		// The url.Error would echo the grant; log the cause only.
		logger.Warn().Err(errors.Unwrap(err)).Str(log.FieldEvent, "origin.failed").Msg("origin request failed")
		return ErrOriginUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		metrics.ObserveOrigin("bad_status", resp.StatusCode, time.Since(start))
		span.SetAttributes(telemetry.RelayAttributes(rangeHeader, resp.StatusCode, 0)...)
		span.SetStatus(codes.Error, "unexpected origin status")
		logger.Warn().Int(log.FieldStatus, resp.StatusCode).Str(log.FieldEvent, "origin.bad_status").Msg("origin refused request")
		return ErrOriginUnavailable
	}
	metrics.ObserveOrigin("ok", resp.StatusCode, time.Since(start))

	copyEndToEndHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return nil
	}

	metrics.IncActiveRelays()
	defer metrics.DecActiveRelays()

	n, err := copyFlushing(w, resp.Body)
	metrics.AddRelayBytes(n)
	span.SetAttributes(telemetry.RelayAttributes(rangeHeader, resp.StatusCode, n)...)
	if err != nil {
		cause := "origin_error"
		if ctx.Err() != nil {
			cause = "client_gone"
		}
		metrics.IncRelayAbort(cause)
		logger.Debug().Err(err).Str(log.FieldReason, cause).Int64(log.FieldBytes, n).Str(log.FieldEvent, "relay.aborted").Msg("relay ended early")
		return err
	}
	logger.Debug().Int64(log.FieldBytes, n).Str(log.FieldRange, rangeHeader).Str(log.FieldEvent, "relay.done").Msg("relay complete")
	return nil
}
