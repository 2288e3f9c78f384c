// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package problem writes the minimal JSON error bodies returned by every
// reelgate endpoint.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/reelgate/internal/log"
)

// HeaderRequestID carries the correlation id on every response.
const HeaderRequestID = "X-Request-ID"

// Stable machine codes.
const (
	CodeMissingToken      = "missing_token"
	CodeValidation        = "validation_failed"
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeOriginUnavailable = "origin_unavailable"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal_error"
	CodeBadRequest        = "bad_request"
)

// Write writes {"error": message} plus the optional code and extra members.
//
// The request id travels only in the X-Request-ID header so that bodies for
// the same failure are byte-identical across requests.
func Write(w http.ResponseWriter, r *http.Request, status int, code, message string, extra map[string]any) {
	body := map[string]any{"error": message}
	if code != "" {
		body["code"] = code
	}
	for k, v := range extra {
		if k == "error" || k == "code" {
			log.L().Warn().Str("key", k).Msg("ignoring reserved key in problem extras")
			continue
		}
		body[k] = v
	}

	if r != nil && w.Header().Get(HeaderRequestID) == "" {
		if reqID := log.RequestIDFromContext(r.Context()); reqID != "" {
			w.Header().Set(HeaderRequestID, reqID)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.L().Error().Err(err).Int("status", status).Msg("failed to encode problem response")
	}
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().Err(err).Int("status", status).Msg("failed to encode json response")
	}
}
