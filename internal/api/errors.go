// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/reelgate/internal/gateway"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/problem"
)

// errBadRequest marks bodies that could not be decoded.
var errBadRequest = errors.New("malformed request body")

// writeProblem maps a domain error to its HTTP status and minimal body.
// Internal detail never reaches the client.
func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr    *grant.ValidationError
		authErr *grant.AuthError
	)
	switch {
	case errors.As(err, &verr):
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", map[string]any{"fields": verr.Fields})
	case errors.Is(err, errBadRequest):
		problem.Write(w, r, http.StatusBadRequest, problem.CodeBadRequest, errBadRequest.Error(), nil)
	case errors.As(err, &authErr):
		problem.Write(w, r, http.StatusUnauthorized, "", gateway.UnauthorizedMessage, nil)
	case errors.Is(err, gateway.ErrOriginUnavailable):
		problem.Write(w, r, http.StatusBadGateway, problem.CodeOriginUnavailable, "origin unavailable", nil)
	case errors.Is(err, context.Canceled):
		// The client is gone and nobody reads the body.
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("request failed")
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "internal server error", nil)
	}
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusMethodNotAllowed, problem.CodeMethodNotAllowed, "method not allowed", nil)
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusNotFound, "not_found", "not found", nil)
}
