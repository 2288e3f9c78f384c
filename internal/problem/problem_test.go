// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package problem

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/reelgate/internal/log"
	"github.com/stretchr/testify/assert"
)

func TestWrite_MinimalBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, nil, http.StatusUnauthorized, "", "invalid or expired token", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"invalid or expired token"}`, rec.Body.String())
}

func TestWrite_RequestIDStaysInHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))

	rec := httptest.NewRecorder()
	Write(rec, req, http.StatusBadGateway, CodeOriginUnavailable, "origin unavailable", map[string]any{"code": "ignored", "retry": false})

	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	assert.JSONEq(t, `{"error":"origin unavailable","code":"origin_unavailable","retry":false}`, rec.Body.String())
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"token": "t"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"token":"t"}`, rec.Body.String())
}
