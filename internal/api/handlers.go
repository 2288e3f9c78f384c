// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/problem"
)

type handlers struct {
	issuer    Issuer
	downloads LinkBuilder
}

// handleIssue serves POST /api/stream-token.
func (h *handlers) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	issued, err := h.issuer.Issue(r.Context(), req.grantRequest())
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	problem.JSON(w, http.StatusOK, issueResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt})
}

// handleDownload serves POST /api/download.
func (h *handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	links, err := h.downloads.Build(r.Context(), req.linksRequest())
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "download")
	logger.Debug().
		Str(log.FieldEvent, "download.links").
		Str(log.FieldContentID, string(req.ContentID)).
		Msg("download links generated")
	problem.JSON(w, http.StatusOK, links)
}
