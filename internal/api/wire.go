// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/reelgate/internal/catalog"
	"github.com/ManuGH/reelgate/internal/download"
	"github.com/ManuGH/reelgate/internal/grant"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// flexID accepts content ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexInt accepts integers sent as numbers or numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func (f *flexInt) ptr() *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// issueRequest is the body of POST /api/stream-token.
type issueRequest struct {
	ID            flexID   `json:"id"`
	MediaType     string   `json:"mediaType"`
	QualityIndex  flexInt  `json:"qualityIndex"`
	SeasonNumber  *flexInt `json:"seasonNumber"`
	EpisodeNumber *flexInt `json:"episodeNumber"`
}

func (r issueRequest) grantRequest() grant.Request {
	return grant.Request{
		ContentID:     string(r.ID),
		MediaType:     r.MediaType,
		QualityIndex:  int(r.QualityIndex),
		SeasonNumber:  r.SeasonNumber.ptr(),
		EpisodeNumber: r.EpisodeNumber.ptr(),
	}
}

// issueResponse is returned for a signed grant.
type issueResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// downloadRequest is the body of POST /api/download.
type downloadRequest struct {
	StreamURL     string             `json:"streamUrl"`
	Title         string             `json:"title"`
	Quality       string             `json:"quality"`
	ContentID     flexID             `json:"contentId"`
	MediaType     string             `json:"mediaType"`
	QualityIndex  flexInt            `json:"qualityIndex"`
	SeasonNumber  *flexInt           `json:"seasonNumber"`
	EpisodeNumber *flexInt           `json:"episodeNumber"`
	Rendition     *catalog.Rendition `json:"selectedQuality"`
}

func (r downloadRequest) linksRequest() download.Request {
	return download.Request{
		StreamURL:     r.StreamURL,
		Title:         r.Title,
		Quality:       r.Quality,
		ContentID:     string(r.ContentID),
		MediaType:     r.MediaType,
		QualityIndex:  int(r.QualityIndex),
		SeasonNumber:  r.SeasonNumber.ptr(),
		EpisodeNumber: r.EpisodeNumber.ptr(),
		Rendition:     r.Rendition,
	}
}

// decodeJSON reads one JSON object from a bounded body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", errBadRequest)
	}
	return nil
}
