// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package grant

import (
	"context"
	"strings"
	"time"

	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/metrics"
)

// Request is a playback or download intent as received from a client.
type Request struct {
	ContentID     string `json:"id"`
	MediaType     string `json:"mediaType"`
	QualityIndex  int    `json:"qualityIndex"`
	SeasonNumber  *int   `json:"seasonNumber,omitempty"`
	EpisodeNumber *int   `json:"episodeNumber,omitempty"`
}

// RequestFor converts a selection back into its wire request.
func RequestFor(sel Selection) Request {
	return Request{
		ContentID:     sel.ContentID,
		MediaType:     string(sel.Kind),
		QualityIndex:  sel.QualityIndex,
		SeasonNumber:  sel.Season,
		EpisodeNumber: sel.Episode,
	}
}

// Issued is a freshly signed grant.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	Grant     Grant
}

// Issuer validates intents and signs grants. It performs no catalog lookup:
// an unknown content id yields a grant the origin rejects later.
type Issuer struct {
	codec *Codec
}

// NewIssuer returns an issuer signing with codec.
func NewIssuer(codec *Codec) *Issuer {
	return &Issuer{codec: codec}
}

// Validate checks req and returns the selection it describes.
func Validate(req Request) (Selection, error) {
	verr := &ValidationError{}
	id := strings.TrimSpace(req.ContentID)
	if id == "" {
		verr.add("id", "is required")
	}
	var kind MediaKind
	if strings.TrimSpace(req.MediaType) == "" {
		verr.add("mediaType", "is required")
	} else if k, ok := ParseMediaKind(req.MediaType); !ok {
		verr.add("mediaType", "must be movie or show")
	} else {
		kind = k
	}
	if req.QualityIndex < 0 {
		verr.add("qualityIndex", "must be >= 0")
	}
	if req.SeasonNumber != nil && *req.SeasonNumber < 0 {
		verr.add("seasonNumber", "must be >= 0")
	}
	if req.EpisodeNumber != nil && *req.EpisodeNumber < 0 {
		verr.add("episodeNumber", "must be >= 0")
	}
	if len(verr.Fields) > 0 {
		return Selection{}, verr
	}
	return Selection{
		ContentID:    id,
		Kind:         kind,
		QualityIndex: req.QualityIndex,
		Season:       req.SeasonNumber,
		Episode:      req.EpisodeNumber,
	}, nil
}

// Issue validates req and returns a signed grant.
func (i *Issuer) Issue(ctx context.Context, req Request) (Issued, error) {
	sel, err := Validate(req)
	if err != nil {
		metrics.IncGrantRejected("validation")
		return Issued{}, err
	}

	g := i.codec.Stamp(sel)
	token, err := i.codec.Encode(g)
	if err != nil {
		return Issued{}, err
	}

	metrics.IncGrantIssued(string(sel.Kind))
	logger := log.WithComponentFromContext(ctx, "issuer")
	logger.Debug().
		Str(log.FieldEvent, "grant.issued").
		Str(log.FieldContentID, sel.ContentID).
		Str(log.FieldMediaKind, string(sel.Kind)).
		Int(log.FieldQualityIndex, sel.QualityIndex).
		Time(log.FieldExpiresAt, g.ExpiresAt).
		Msg("stream grant issued")

	return Issued{Token: token, ExpiresAt: g.ExpiresAt, Grant: g}, nil
}
