// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package grant issues and verifies stream grants: signed, time-boxed
// authorizations scoped to one content, quality and episode selection.
package grant

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLifetime is how long a grant stays redeemable after issue.
const DefaultLifetime = 6 * time.Hour

// MediaKind distinguishes single items from episodic content.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindShow  MediaKind = "show"
)

// ParseMediaKind accepts the wire names and a few aliases used by older clients.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "single-item", "single":
		return KindMovie, true
	case "show", "tv", "episodic", "series":
		return KindShow, true
	default:
		return "", false
	}
}

// Code is the one-letter form used in compact download parameters.
func (k MediaKind) Code() string {
	if k == KindShow {
		return "s"
	}
	return "m"
}

// Selection identifies exactly which rendition a grant unlocks.
type Selection struct {
	ContentID    string
	Kind         MediaKind
	QualityIndex int
	Season       *int
	Episode      *int
}

// String renders the selection for logs and cache keys.
func (s Selection) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s/q%d", s.Kind, s.ContentID, s.QualityIndex)
	if s.Season != nil {
		fmt.Fprintf(&b, "/s%d", *s.Season)
	}
	if s.Episode != nil {
		fmt.Fprintf(&b, "/e%d", *s.Episode)
	}
	return b.String()
}

// Equal reports whether two selections address the same rendition.
func (s Selection) Equal(o Selection) bool {
	return s.ContentID == o.ContentID &&
		s.Kind == o.Kind &&
		s.QualityIndex == o.QualityIndex &&
		intPtrEqual(s.Season, o.Season) &&
		intPtrEqual(s.Episode, o.Episode)
}

// Grant is the signed payload. It is never mutated after signing; renewal
// always produces a new Grant.
type Grant struct {
	Selection
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the grant is no longer redeemable at now.
func (g Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// Int returns a pointer to v, for optional season and episode numbers.
func Int(v int) *int {
	return &v
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
