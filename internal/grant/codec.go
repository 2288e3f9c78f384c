// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package grant

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the JWT body. Field names match the payload the origin store
// already verifies, so tokens stay interchangeable with it.
type claims struct {
	ID            string `json:"id"`
	MediaType     string `json:"mediaType"`
	QualityIndex  int    `json:"qualityIndex"`
	SeasonNumber  *int   `json:"seasonNumber,omitempty"`
	EpisodeNumber *int   `json:"episodeNumber,omitempty"`
	Timestamp     int64  `json:"timestamp"`
	Expiry        int64  `json:"expiry"`
	jwt.RegisteredClaims
}

// Codec signs and verifies grants with a shared HMAC secret. It is the only
// component that touches the secret and is safe for concurrent use.
type Codec struct {
	secret   []byte
	previous []byte
	lifetime time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithPreviousSecret accepts tokens signed with an outgoing secret during a
// rollover window. New tokens are always signed with the primary secret.
func WithPreviousSecret(secret []byte) Option {
	return func(c *Codec) {
		if len(secret) > 0 {
			c.previous = append([]byte(nil), secret...)
		}
	}
}

// WithClock overrides the time source used for issue and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec. lifetime <= 0 selects DefaultLifetime.
func NewCodec(secret []byte, lifetime time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("grant: signing secret is required")
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	c := &Codec{
		secret:   append([]byte(nil), secret...),
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Lifetime reports the fixed validity window of issued grants.
func (c *Codec) Lifetime() time.Duration { return c.lifetime }

// Stamp turns a selection into a fresh grant issued now.
func (c *Codec) Stamp(sel Selection) Grant {
	issued := c.now().UTC().Truncate(time.Second)
	return Grant{
		Selection: sel,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(c.lifetime),
	}
}

// Encode signs g. A zero IssuedAt is stamped with the codec clock; otherwise
// the output is deterministic for identical input.
func (c *Codec) Encode(g Grant) (string, error) {
	if g.IssuedAt.IsZero() {
		g = c.Stamp(g.Selection)
	}
	if g.ContentID == "" || g.Kind == "" {
		return "", errors.New("grant: content id and media kind are required")
	}
	cl := claims{
		ID:            g.ContentID,
		MediaType:     string(g.Kind),
		QualityIndex:  g.QualityIndex,
		SeasonNumber:  g.Season,
		EpisodeNumber: g.Episode,
		Timestamp:     g.IssuedAt.Unix(),
		Expiry:        g.ExpiresAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(g.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("grant: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns the grant it carries. Errors are always *AuthError.
func (c *Codec) Decode(token string) (Grant, error) {
	var cl claims
	_, err := c.parser.ParseWithClaims(token, &cl, keyFunc(c.secret))
	if err != nil && c.previous != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		cl = claims{}
		_, err = c.parser.ParseWithClaims(token, &cl, keyFunc(c.previous))
	}
	if err != nil {
		return Grant{}, classify(err)
	}

	kind, ok := ParseMediaKind(cl.MediaType)
	if cl.ID == "" || !ok || cl.QualityIndex < 0 || cl.IssuedAt == nil {
		return Grant{}, &AuthError{Kind: Malformed, Err: errors.New("incomplete selection")}
	}
	// The legacy expiry field is checked too; it must never outlive exp.
	if cl.Expiry != 0 && cl.Expiry < c.now().Unix() {
		return Grant{}, &AuthError{Kind: Expired}
	}

	return Grant{
		Selection: Selection{
			ContentID:    cl.ID,
			Kind:         kind,
			QualityIndex: cl.QualityIndex,
			Season:       cl.SeasonNumber,
			Episode:      cl.EpisodeNumber,
		},
		IssuedAt:  cl.IssuedAt.Time.UTC(),
		ExpiresAt: cl.ExpiresAt.Time.UTC(),
	}, nil
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return secret, nil
	}
}

func classify(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &AuthError{Kind: Expired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &AuthError{Kind: BadSignature, Err: err}
	default:
		return &AuthError{Kind: Malformed, Err: err}
	}
}
