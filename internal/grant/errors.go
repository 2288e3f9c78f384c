// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package grant

import (
	"fmt"
	"strings"
)

// AuthErrorKind classifies why a token could not be redeemed.
type AuthErrorKind int

const (
	Malformed AuthErrorKind = iota + 1
	BadSignature
	Expired
)

func (k AuthErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case BadSignature:
		return "bad_signature"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuthError is returned by Codec.Decode. The kind is for server-side logs and
// metrics only; HTTP callers must collapse all kinds into one response.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "grant: " + e.Kind.String()
	}
	return fmt.Sprintf("grant: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches on kind so callers can use errors.Is(err, grant.ErrExpired).
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrMalformed    = &AuthError{Kind: Malformed}
	ErrBadSignature = &AuthError{Kind: BadSignature}
	ErrExpired      = &AuthError{Kind: Expired}
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by the Issuer when a request lacks required selection fields.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid grant request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}
