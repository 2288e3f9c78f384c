// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"github.com/ManuGH/reelgate/internal/grant"
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across packages.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	GrantContentIDKey = "grant.content_id"
	GrantMediaKindKey = "grant.media_kind"
	GrantQualityKey   = "grant.quality_index"
	GrantSeasonKey    = "grant.season"
	GrantEpisodeKey   = "grant.episode"

	RelayRangeKey        = "relay.range"
	RelayOriginStatusKey = "relay.origin_status"
	RelayBytesKey        = "relay.bytes"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes. The URL is left out
// on purpose: grant-bearing query strings must not reach the collector.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SelectionAttributes describes what a grant authorizes.
func SelectionAttributes(sel grant.Selection) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(GrantContentIDKey, sel.ContentID),
		attribute.String(GrantMediaKindKey, string(sel.Kind)),
		attribute.Int(GrantQualityKey, sel.QualityIndex),
	}
	if sel.Season != nil {
		attrs = append(attrs, attribute.Int(GrantSeasonKey, *sel.Season))
	}
	if sel.Episode != nil {
		attrs = append(attrs, attribute.Int(GrantEpisodeKey, *sel.Episode))
	}
	return attrs
}

// RelayAttributes describes one origin relay.
func RelayAttributes(rangeHeader string, originStatus int, bytes int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if rangeHeader != "" {
		attrs = append(attrs, attribute.String(RelayRangeKey, rangeHeader))
	}
	if originStatus > 0 {
		attrs = append(attrs, attribute.Int(RelayOriginStatusKey, originStatus))
	}
	return append(attrs, attribute.Int64(RelayBytesKey, bytes))
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
