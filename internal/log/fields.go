// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldContentID = "content_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Grant fields
	FieldMediaKind    = "media_kind"
	FieldQualityIndex = "quality_index"
	FieldSeason       = "season"
	FieldEpisode      = "episode"
	FieldExpiresAt    = "expires_at"
	FieldReason       = "reason"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldRange      = "range"
	FieldRemoteAddr = "remote_addr"
	FieldDuration   = "duration_ms"
	FieldBytes      = "bytes"

	// Playback fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
