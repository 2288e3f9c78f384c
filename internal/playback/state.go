// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback models the player surface as a reducer over events plus
// an Engine that drives a media element and the controls-idle timer.
package playback

import (
	"fmt"
	"math"
)

// ReadyState mirrors the media element readiness levels.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (r ReadyState) String() string {
	switch r {
	case HaveNothing:
		return "nothing"
	case HaveMetadata:
		return "metadata"
	case HaveCurrentData:
		return "current_data"
	case HaveFutureData:
		return "future_data"
	case HaveEnoughData:
		return "enough_data"
	default:
		return "unknown"
	}
}

// AspectMode is a presentation mode for the video surface.
type AspectMode string

const (
	AspectBestFit   AspectMode = "bestFit"
	AspectFitScreen AspectMode = "fitScreen"
	AspectFill      AspectMode = "fill"
	Aspect16x9      AspectMode = "ratio16_9"
	Aspect4x3       AspectMode = "ratio4_3"
)

// AspectModes lists the modes in menu order.
var AspectModes = []AspectMode{AspectBestFit, AspectFitScreen, AspectFill, Aspect16x9, Aspect4x3}

// Valid reports whether m is one of AspectModes.
func (m AspectMode) Valid() bool {
	for _, v := range AspectModes {
		if m == v {
			return true
		}
	}
	return false
}

// Label is the menu text for m.
func (m AspectMode) Label() string {
	switch m {
	case AspectBestFit:
		return "Best Fit"
	case AspectFitScreen:
		return "Fit Screen"
	case AspectFill:
		return "Fill"
	case Aspect16x9:
		return "16:9"
	case Aspect4x3:
		return "4:3"
	default:
		return "Aspect Ratio"
	}
}

// Rates is the playback speed menu.
var Rates = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

// ValidRate reports whether r is on the speed menu.
func ValidRate(r float64) bool {
	for _, v := range Rates {
		if r == v {
			return true
		}
	}
	return false
}

// SeekStep is the relative seek distance in seconds.
const SeekStep = 10.0

// State is the full player state. It is only changed by Reduce.
type State struct {
	Playing    bool
	Elapsed    float64
	Duration   float64
	Volume     float64
	LastVolume float64
	Rate       float64
	Fullscreen bool
	// ControlsVisible is cleared by the idle timer and pointer leave.
	ControlsVisible bool
	SettingsOpen    bool
	Loading         bool
	// Buffered is the furthest buffered position as a fraction of the duration.
	Buffered   float64
	ReadyState ReadyState
	Aspect     AspectMode
	Source     string
	// Stalled is set by a media error and only cleared by a new source.
	Stalled bool
	Err     error
}

// Initial is the state of a freshly opened player: autoplay on, full volume.
func Initial() State {
	return State{
		Playing:         true,
		Volume:          1,
		LastVolume:      1,
		Rate:            1,
		ControlsVisible: true,
		Loading:         true,
		Aspect:          AspectBestFit,
	}
}

// Progress is elapsed/duration as a percentage in [0, 100].
func (s State) Progress() float64 {
	if !known(s.Duration) {
		return 0
	}
	return clamp(s.Elapsed/s.Duration*100, 0, 100)
}

// BufferedPercent is Buffered scaled to [0, 100] for the progress bar.
func (s State) BufferedPercent() float64 {
	return s.Buffered * 100
}

// Muted reports whether the volume is zero.
func (s State) Muted() bool { return s.Volume == 0 }

// ShowLoadingOverlay is true while a failed source waits for a new one, and
// while loading near the start of the stream or below the can-play-through
// threshold. Mid-stream rebuffering above it does not flash the overlay.
func (s State) ShowLoadingOverlay() bool {
	return s.Stalled || (s.Loading && (s.Elapsed < 1 || s.ReadyState < HaveFutureData))
}

// FormatTime renders seconds as m:ss. Non-finite input yields "0:00".
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func known(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
