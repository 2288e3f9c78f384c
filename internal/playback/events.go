// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// Event is anything Reduce reacts to.
type Event interface{ event() }

// User intents.
type (
	TogglePlay struct{}
	// SeekBy moves relative to the current position, e.g. ±SeekStep.
	SeekBy struct{ Seconds float64 }
	// SeekTo jumps to a fraction of the duration in [0, 1].
	SeekTo           struct{ Fraction float64 }
	SetVolume        struct{ Volume float64 }
	ToggleMute       struct{}
	SetRate          struct{ Rate float64 }
	ToggleFullscreen struct{}
	SetAspect        struct{ Mode AspectMode }
	ToggleSettings   struct{}
	CloseSettings    struct{}
	// Interact is any pointer movement, click or key press on the player.
	Interact     struct{}
	PointerLeave struct{}
)

// Media element events.
type (
	MetadataLoaded struct {
		Duration float64
		Volume   float64
		Rate     float64
	}
	TimeUpdate struct{ Elapsed float64 }
	Waiting    struct{}
	Playing    struct{}
	CanPlay    struct{ ReadyState ReadyState }
	// Progress reports the end of the furthest buffered range in seconds.
	Progress   struct{ BufferedEnd float64 }
	Seeking    struct{}
	Seeked     struct{ ReadyState ReadyState }
	Stalled    struct{}
	MediaError struct{ Err error }
)

// Ambient events.
type (
	ControlsIdle      struct{}
	FullscreenChanged struct{ Active bool }
	SourceChanged     struct{ URL string }
	// Resume seeks to a stored position once metadata is known.
	Resume struct{ Position float64 }
)

func (TogglePlay) event()        {}
func (SeekBy) event()            {}
func (SeekTo) event()            {}
func (SetVolume) event()         {}
func (ToggleMute) event()        {}
func (SetRate) event()           {}
func (ToggleFullscreen) event()  {}
func (SetAspect) event()         {}
func (ToggleSettings) event()    {}
func (CloseSettings) event()     {}
func (Interact) event()          {}
func (PointerLeave) event()      {}
func (MetadataLoaded) event()    {}
func (TimeUpdate) event()        {}
func (Waiting) event()           {}
func (Playing) event()           {}
func (CanPlay) event()           {}
func (Progress) event()          {}
func (Seeking) event()           {}
func (Seeked) event()            {}
func (Stalled) event()           {}
func (MediaError) event()        {}
func (ControlsIdle) event()      {}
func (FullscreenChanged) event() {}
func (SourceChanged) event()     {}
func (Resume) event()            {}

// Command is a side effect Reduce asks the Engine to perform.
type Command interface{ command() }

type (
	Play           struct{}
	Pause          struct{}
	SetCurrentTime struct{ Seconds float64 }
	ApplyVolume    struct {
		Volume float64
		Muted  bool
	}
	ApplyRate         struct{ Rate float64 }
	RequestFullscreen struct{ Enter bool }
	LoadSource        struct{ URL string }
	ResetIdleTimer    struct{}
	StopIdleTimer     struct{}
)

func (Play) command()              {}
func (Pause) command()             {}
func (SetCurrentTime) command()    {}
func (ApplyVolume) command()       {}
func (ApplyRate) command()         {}
func (RequestFullscreen) command() {}
func (LoadSource) command()        {}
func (ResetIdleTimer) command()    {}
func (StopIdleTimer) command()     {}
