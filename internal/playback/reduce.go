// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "math"

// Reduce applies ev to s and returns the new state plus the side effects the
// media element must perform. It never mutates its input.
func Reduce(s State, ev Event) (State, []Command) {
	switch e := ev.(type) {
	case TogglePlay:
		s, cmds := interact(s)
		s.Playing = !s.Playing
		if s.Playing {
			return s, append(cmds, Play{})
		}
		return s, append(cmds, Pause{})

	case SeekBy:
		if !known(s.Duration) || !finite(e.Seconds) {
			return s, nil
		}
		s, cmds := interact(s)
		return seek(s, s.Elapsed+e.Seconds, cmds)

	case SeekTo:
		if !known(s.Duration) || !finite(e.Fraction) {
			return s, nil
		}
		s, cmds := interact(s)
		return seek(s, clamp(e.Fraction, 0, 1)*s.Duration, cmds)

	case Resume:
		if !finite(e.Position) || e.Position <= 0 {
			return s, nil
		}
		if known(s.Duration) && e.Position >= s.Duration {
			return s, nil
		}
		return seek(s, e.Position, nil)

	case SetVolume:
		if !finite(e.Volume) {
			return s, nil
		}
		s, cmds := interact(s)
		s.Volume = clamp(e.Volume, 0, 1)
		if s.Volume > 0 {
			s.LastVolume = s.Volume
		}
		return s, append(cmds, ApplyVolume{Volume: s.Volume, Muted: s.Muted()})

	case ToggleMute:
		s, cmds := interact(s)
		if s.Volume > 0 {
			s.LastVolume = s.Volume
			s.Volume = 0
		} else if s.LastVolume > 0 {
			s.Volume = s.LastVolume
		} else {
			s.Volume = 1
		}
		return s, append(cmds, ApplyVolume{Volume: s.Volume, Muted: s.Muted()})

	case SetRate:
		if !ValidRate(e.Rate) {
			return s, nil
		}
		s, cmds := interact(s)
		s.Rate = e.Rate
		s.SettingsOpen = false
		return s, append(cmds, ApplyRate{Rate: s.Rate})

	case ToggleFullscreen:
		// State follows FullscreenChanged from the platform, not the request.
		s, cmds := interact(s)
		return s, append(cmds, RequestFullscreen{Enter: !s.Fullscreen})

	case SetAspect:
		if !e.Mode.Valid() {
			return s, nil
		}
		s, cmds := interact(s)
		s.Aspect = e.Mode
		return s, cmds

	case ToggleSettings:
		s, cmds := interact(s)
		s.SettingsOpen = !s.SettingsOpen
		return s, cmds

	case CloseSettings:
		s.SettingsOpen = false
		return s, nil

	case Interact:
		return interact(s)

	case PointerLeave:
		if s.SettingsOpen {
			return s, nil
		}
		s.ControlsVisible = false
		return s, []Command{StopIdleTimer{}}

	case ControlsIdle:
		s.ControlsVisible = false
		return s, nil

	case FullscreenChanged:
		s.Fullscreen = e.Active
		return s, nil

	case SourceChanged:
		return changeSource(s, e.URL)

	case MetadataLoaded:
		if known(e.Duration) {
			s.Duration = e.Duration
		} else {
			s.Duration = 0
		}
		if finite(e.Volume) {
			s.Volume = clamp(e.Volume, 0, 1)
			if s.Volume > 0 {
				s.LastVolume = s.Volume
			}
		}
		if e.Rate > 0 && finite(e.Rate) {
			s.Rate = e.Rate
		}
		if s.ReadyState < HaveMetadata {
			s.ReadyState = HaveMetadata
		}
		s.Elapsed = s.clampTime(s.Elapsed)
		return settle(s), nil

	case TimeUpdate:
		if !finite(e.Elapsed) {
			return s, nil
		}
		s.Elapsed = s.clampTime(e.Elapsed)
		return s, nil

	case Waiting, Stalled, Seeking:
		s.Loading = true
		return s, nil

	case Playing:
		s.Loading = false
		return settle(s), nil

	case CanPlay:
		s.ReadyState = e.ReadyState
		s.Loading = e.ReadyState < HaveFutureData
		return settle(s), nil

	case Seeked:
		s.ReadyState = e.ReadyState
		s.Loading = false
		return settle(s), nil

	case Progress:
		if !known(s.Duration) || !finite(e.BufferedEnd) {
			return s, nil
		}
		s.Buffered = clamp(e.BufferedEnd/s.Duration, 0, 1)
		return s, nil

	case MediaError:
		s.Stalled = true
		s.Err = e.Err
		s.Loading = true
		return s, nil
	}
	return s, nil
}

// interact shows the controls and restarts the idle countdown.
func interact(s State) (State, []Command) {
	s.ControlsVisible = true
	return s, []Command{ResetIdleTimer{}}
}

func seek(s State, target float64, cmds []Command) (State, []Command) {
	s.Elapsed = s.clampTime(target)
	return s, append(cmds, SetCurrentTime{Seconds: s.Elapsed})
}

func (s State) clampTime(t float64) float64 {
	if !known(s.Duration) {
		return math.Max(t, 0)
	}
	return clamp(t, 0, s.Duration)
}

// settle keeps an errored source loading until a new source arrives.
func settle(s State) State {
	if s.Stalled {
		s.Loading = true
	}
	return s
}

// changeSource resets everything the old source reported and keeps the
// viewer's preferences.
func changeSource(s State, url string) (State, []Command) {
	next := Initial()
	next.Playing = s.Playing
	next.Volume = s.Volume
	next.LastVolume = s.LastVolume
	next.Rate = s.Rate
	next.Aspect = s.Aspect
	next.Fullscreen = s.Fullscreen
	next.ControlsVisible = s.ControlsVisible
	next.SettingsOpen = s.SettingsOpen
	next.Source = url

	if url == "" {
		next.Loading = false
		return next, []Command{Pause{}, LoadSource{}}
	}
	cmds := []Command{
		LoadSource{URL: url},
		ApplyVolume{Volume: next.Volume, Muted: next.Muted()},
		ApplyRate{Rate: next.Rate},
	}
	if next.Playing {
		cmds = append(cmds, Play{})
	}
	return next, cmds
}
