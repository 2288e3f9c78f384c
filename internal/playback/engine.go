// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/reelgate/internal/client/resume"
	"github.com/ManuGH/reelgate/internal/client/session"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/rs/zerolog"
)

// ControlsIdleAfter hides the transport controls after this much inactivity.
const ControlsIdleAfter = 3 * time.Second

// Media is the element the Engine drives. Implementations must not call
// back into the Engine synchronously.
type Media interface {
	Play() error
	Pause()
	SetCurrentTime(seconds float64)
	SetVolume(volume float64, muted bool)
	SetRate(rate float64)
	// SetSource loads url; an empty url unloads the element.
	SetSource(url string)
	SetFullscreen(enter bool) error
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// Clock abstracts timers for deterministic testing.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock uses the runtime timers.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Subscriber publishes stream session snapshots. *session.Session satisfies it.
type Subscriber interface {
	Subscribe() (<-chan session.Snapshot, func())
}

// Options configures an Engine.
type Options struct {
	Clock     Clock
	IdleAfter time.Duration
	// Resume stores the position on Close and restores it on metadata load.
	Resume resume.Store
}

// Engine serialises events through Reduce and applies the resulting
// commands to the media element.
type Engine struct {
	media     Media
	clock     Clock
	idleAfter time.Duration
	store     resume.Store
	logger    zerolog.Logger

	mu      sync.Mutex
	state   State
	idle    Timer
	idleGen uint64
	closed  bool

	// Selection of the attached session and the resume bookkeeping for it.
	sel      grant.Selection
	hasSel   bool
	resumed  bool
	resumeAt float64
	// pending is the newest URL for sel, held back while the loaded source
	// is healthy and switched to as soon as that source fails.
	pending    string
	detach     func()
	detachWait chan struct{}
}

// NewEngine returns an engine in the Initial state with the idle countdown
// running.
func NewEngine(media Media, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = ControlsIdleAfter
	}
	e := &Engine{
		media:     media,
		clock:     opts.Clock,
		idleAfter: opts.IdleAfter,
		store:     opts.Resume,
		logger:    log.WithComponent("playback"),
		state:     Initial(),
	}
	e.mu.Lock()
	e.resetIdleLocked()
	e.mu.Unlock()
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Dispatch applies ev and returns the resulting state. Events after Close
// are ignored.
func (e *Engine) Dispatch(ev Event) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.state
	}
	e.dispatchLocked(ev)
	return e.state
}

func (e *Engine) dispatchLocked(ev Event) {
	prev := e.state
	next, cmds := Reduce(prev, ev)
	e.state = next
	e.applyLocked(cmds)

	switch ev := ev.(type) {
	case MediaError:
		e.logger.Warn().Err(ev.Err).Str(log.FieldEvent, "playback.stalled").Msg("media source failed")
		e.recoverLocked()
	case MetadataLoaded:
		e.resumeLocked()
	}
	if prev.Loading != next.Loading {
		e.logger.Debug().
			Bool(log.FieldOldState, prev.Loading).
			Bool(log.FieldNewState, next.Loading).
			Str(log.FieldEvent, "playback.loading").
			Msg("loading state changed")
	}
}

func (e *Engine) applyLocked(cmds []Command) {
	for _, c := range cmds {
		switch c := c.(type) {
		case Play:
			if err := e.media.Play(); err != nil {
				e.logger.Warn().Err(err).Str(log.FieldEvent, "playback.play_failed").Msg("media refused to play")
			}
		case Pause:
			e.media.Pause()
		case SetCurrentTime:
			e.media.SetCurrentTime(c.Seconds)
		case ApplyVolume:
			e.media.SetVolume(c.Volume, c.Muted)
		case ApplyRate:
			e.media.SetRate(c.Rate)
		case RequestFullscreen:
			if err := e.media.SetFullscreen(c.Enter); err != nil {
				e.logger.Debug().Err(err).Msg("fullscreen request rejected")
			}
		case LoadSource:
			e.media.SetSource(c.URL)
		case ResetIdleTimer:
			e.resetIdleLocked()
		case StopIdleTimer:
			e.stopIdleLocked()
		}
	}
}

func (e *Engine) resetIdleLocked() {
	e.stopIdleLocked()
	gen := e.idleGen
	e.idle = e.clock.AfterFunc(e.idleAfter, func() { e.idleFired(gen) })
}

func (e *Engine) stopIdleLocked() {
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}
	e.idleGen++
}

func (e *Engine) idleFired(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.idleGen {
		return
	}
	e.idle = nil
	e.dispatchLocked(ControlsIdle{})
}

// resumeLocked seeks once per selection: to the position a failed source
// reached, or else to the stored one.
func (e *Engine) resumeLocked() {
	if e.resumed || !e.hasSel {
		return
	}
	e.resumed = true
	pos := e.resumeAt
	e.resumeAt = 0
	if pos <= 0 && e.store != nil {
		stored, ok := e.store.Position(e.sel.String())
		if !ok {
			return
		}
		pos = stored
	}
	if pos > 0 {
		e.dispatchLocked(Resume{Position: pos})
	}
}

// recoverLocked moves a failed source onto the held renewal URL, continuing
// at the position the failed source reached.
func (e *Engine) recoverLocked() {
	url := e.pending
	if url == "" || url == e.state.Source {
		return
	}
	e.pending = ""
	e.resumed, e.resumeAt = false, e.state.Elapsed
	e.logger.Info().
		Str(log.FieldEvent, "playback.recover").
		Str("selection", e.sel.String()).
		Float64("position", e.resumeAt).
		Msg("switching failed source to renewed url")
	e.dispatchLocked(SourceChanged{URL: url})
}

// Attach follows sub. A different selection always switches the source; a
// renewed URL for the current selection is only loaded when nothing is
// playing yet or the current source has failed, so renewal never interrupts
// a running transfer. A healthy source keeps playing and the renewed URL is
// held until the source fails. When the session deactivates, the source is
// unloaded. Attach replaces any previous subscription.
func (e *Engine) Attach(sub Subscriber) {
	ch, unsubscribe := sub.Subscribe()
	done := make(chan struct{})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unsubscribe()
		return
	}
	prevDetach, prevDone := e.detach, e.detachWait
	e.detach, e.detachWait = unsubscribe, done
	e.mu.Unlock()

	if prevDetach != nil {
		prevDetach()
		<-prevDone
	}

	go func() {
		defer close(done)
		for snap := range ch {
			e.onSnapshot(snap)
		}
	}()
}

func (e *Engine) onSnapshot(snap session.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if !snap.Active {
		e.unloadLocked()
		return
	}
	if snap.URL == "" {
		return
	}

	switch {
	case !e.hasSel || !e.sel.Equal(snap.Selection):
		if err := e.saveLocked(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to store resume position")
		}
		e.sel, e.hasSel = snap.Selection, true
		e.resumed, e.resumeAt = false, 0
	case e.state.Source == snap.URL:
		return
	case e.state.Source != "" && !e.state.Stalled:
		e.pending = snap.URL
		return
	default:
		// Recovering the same selection: continue where the failed source was.
		e.resumed, e.resumeAt = false, e.state.Elapsed
	}
	e.pending = ""

	e.logger.Info().
		Str(log.FieldEvent, "playback.source").
		Str(log.FieldContentID, snap.Selection.ContentID).
		Str("selection", snap.Selection.String()).
		Uint64("generation", snap.Generation).
		Msg("playback source changed")
	e.dispatchLocked(SourceChanged{URL: snap.URL})
}

// unloadLocked ends playback of the attached selection after the session
// discarded its grant.
func (e *Engine) unloadLocked() {
	if !e.hasSel {
		return
	}
	if err := e.saveLocked(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to store resume position")
	}
	e.hasSel, e.sel = false, grant.Selection{}
	e.pending = ""
	e.resumed, e.resumeAt = false, 0
	if e.state.Source == "" {
		return
	}
	e.logger.Info().Str(log.FieldEvent, "playback.unload").Msg("session ended, unloading source")
	e.dispatchLocked(SourceChanged{URL: ""})
}

func (e *Engine) saveLocked() error {
	if e.store == nil || !e.hasSel || e.state.Elapsed <= 0 {
		return nil
	}
	return e.store.Save(e.sel.String(), e.state.Elapsed)
}

// Close stops the idle timer, detaches from the session and stores the
// current position. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stopIdleLocked()
	detach, done := e.detach, e.detachWait
	e.detach, e.detachWait = nil, nil
	err := e.saveLocked()
	e.mu.Unlock()

	if detach != nil {
		detach()
		<-done
	}
	if err != nil {
		return fmt.Errorf("playback: save resume position: %w", err)
	}
	return nil
}
