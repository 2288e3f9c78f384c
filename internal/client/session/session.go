// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session keeps a playable, authorized stream URL alive on the
// client side: it fetches a grant on activation, renews it on a schedule
// and on demand, and publishes each new URL to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrTokenUnavailable is the session error after a failed grant fetch.
	ErrTokenUnavailable = errors.New("failed to generate stream token")
	// ErrInactive is returned by operations that need an active session.
	ErrInactive = errors.New("session inactive")
	// ErrRefreshThrottled rejects manual refreshes above the allowed rate.
	ErrRefreshThrottled = errors.New("refresh throttled")
)

const (
	// DefaultIssueTimeout bounds one issuer round trip.
	DefaultIssueTimeout = 10 * time.Second
	// DefaultRenewInterval matches the default grant lifetime minus a
	// five minute margin.
	DefaultRenewInterval = grant.DefaultLifetime - 5*time.Minute
	// DefaultStreamPath is the gateway path on the serving origin.
	DefaultStreamPath = "/api/stream"
)

// Issuer obtains grants. *HTTPIssuer and *grant.Issuer satisfy it.
type Issuer interface {
	Issue(ctx context.Context, req grant.Request) (grant.Issued, error)
}

// Config configures a Session.
type Config struct {
	Issuer Issuer
	// StreamURL is the gateway address the token is appended to.
	StreamURL     string
	RenewInterval time.Duration
	IssueTimeout  time.Duration
	// RefreshEvery and RefreshBurst throttle manual Refresh calls.
	RefreshEvery time.Duration
	RefreshBurst int
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Active     bool
	Selection  grant.Selection
	Token      string
	URL        string
	ExpiresAt  time.Time
	Loading    bool
	Err        error
	Generation uint64
}

// Session owns at most one renewal task at a time.
type Session struct {
	issuer       Issuer
	streamURL    *url.URL
	renewEvery   time.Duration
	issueTimeout time.Duration
	limiter      *rate.Limiter
	flight       singleflight.Group

	mu        sync.Mutex
	id        string
	active    bool
	sel       grant.Selection
	gen       uint64
	token     string
	playURL   string
	expiresAt time.Time
	loading   bool
	err       error
	stop      context.CancelFunc
	done      chan struct{}
	subs      map[chan Snapshot]struct{}
	closed    bool
}

// New validates cfg and returns an inactive session.
func New(cfg Config) (*Session, error) {
	if cfg.Issuer == nil {
		return nil, errors.New("session: issuer is required")
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamPath
	}
	u, err := url.Parse(cfg.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("session: parse stream url: %w", err)
	}
	if cfg.RenewInterval <= 0 {
		cfg.RenewInterval = DefaultRenewInterval
	}
	if cfg.IssueTimeout <= 0 {
		cfg.IssueTimeout = DefaultIssueTimeout
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 2 * time.Second
	}
	if cfg.RefreshBurst <= 0 {
		cfg.RefreshBurst = 3
	}
	return &Session{
		issuer:       cfg.Issuer,
		streamURL:    u,
		renewEvery:   cfg.RenewInterval,
		issueTimeout: cfg.IssueTimeout,
		limiter:      rate.NewLimiter(rate.Every(cfg.RefreshEvery), cfg.RefreshBurst),
		subs:         make(map[chan Snapshot]struct{}),
	}, nil
}

// Activate selects what to play, fetches a grant right away and starts the
// renewal task. Activating the selection that is already active is a no-op;
// any other selection replaces the previous schedule and token.
func (s *Session) Activate(ctx context.Context, sel grant.Selection) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrInactive
	}
	if s.active && s.sel.Equal(sel) {
		s.mu.Unlock()
		return nil
	}
	stop, done := s.resetLocked()
	s.active = true
	s.sel = sel
	s.id = uuid.NewString()
	gen := s.gen

	loopCtx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})
	loopDone := s.done
	s.publishLocked()
	s.mu.Unlock()

	waitStopped(stop, done)
	s.logger().Debug().Str(log.FieldEvent, "session.activated").Str("selection", sel.String()).Msg("stream session activated")

	go s.renewLoop(loopCtx, gen, loopDone)
	return s.fetch(ctx, gen)
}

// Refresh renews the grant on demand. It does nothing while inactive and
// is throttled; concurrent calls share one issuer request.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	active, gen := s.active, s.gen
	s.mu.Unlock()
	if !active {
		return nil
	}
	if !s.limiter.Allow() {
		return ErrRefreshThrottled
	}
	return s.fetch(ctx, gen)
}

// Deactivate stops renewal and discards the token. It does not wait for the
// issuer: fetches still in flight complete but their result is dropped.
func (s *Session) Deactivate() {
	s.mu.Lock()
	wasActive := s.active
	stop, done := s.resetLocked()
	s.publishLocked()
	s.mu.Unlock()

	waitStopped(stop, done)
	if wasActive {
		s.logger().Debug().Str(log.FieldEvent, "session.deactivated").Msg("stream session deactivated")
	}
}

// Close deactivates the session and closes every subscription.
func (s *Session) Close() {
	s.Deactivate()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot; slow
// readers skip intermediate states. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// resetLocked bumps the generation and clears per-activation state. The
// caller must wait for the returned loop outside the lock.
func (s *Session) resetLocked() (context.CancelFunc, chan struct{}) {
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.gen++
	s.active = false
	s.sel = grant.Selection{}
	s.token, s.playURL = "", ""
	s.expiresAt = time.Time{}
	s.loading = false
	s.err = nil
	return stop, done
}

func waitStopped(stop context.CancelFunc, done chan struct{}) {
	if stop == nil {
		return
	}
	stop()
	<-done
}

// renewLoop triggers a renewal on every tick until ctx ends. Renewals run
// detached from ctx so stopping the loop never aborts a request the issuer
// is already serving; the generation check drops their result. A tick that
// lands while the previous renewal is still running is skipped.
func (s *Session) renewLoop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.renewEvery)
	defer ticker.Stop()

	rctx := context.WithoutCancel(ctx)
	var renewing atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !renewing.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer renewing.Store(false)
				s.renew(rctx, gen)
			}()
		}
	}
}

func (s *Session) renew(ctx context.Context, gen uint64) {
	if err := s.fetch(ctx, gen); err != nil && !errors.Is(err, ErrInactive) {
		s.logger().Warn().Err(err).Str(log.FieldEvent, "session.renew_failed").Msg("scheduled grant renewal failed")
	}
}

// fetch requests a grant for generation gen. Calls for the same generation
// are collapsed into one issuer request.
func (s *Session) fetch(ctx context.Context, gen uint64) error {
	_, err, _ := s.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, s.fetchOnce(ctx, gen)
	})
	return err
}

func (s *Session) fetchOnce(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if !s.active || s.gen != gen {
		s.mu.Unlock()
		return ErrInactive
	}
	req := grant.RequestFor(s.sel)
	s.loading = true
	s.publishLocked()
	s.mu.Unlock()

	ictx, cancel := context.WithTimeout(ctx, s.issueTimeout)
	issued, err := s.issuer.Issue(ictx, req)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.gen != gen {
		// Deactivated or re-targeted while the request was in flight.
		return ErrInactive
	}
	s.loading = false
	if err != nil {
		s.err = ErrTokenUnavailable
		s.publishLocked()
		return fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	s.token = issued.Token
	s.expiresAt = issued.ExpiresAt
	s.playURL = s.buildURL(issued.Token)
	s.err = nil
	s.publishLocked()
	return nil
}

func (s *Session) buildURL(token string) string {
	u := *s.streamURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Active:     s.active,
		Selection:  s.sel,
		Token:      s.token,
		URL:        s.playURL,
		ExpiresAt:  s.expiresAt,
		Loading:    s.loading,
		Err:        s.err,
		Generation: s.gen,
	}
}

// publishLocked offers the latest snapshot to every subscriber without
// blocking, replacing any snapshot not yet consumed.
func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Session) logger() *zerolog.Logger {
	s.mu.Lock()
	id := s.id
	s.mu.Unlock()
	l := log.WithComponent("session").With().Str(log.FieldSessionID, id).Logger()
	return &l
}
