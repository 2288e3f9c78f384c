// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeIssuer hands out tok-1, tok-2, ... and can be made to fail or block.
type fakeIssuer struct {
	calls    atomic.Int64
	returned atomic.Int64
	fail     atomic.Bool
	mu       sync.Mutex
	block    chan struct{}
	started  chan struct{}
	reqs     []grant.Request
	ctxErr   error
}

func (f *fakeIssuer) Issue(ctx context.Context, req grant.Request) (grant.Issued, error) {
	n := f.calls.Add(1)
	defer func() {
		f.mu.Lock()
		f.ctxErr = ctx.Err()
		f.mu.Unlock()
		f.returned.Add(1)
	}()
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return grant.Issued{}, ctx.Err()
		}
	}
	if f.fail.Load() {
		return grant.Issued{}, errors.New("issuer down")
	}
	return grant.Issued{
		Token:     fmt.Sprintf("tok-%d", n),
		ExpiresAt: time.Unix(1700000000, 0).Add(time.Duration(n) * time.Hour),
	}, nil
}

// blockNext makes following calls wait on the returned release func.
func (f *fakeIssuer) blockNext() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	f.started = make(chan struct{}, 1)
	block := f.block
	var once sync.Once
	return f.started, func() { once.Do(func() { close(block) }) }
}

// lastCtxErr is the context error the latest call saw when it returned.
func (f *fakeIssuer) lastCtxErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxErr
}

func (f *fakeIssuer) lastRequest() grant.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

var movie = grant.Selection{ContentID: "42", Kind: grant.KindMovie, QualityIndex: 1}

func newSession(t *testing.T, iss *fakeIssuer, mod func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		Issuer:        iss,
		StreamURL:     "http://gw.test/api/stream",
		RenewInterval: time.Hour,
		IssueTimeout:  time.Second,
	}
	if mod != nil {
		mod(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNew_RequiresIssuer(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestActivate_FetchesAndBuildsURL(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)

	require.NoError(t, s.Activate(context.Background(), movie))

	snap := s.Snapshot()
	assert.True(t, snap.Active)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.Equal(t, "tok-1", snap.Token)
	assert.Equal(t, "http://gw.test/api/stream?token=tok-1", snap.URL)
	assert.True(t, snap.Selection.Equal(movie))
	assert.Equal(t, grant.Request{ContentID: "42", MediaType: "movie", QualityIndex: 1}, iss.lastRequest())
}

func TestActivate_RelativeStreamPathKeepsExistingQuery(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.StreamURL = "/api/stream?debug=1" })

	require.NoError(t, s.Activate(context.Background(), movie))
	assert.Equal(t, "/api/stream?debug=1&token=tok-1", s.Snapshot().URL)
}

func TestActivate_SameSelectionIsNoop(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)

	require.NoError(t, s.Activate(context.Background(), movie))
	same := movie
	require.NoError(t, s.Activate(context.Background(), same))

	assert.EqualValues(t, 1, iss.calls.Load())
	assert.Equal(t, "tok-1", s.Snapshot().Token)
}

func TestActivate_NewSelectionReplacesScheduleAndToken(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	iss := &fakeIssuer{}
	s, err := New(Config{Issuer: iss, StreamURL: "/api/stream", RenewInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, s.Activate(context.Background(), movie))
	before := s.Snapshot().Generation

	episode := grant.Selection{ContentID: "7", Kind: grant.KindShow, Season: grant.Int(1), Episode: grant.Int(3)}
	require.NoError(t, s.Activate(context.Background(), episode))

	snap := s.Snapshot()
	assert.Greater(t, snap.Generation, before)
	assert.Equal(t, "tok-2", snap.Token)
	assert.True(t, snap.Selection.Equal(episode))
	assert.Equal(t, grant.Request{
		ContentID:     "7",
		MediaType:     "show",
		SeasonNumber:  grant.Int(1),
		EpisodeNumber: grant.Int(3),
	}, iss.lastRequest())

	// Only one renewal goroutine may remain; Close must stop it.
	s.Close()
}

func TestRenewLoop_RenewsOnInterval(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.RenewInterval = 10 * time.Millisecond })

	require.NoError(t, s.Activate(context.Background(), movie))
	require.Eventually(t, func() bool { return iss.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	assert.NotEqual(t, "tok-1", snap.Token)
	assert.Contains(t, snap.URL, "token="+snap.Token)
}

func TestRenewLoop_StopsOnDeactivate(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.RenewInterval = 5 * time.Millisecond })

	require.NoError(t, s.Activate(context.Background(), movie))
	s.Deactivate()
	// A renewal already past its generation check may still reach the issuer.
	time.Sleep(20 * time.Millisecond)
	after := iss.calls.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, iss.calls.Load())
}

func TestDeactivate_LeavesRunningRenewalUncancelled(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.RenewInterval = 20 * time.Millisecond })
	require.NoError(t, s.Activate(context.Background(), movie))

	started, release := iss.blockNext()
	defer release()
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Deactivate()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Deactivate waited for the issuer")
	}

	release()
	require.Eventually(t, func() bool { return iss.returned.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, iss.lastCtxErr())

	snap := s.Snapshot()
	assert.False(t, snap.Active)
	assert.Empty(t, snap.Token)
	assert.Empty(t, snap.URL)
}

func TestRenewLoop_SkipsTicksWhileRenewing(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.RenewInterval = 5 * time.Millisecond })
	require.NoError(t, s.Activate(context.Background(), movie))

	started, release := iss.blockNext()
	defer release()
	<-started
	blocked := iss.calls.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, blocked, iss.calls.Load())
	s.Deactivate()
}

func TestRefresh_InactiveIsNoop(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Zero(t, iss.calls.Load())
}

func TestRefresh_IsThrottled(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) {
		c.RefreshEvery = time.Hour
		c.RefreshBurst = 1
	})
	require.NoError(t, s.Activate(context.Background(), movie))

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, "tok-2", s.Snapshot().Token)

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshThrottled)
	assert.EqualValues(t, 2, iss.calls.Load())
	assert.Equal(t, "tok-2", s.Snapshot().Token)
}

func TestRefresh_ConcurrentCallsShareOneRequest(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.RefreshBurst = 10 })
	require.NoError(t, s.Activate(context.Background(), movie))

	started, release := iss.blockNext()
	defer release()

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Refresh(context.Background())
		}()
	}

	<-started
	assert.True(t, s.Snapshot().Loading)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 2, iss.calls.Load())
	assert.Equal(t, "tok-2", s.Snapshot().Token)
	assert.False(t, s.Snapshot().Loading)
}

func TestFetchFailure_KeepsPreviousToken(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)
	require.NoError(t, s.Activate(context.Background(), movie))

	iss.fail.Store(true)
	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, ErrTokenUnavailable)
	assert.Contains(t, err.Error(), "issuer down")

	snap := s.Snapshot()
	assert.Equal(t, "tok-1", snap.Token)
	assert.Equal(t, "http://gw.test/api/stream?token=tok-1", snap.URL)
	assert.ErrorIs(t, snap.Err, ErrTokenUnavailable)
	assert.Equal(t, "failed to generate stream token", snap.Err.Error())

	iss.fail.Store(false)
	require.NoError(t, s.Refresh(context.Background()))
	snap = s.Snapshot()
	assert.NoError(t, snap.Err)
	assert.Equal(t, "tok-3", snap.Token)
}

func TestActivate_FailureLeavesNoURL(t *testing.T) {
	iss := &fakeIssuer{}
	iss.fail.Store(true)
	s := newSession(t, iss, nil)

	err := s.Activate(context.Background(), movie)
	require.ErrorIs(t, err, ErrTokenUnavailable)

	snap := s.Snapshot()
	assert.True(t, snap.Active)
	assert.Empty(t, snap.URL)
	assert.ErrorIs(t, snap.Err, ErrTokenUnavailable)
}

func TestIssueTimeout_BoundsSlowIssuer(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, func(c *Config) { c.IssueTimeout = 20 * time.Millisecond })
	_, release := iss.blockNext()
	defer release()

	err := s.Activate(context.Background(), movie)
	require.ErrorIs(t, err, ErrTokenUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeactivate_DiscardsInFlightResult(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)
	started, release := iss.blockNext()
	defer release()

	done := make(chan error, 1)
	go func() { done <- s.Activate(context.Background(), movie) }()

	<-started
	s.Deactivate()
	release()

	require.ErrorIs(t, <-done, ErrInactive)
	snap := s.Snapshot()
	assert.False(t, snap.Active)
	assert.Empty(t, snap.Token)
	assert.Empty(t, snap.URL)
	assert.False(t, snap.Loading)
}

func TestActivate_StaleResultFromPreviousSelectionIsDropped(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)
	started, release := iss.blockNext()

	first := make(chan error, 1)
	go func() { first <- s.Activate(context.Background(), movie) }()
	<-started

	iss.mu.Lock()
	iss.block, iss.started = nil, nil
	iss.mu.Unlock()

	other := grant.Selection{ContentID: "99", Kind: grant.KindMovie}
	require.NoError(t, s.Activate(context.Background(), other))
	release()

	require.ErrorIs(t, <-first, ErrInactive)
	snap := s.Snapshot()
	assert.True(t, snap.Selection.Equal(other))
	assert.Equal(t, "tok-2", snap.Token)
}

func TestSubscribe_ReceivesLatestURL(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	initial := <-ch
	assert.False(t, initial.Active)

	require.NoError(t, s.Activate(context.Background(), movie))

	timeout := time.After(time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.URL != "" {
				assert.Equal(t, "http://gw.test/api/stream?token=tok-1", snap.URL)
				return
			}
		case <-timeout:
			t.Fatal("no snapshot with a stream url was published")
		}
	}
}

func TestSubscribe_UnsubscribeClosesChannel(t *testing.T) {
	s := newSession(t, &fakeIssuer{}, nil)

	ch, unsubscribe := s.Subscribe()
	unsubscribe()
	unsubscribe()

	for range ch {
	}
	require.NoError(t, s.Activate(context.Background(), movie))
}

func TestClose_ClosesSubscriptionsAndRejectsActivate(t *testing.T) {
	iss := &fakeIssuer{}
	s := newSession(t, iss, nil)
	ch, _ := s.Subscribe()
	require.NoError(t, s.Activate(context.Background(), movie))

	s.Close()
	for range ch {
	}

	late, _ := s.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
	assert.ErrorIs(t, s.Activate(context.Background(), movie), ErrInactive)
	assert.False(t, s.Snapshot().Active)
}
