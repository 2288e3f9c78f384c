// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package grant

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCodec(t *testing.T, clk *fakeClock, opts ...Option) *Codec {
	t.Helper()
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	c, err := NewCodec(testSecret, DefaultLifetime, opts...)
	require.NoError(t, err)
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	selections := []Selection{
		{ContentID: "42", Kind: KindMovie, QualityIndex: 0},
		{ContentID: "42", Kind: KindMovie, QualityIndex: 3},
		{ContentID: "1399", Kind: KindShow, QualityIndex: 1, Season: Int(2), Episode: Int(7)},
		{ContentID: "tt0903747", Kind: KindShow, QualityIndex: 0, Season: Int(0), Episode: Int(1)},
	}

	for _, sel := range selections {
		t.Run(sel.String(), func(t *testing.T) {
			token, err := codec.Encode(Grant{Selection: sel})
			require.NoError(t, err)

			got, err := codec.Decode(token)
			require.NoError(t, err)

			if diff := cmp.Diff(sel, got.Selection); diff != "" {
				t.Fatalf("selection mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, clk.Now(), got.IssuedAt)
			assert.Equal(t, DefaultLifetime, got.ExpiresAt.Sub(got.IssuedAt))
		})
	}
}

func TestCodec_EncodeDeterministicForSameInput(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	g := codec.Stamp(Selection{ContentID: "42", Kind: KindMovie})
	a, err := codec.Encode(g)
	require.NoError(t, err)
	b, err := codec.Encode(g)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	clk.Advance(2 * time.Second)
	c, err := codec.Encode(Grant{Selection: g.Selection})
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "a later issue time must change the token")
}

func TestCodec_ExpiredAfterLifetime(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	token, err := codec.Encode(Grant{Selection: Selection{ContentID: "42", Kind: KindMovie}})
	require.NoError(t, err)

	clk.Advance(DefaultLifetime - time.Second)
	_, err = codec.Decode(token)
	require.NoError(t, err, "still valid one second before expiry")

	for _, step := range []time.Duration{time.Second, time.Minute, 48 * time.Hour} {
		clk.Advance(step)
		_, err = codec.Decode(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExpired)

		var aerr *AuthError
		require.True(t, errors.As(err, &aerr))
		assert.Equal(t, Expired, aerr.Kind)
	}
}

func TestCodec_SingleByteFlipAlwaysFails(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	original := Selection{ContentID: "1399", Kind: KindShow, QualityIndex: 2, Season: Int(1), Episode: Int(3)}
	token, err := codec.Encode(Grant{Selection: original})
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		for _, mask := range []byte{0x01, 0x02, 0x20} {
			b := []byte(token)
			b[i] ^= mask
			tampered := string(b)
			if tampered == token {
				continue
			}
			got, err := codec.Decode(tampered)
			if err == nil {
				t.Fatalf("flip at %d (mask %#x) decoded to %s", i, mask, got.Selection)
			}
			var aerr *AuthError
			require.True(t, errors.As(err, &aerr), "error must be *AuthError, got %T", err)
			assert.NotEqual(t, Expired, aerr.Kind)
		}
	}
}

func TestCodec_RejectsForeignSecret(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	other, err := NewCodec([]byte("another-secret-another-secret!!"), DefaultLifetime, WithClock(clk.Now))
	require.NoError(t, err)

	token, err := other.Encode(Grant{Selection: Selection{ContentID: "42", Kind: KindMovie}})
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestCodec_Malformed(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"two segments": "abc.def",
		"bad base64":   "!!!.???.***",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(token)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	cl := claims{
		ID:        "42",
		MediaType: "movie",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(clk.Now()),
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, cl).SignedString(testSecret)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, cl).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Decode(none)
	require.Error(t, err)
}

func TestCodec_RejectsIncompleteSelection(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	cl := claims{
		MediaType: "movie",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(clk.Now()),
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(testSecret)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCodec_PreviousSecretDuringRollover(t *testing.T) {
	clk := newFakeClock()
	oldSecret := []byte("old-secret-old-secret-old-secret")

	old, err := NewCodec(oldSecret, DefaultLifetime, WithClock(clk.Now))
	require.NoError(t, err)
	token, err := old.Encode(Grant{Selection: Selection{ContentID: "42", Kind: KindMovie}})
	require.NoError(t, err)

	rolling := newTestCodec(t, clk, WithPreviousSecret(oldSecret))
	got, err := rolling.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ContentID)

	fresh, err := rolling.Encode(Grant{Selection: got.Selection})
	require.NoError(t, err)
	_, err = old.Decode(fresh)
	assert.ErrorIs(t, err, ErrBadSignature, "new tokens are signed with the primary secret only")

	clk.Advance(DefaultLifetime)
	_, err = rolling.Decode(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_ConcurrentUse(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sel := Selection{ContentID: strings.Repeat("x", i+1), Kind: KindMovie, QualityIndex: i}
			token, err := codec.Encode(Grant{Selection: sel})
			assert.NoError(t, err)
			got, err := codec.Decode(token)
			assert.NoError(t, err)
			assert.True(t, sel.Equal(got.Selection))
		}(i)
	}
	wg.Wait()
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec(nil, time.Hour)
	require.Error(t, err)

	c, err := NewCodec(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLifetime, c.Lifetime())
}

func TestSelection_Equal(t *testing.T) {
	a := Selection{ContentID: "1", Kind: KindShow, Season: Int(1), Episode: Int(2)}
	b := Selection{ContentID: "1", Kind: KindShow, Season: Int(1), Episode: Int(2)}
	assert.True(t, a.Equal(b))

	b.Episode = nil
	assert.False(t, a.Equal(b))
	assert.True(t, cmp.Equal(a, a, cmpopts.EquateEmpty()))
}
