// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/reelgate/internal/catalog"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/metrics"
	"github.com/ManuGH/reelgate/internal/platform/httpx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubShortener struct {
	short string
	err   error
	calls int
}

func (s *stubShortener) Shorten(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.short, s.err
}

func TestBuild_TelegramLinkForEpisode(t *testing.T) {
	b := NewBuilder(nil, "@reel_bot")

	links, err := b.Build(context.Background(), Request{
		StreamURL:     "https://reel.example/api/stream?token=abc",
		Title:         "Dark Matter",
		Quality:       "1080p",
		ContentID:     "1399",
		MediaType:     "show",
		QualityIndex:  2,
		SeasonNumber:  grant.Int(1),
		EpisodeNumber: grant.Int(4),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://reel.example/api/stream?token=abc", links.DirectLink)
	assert.Equal(t, "https://t.me/reel_bot?start=file_1399_s_2_1_4&text=Dark%20Matter%201080p", links.TelegramLink)
}

func TestBuild_MovieDefaultsSeasonAndEpisodeToZero(t *testing.T) {
	b := NewBuilder(nil, "reel_bot")

	link := b.TelegramLink(Request{
		ContentID: "42",
		MediaType: "movie",
		Title:     "Up & Away",
		Rendition: &catalog.Rendition{Type: "720p", Size: "1 GB"},
	})
	assert.Equal(t, "https://t.me/reel_bot?start=file_42_m_0_0_0&text=Up%20%26%20Away%20720p%20%281%20GB%29", link)
}

func TestBuild_RequiresStreamURLAndContentID(t *testing.T) {
	_, err := NewBuilder(nil, "bot").Build(context.Background(), Request{Title: "x"})

	var verr *grant.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "streamUrl", verr.Fields[0].Field)
	assert.Equal(t, "contentId", verr.Fields[1].Field)
}

func TestBuild_UsesShortenerAndFallsBack(t *testing.T) {
	req := Request{StreamURL: "https://reel.example/s?token=t", ContentID: "42", MediaType: "movie"}

	ok := &stubShortener{short: "https://sho.rt/x"}
	before := testutil.ToFloat64(metrics.DownloadLinksTotal.WithLabelValues("true"))
	links, err := NewBuilder(ok, "bot").Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://sho.rt/x", links.DirectLink)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DownloadLinksTotal.WithLabelValues("true")))

	broken := &stubShortener{err: errors.New("boom")}
	links, err = NewBuilder(broken, "bot").Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.StreamURL, links.DirectLink)
	assert.Equal(t, 1, broken.calls)
}

func TestHTTPShortener(t *testing.T) {
	var gotKey, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api")
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","shortenedUrl":"https://sho.rt/abc"}`))
	}))
	defer srv.Close()

	s, err := NewHTTPShortener(srv.URL+"/api", "k3y", httpx.NewClient(time.Second))
	require.NoError(t, err)

	short, err := s.Shorten(context.Background(), "https://reel.example/api/stream?token=a&b=c")
	require.NoError(t, err)
	assert.Equal(t, "https://sho.rt/abc", short)
	assert.Equal(t, "k3y", gotKey)
	assert.Equal(t, "https://reel.example/api/stream?token=a&b=c", gotURL)
}

func TestHTTPShortener_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		"empty":  func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"status":"error"}`)) },
		"junk":   func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			s, err := NewHTTPShortener(srv.URL, "k", nil)
			require.NoError(t, err)
			_, err = s.Shorten(context.Background(), "https://x")
			assert.Error(t, err)
		})
	}

	_, err := NewHTTPShortener("relative/path", "k", nil)
	assert.Error(t, err)
	_, err = NewHTTPShortener("https://sho.rt", "", nil)
	assert.Error(t, err)
}
