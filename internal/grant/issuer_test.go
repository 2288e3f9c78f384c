// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package grant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_Issue(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)
	issuer := NewIssuer(codec)

	issued, err := issuer.Issue(context.Background(), Request{ContentID: "42", MediaType: "movie"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, clk.Now().Add(DefaultLifetime), issued.ExpiresAt)

	g, err := codec.Decode(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, g.QualityIndex, "quality defaults to the first rendition")
	assert.Equal(t, KindMovie, g.Kind)
}

func TestIssuer_EpisodeSelection(t *testing.T) {
	clk := newFakeClock()
	codec := newTestCodec(t, clk)
	issuer := NewIssuer(codec)

	issued, err := issuer.Issue(context.Background(), Request{
		ContentID:     "1399",
		MediaType:     "show",
		QualityIndex:  2,
		SeasonNumber:  Int(3),
		EpisodeNumber: Int(9),
	})
	require.NoError(t, err)

	g, err := codec.Decode(issued.Token)
	require.NoError(t, err)
	require.NotNil(t, g.Season)
	require.NotNil(t, g.Episode)
	assert.Equal(t, 3, *g.Season)
	assert.Equal(t, 9, *g.Episode)
}

func TestIssuer_Validation(t *testing.T) {
	issuer := NewIssuer(newTestCodec(t, newFakeClock()))

	tests := []struct {
		name   string
		req    Request
		fields []string
	}{
		{name: "missing everything", req: Request{}, fields: []string{"id", "mediaType"}},
		{name: "missing id", req: Request{MediaType: "movie"}, fields: []string{"id"}},
		{name: "blank id", req: Request{ContentID: "  ", MediaType: "movie"}, fields: []string{"id"}},
		{name: "missing kind", req: Request{ContentID: "42"}, fields: []string{"mediaType"}},
		{name: "unknown kind", req: Request{ContentID: "42", MediaType: "podcast"}, fields: []string{"mediaType"}},
		{name: "negative quality", req: Request{ContentID: "42", MediaType: "movie", QualityIndex: -1}, fields: []string{"qualityIndex"}},
		{name: "negative episode", req: Request{ContentID: "42", MediaType: "show", EpisodeNumber: Int(-2)}, fields: []string{"episodeNumber"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Issue(context.Background(), tt.req)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			got := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestParseMediaKind(t *testing.T) {
	for in, want := range map[string]MediaKind{
		"movie":       KindMovie,
		"Movie":       KindMovie,
		"single-item": KindMovie,
		"show":        KindShow,
		"episodic":    KindShow,
		"tv":          KindShow,
	} {
		got, ok := ParseMediaKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMediaKind("album")
	assert.False(t, ok)

	assert.Equal(t, "s", KindShow.Code())
	assert.Equal(t, "m", KindMovie.Code())
}
