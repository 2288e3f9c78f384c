// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package download builds the direct and Telegram download links offered
// next to the player.
package download

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/reelgate/internal/catalog"
	"github.com/ManuGH/reelgate/internal/grant"
	"github.com/ManuGH/reelgate/internal/log"
	"github.com/ManuGH/reelgate/internal/metrics"
)

const telegramBase = "https://t.me/"

// Request describes the item the user wants to download.
type Request struct {
	StreamURL     string
	Title         string
	Quality       string
	ContentID     string
	MediaType     string
	QualityIndex  int
	SeasonNumber  *int
	EpisodeNumber *int
	// Rendition labels the quality when Quality is empty.
	Rendition *catalog.Rendition
}

// Links is the pair returned to the client.
type Links struct {
	DirectLink   string `json:"directLink"`
	TelegramLink string `json:"telegramLink"`
}

// Builder produces Links. A nil shortener leaves direct links untouched.
type Builder struct {
	shortener Shortener
	bot       string
}

// NewBuilder returns a builder for the given Telegram bot name.
func NewBuilder(shortener Shortener, bot string) *Builder {
	return &Builder{shortener: shortener, bot: strings.TrimPrefix(bot, "@")}
}

// Build returns the links for req. It fails only on missing input; a
// failing shortener silently yields the raw stream URL.
func (b *Builder) Build(ctx context.Context, req Request) (Links, error) {
	var missing []grant.FieldError
	if strings.TrimSpace(req.StreamURL) == "" {
		missing = append(missing, grant.FieldError{Field: "streamUrl", Message: "is required"})
	}
	if strings.TrimSpace(req.ContentID) == "" {
		missing = append(missing, grant.FieldError{Field: "contentId", Message: "is required"})
	}
	if len(missing) > 0 {
		return Links{}, &grant.ValidationError{Fields: missing}
	}

	links := Links{
		DirectLink:   req.StreamURL,
		TelegramLink: b.TelegramLink(req),
	}

	shortened := false
	if b.shortener != nil {
		short, err := b.shortener.Shorten(ctx, req.StreamURL)
		if err != nil {
			logger := log.WithComponentFromContext(ctx, "download")
			logger.Warn().Err(err).Msg("url shortener failed, using direct link")
		} else {
			links.DirectLink = short
			shortened = true
		}
	}
	metrics.IncDownloadLinks(shortened)
	return links, nil
}

// TelegramLink builds the bot deep link:
// https://t.me/{bot}?start=file_{id}_{s|m}_{quality}_{season}_{episode}&text={title quality}.
func (b *Builder) TelegramLink(req Request) string {
	code := "m"
	if kind, ok := grant.ParseMediaKind(req.MediaType); ok {
		code = kind.Code()
	}
	quality := req.Quality
	if quality == "" {
		quality = req.Rendition.Label()
	}
	start := fmt.Sprintf("file_%s_%s_%d_%d_%d",
		req.ContentID, code, req.QualityIndex, orZero(req.SeasonNumber), orZero(req.EpisodeNumber))
	return telegramBase + b.bot + "?start=" + start + "&text=" + encodeComponent(req.Title+" "+quality)
}

func orZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// encodeComponent escapes s for use inside a query value, encoding spaces
// as %20 so chat clients render them literally.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
