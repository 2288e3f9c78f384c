// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog models the quality renditions offered for one piece of
// content. A grant refers to a rendition by its index in Renditions.
package catalog

import "fmt"

// StandardQuality is shown when no rendition is selected.
const StandardQuality = "Standard quality"

// Rendition is one encoded file of a movie or episode.
type Rendition struct {
	Type       string `json:"type"`
	FileID     string `json:"fileID"`
	Size       string `json:"size"`
	Audio      string `json:"audio"`
	Subtitle   string `json:"subtitle,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	FileType   string `json:"file_type,omitempty"`
	Runtime    *int   `json:"runtime,omitempty"`
}

// Label renders the rendition for menus and share text.
func (r *Rendition) Label() string {
	if r == nil {
		return StandardQuality
	}
	typ, size := r.Type, r.Size
	if typ == "" {
		typ = "Unknown"
	}
	if size == "" {
		size = "Unknown"
	}
	return fmt.Sprintf("%s (%s)", typ, size)
}

// Renditions is the ordered quality list of a single item.
type Renditions []Rendition

// ByIndex returns the rendition at index i.
func (rs Renditions) ByIndex(i int) (*Rendition, bool) {
	if i < 0 || i >= len(rs) {
		return nil, false
	}
	return &rs[i], true
}

// DefaultIndex is the initial selection: the first rendition, or -1 when
// nothing can be played.
func (rs Renditions) DefaultIndex() int {
	if len(rs) == 0 {
		return -1
	}
	return 0
}

// Labels lists the menu entries in index order.
func (rs Renditions) Labels() []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].Label()
	}
	return out
}
