// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resume remembers where playback stopped so the next session can
// continue from the same position.
package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ManuGH/reelgate/internal/log"
	"github.com/google/renameio/v2"
)

// Store keeps playback positions in seconds, keyed by selection.
type Store interface {
	Position(key string) (float64, bool)
	Save(key string, seconds float64) error
}

func valid(seconds float64) bool {
	return seconds > 0 && !math.IsNaN(seconds) && !math.IsInf(seconds, 0)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu  sync.RWMutex
	pos map[string]float64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pos: make(map[string]float64)}
}

// Position returns the stored position for key.
func (m *MemoryStore) Position(key string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pos[key]
	return p, ok
}

// Save records seconds for key. Non-positive positions clear the entry.
func (m *MemoryStore) Save(key string, seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !valid(seconds) {
		delete(m.pos, key)
		return nil
	}
	m.pos[key] = seconds
	return nil
}

// FileStore persists positions as one JSON object. Every Save rewrites the
// file atomically, so a crash leaves either the old or the new content.
type FileStore struct {
	path string

	mu  sync.Mutex
	pos map[string]float64
}

// OpenFileStore reads path if it exists. A missing file starts empty.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: filepath.Clean(path), pos: make(map[string]float64)}
	data, err := os.ReadFile(fs.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("resume: read %s: %w", fs.path, err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.pos); err != nil {
		return nil, fmt.Errorf("resume: decode %s: %w", fs.path, err)
	}
	for k, v := range fs.pos {
		if !valid(v) {
			delete(fs.pos, k)
		}
	}
	return fs, nil
}

// Position returns the stored position for key.
func (f *FileStore) Position(key string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pos[key]
	return p, ok
}

// Save records seconds for key and flushes the whole table to disk.
func (f *FileStore) Save(key string, seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if valid(seconds) {
		f.pos[key] = seconds
	} else {
		delete(f.pos, key)
	}
	return f.writeLocked()
}

func (f *FileStore) writeLocked() error {
	data, err := json.MarshalIndent(f.pos, "", "  ")
	if err != nil {
		return fmt.Errorf("resume: encode positions: %w", err)
	}

	pending, err := renameio.NewPendingFile(f.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("resume: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := log.WithComponent("resume")
			logger.Debug().Err(err).Msg("cleanup pending resume file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("resume: write positions: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("resume: replace %s: %w", f.path, err)
	}
	return nil
}
