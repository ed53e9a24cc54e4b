// Package cachestore persists pack cache entries on the host, keyed per
// game so packs never observe each other's data.
package cachestore

import (
	"context"
	"sync"
)

// Usage reports total consumption for one game's cache.
type Usage struct {
	SizeBytes int64 `json:"sizeBytes"`
	FileCount int   `json:"fileCount"`
}

// Store defines how pack cache entries are persisted. Implementations may
// keep them in memory or in an external service such as Redis.
type Store interface {
	Read(ctx context.Context, gameID, key string) ([]byte, bool, error)
	Write(ctx context.Context, gameID, key string, data []byte) error
	Exists(ctx context.Context, gameID, key string) (bool, error)
	Usage(ctx context.Context, gameID string) (Usage, error)
	Clear(ctx context.Context, gameID string) error
}

// memoryStore is the default in-process Store.
type memoryStore struct {
	mu    sync.RWMutex
	games map[string]map[string][]byte
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{games: make(map[string]map[string][]byte)}
}

func (m *memoryStore) Read(_ context.Context, gameID, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.games[gameID][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *memoryStore) Write(_ context.Context, gameID, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.games[gameID]
	if g == nil {
		g = make(map[string][]byte)
		m.games[gameID] = g
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	g[key] = cp
	return nil
}

func (m *memoryStore) Exists(_ context.Context, gameID, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.games[gameID][key]
	return ok, nil
}

func (m *memoryStore) Usage(_ context.Context, gameID string) (Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var u Usage
	for _, data := range m.games[gameID] {
		u.FileCount++
		u.SizeBytes += int64(len(data))
	}
	return u, nil
}

func (m *memoryStore) Clear(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
	return nil
}
