// Package cache records completed builds so a later run can skip them.
//
// # Why a Cache Exists
//
// A component's build output is fully identified by its cache key, a hash of
// its name, version and source checksum. Once a build with a given key has
// succeeded there is no reason to fetch, extract or build it again.
//
// # Write Semantics
//
// Entries are written only after a build succeeded; nothing is written for
// failed, skipped or cancelled components. Put is idempotent: the first
// write for a key wins and every later write for the same key is a no-op
// that returns nil. All implementations must be safe for concurrent use.
//
// # Backends
//
//   - Memory: process-local map, used by tests and one-shot runs.
//   - FileStore: one HCL record per key in a directory.
//   - ObjectStore: one JSON object per key in an S3-compatible bucket.
//   - PostgresStore: one row per key in a PostgreSQL table.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Entry is the persisted record of a successful build.
type Entry struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Checksum string    `json:"checksum"`
	BuiltAt  time.Time `json:"built_at"`
	RunID    string    `json:"run_id"`
}

// Store is the get/put interface every cache backend implements.
type Store interface {
	// Get returns the entry for key. ok is false on a miss.
	Get(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	// Put records entry under entry.Key unless the key is already present.
	Put(ctx context.Context, entry Entry) error
}

// ErrEmptyKey is returned by Put when the entry has no key.
var ErrEmptyKey = errors.New("cache entry key is required")

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (m *Memory) Put(_ context.Context, entry Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[entry.Key]; exists {
		return nil
	}
	m.entries[entry.Key] = entry
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
