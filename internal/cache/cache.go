// Package cache implements a file-persisted key-value cache with TTL
// and schema-version expiry.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dealhound/dealhound/internal/common"
)

// entry is the on-disk shape of a single cached value.
type entry[V any] struct {
	Value         V      `json:"value"`
	StoredAt      int64  `json:"stored_at"`
	SchemaVersion string `json:"schema_version"`
}

// Cache is a TTL key-value cache backed by a single JSON file. Keys are
// opaque strings; normalization is the caller's responsibility. Expiry
// is lazy: stale and version-mismatched entries read as misses and are
// retained until overwritten or cleared. The whole contents are
// persisted synchronously after every mutation, so a crash loses at
// most the last unpersisted write. Single writer per file is assumed.
type Cache[V any] struct {
	now     func() time.Time
	entries map[string]entry[V]
	path    string
	version string
	ttl     time.Duration
	mu      sync.Mutex
}

// New creates a cache persisted at path and loads any prior contents.
// A missing, unreadable, or corrupted file starts an empty cache; that
// is a recoverable condition, never an error.
func New[V any](path string, ttl time.Duration, schemaVersion string) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		path:    path,
		ttl:     ttl,
		version: schemaVersion,
		now:     time.Now,
	}
	c.load()
	return c
}

func (c *Cache[V]) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Cache store unreadable, starting empty",
				"path", c.path,
				"error", fmt.Errorf("%w: %v", common.ErrCacheCorruption, err))
		}
		return
	}

	var entries map[string]entry[V]
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Cache store corrupted, starting empty",
			"path", c.path,
			"error", fmt.Errorf("%w: %v", common.ErrCacheCorruption, err))
		return
	}
	c.entries = entries
}

// Get returns the value stored for key if it is younger than the TTL
// and was written under the current schema version. Anything else is a
// miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.SchemaVersion != c.version {
		return zero, false
	}
	if c.now().Sub(time.Unix(e.StoredAt, 0)) >= c.ttl {
		return zero, false
	}
	return e.Value, true
}

// Put stores value under key, overwriting any existing entry, and
// persists the cache. A failed persist keeps the in-memory write; the
// next successful persist will include it.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		Value:         value,
		StoredAt:      c.now().Unix(),
		SchemaVersion: c.version,
	}
	c.persist()
}

// Clear removes all entries and persists the empty cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V])
	c.persist()
}

// Len returns the number of stored entries, including stale ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Path returns the location of the backing file.
func (c *Cache[V]) Path() string {
	return c.path
}

// persist writes the full contents to the backing file via a temp file
// and rename, so a crash mid-write leaves the previous contents intact.
// Callers hold mu.
func (c *Cache[V]) persist() {
	data, err := json.Marshal(c.entries)
	if err != nil {
		slog.Error("Failed to encode cache", "path", c.path, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		slog.Error("Failed to create cache directory", "path", c.path, "error", err)
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp*")
	if err != nil {
		slog.Error("Failed to persist cache", "path", c.path, "error", err)
		return
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Chmod(tmp.Name(), 0o600)
	}
	if writeErr == nil {
		writeErr = os.Rename(tmp.Name(), c.path)
	}
	if writeErr != nil {
		_ = os.Remove(tmp.Name())
		slog.Error("Failed to persist cache", "path", c.path, "error", writeErr)
	}
}
