// Package artifactcache is a process-shared, content-addressed key→blob
// store backing the build pipeline and dependency installer. Keys are
// opaque strings (panel:<abs>:<commit>, worker:<abs>:<commit>,
// deps:<abs>:<commit>); values are arbitrary strings. Entries have no TTL
// and this package performs no eviction — eviction is the owner's concern.
package artifactcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/panelforge/hostd/src/common/logs"
	"github.com/panelforge/hostd/src/hostd/storage"
)

var log *logs.Logger

// SetLogger sets the logger used by the artifactcache package.
func SetLogger(l *logs.Logger) {
	log = l
}

// Cache is a key→blob store. A single in-process mutex serialises writes
// to a given key; the core does not require mutual exclusion across
// processes sharing the same storage backend.
type Cache struct {
	storage storage.Backend
	devMode bool
	mu      sync.Mutex
}

// New returns a Cache backed by storage. When devMode is true, Get always
// reports a miss without touching storage — a development bypass flag,
// never affecting Set.
func New(backend storage.Backend, devMode bool) *Cache {
	return &Cache{storage: backend, devMode: devMode}
}

// Get returns the value stored under key, or ok=false if absent (or if
// devMode bypasses reads).
func (c *Cache) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	if c.devMode {
		return "", false, nil
	}

	path := blobPath(key)
	exists, err := c.storage.Exists(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed for %q: %w", key, err)
	}
	if !exists {
		return "", false, nil
	}

	rc, _, err := c.storage.Download(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("cache read failed for %q: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", false, fmt.Errorf("cache read failed for %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set stores value under key. Writes always succeed or return an error;
// there is no implicit eviction.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := blobPath(key)
	reader := bytes.NewReader([]byte(value))
	if err := c.storage.Upload(ctx, path, reader, int64(len(value)), "application/json"); err != nil {
		return fmt.Errorf("cache write failed for %q: %w", key, err)
	}
	return nil
}

// blobPath maps an opaque cache key to a flat storage path. Keys may
// contain arbitrary filesystem paths and colons, so the key is hashed
// rather than used as a path directly.
func blobPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "cache/kv/" + hex.EncodeToString(sum[:])
}
