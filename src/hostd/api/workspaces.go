package api

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/panelforge/hostd/src/hostd/engine"
)

// registry holds at most one Engine per workspace id, opening one lazily on
// first access and keeping it until the workspace is explicitly closed or
// replaced. Switching a workspace's active Engine (spec: "switching the
// active workspace closes and reopens the backing store transparently")
// closes the old Engine for that slot before opening the new one.
type registry struct {
	mu      sync.Mutex
	engines map[string]*engine.Engine
	cfg     Config
}

func newRegistry(cfg Config) *registry {
	return &registry{engines: make(map[string]*engine.Engine), cfg: cfg}
}

// open returns the Engine for workspaceID, opening it if this is the first
// request for that id. Opening an already-open workspace is a no-op that
// returns the existing Engine.
func (r *registry) open(workspaceID string) (*engine.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[workspaceID]; ok {
		return e, nil
	}

	workspaceDir := filepath.Join(r.cfg.WorkspaceRoot, workspaceID)
	e, err := engine.Open(workspaceDir, engine.Config{
		WorkspaceID:     workspaceID,
		CacheBackend:    r.cfg.CacheBackend,
		S3:              r.cfg.S3,
		BuildWorkers:    r.cfg.BuildWorkers,
		BuildQueueDepth: r.cfg.BuildQueueDepth,
		DevCache:        r.cfg.DevCache,
	})
	if err != nil {
		return nil, fmt.Errorf("open workspace %q: %w", workspaceID, err)
	}
	r.engines[workspaceID] = e
	return e, nil
}

// replace closes the current Engine for workspaceID (if any) and opens a
// fresh one in its place.
func (r *registry) replace(workspaceID string) (*engine.Engine, error) {
	r.mu.Lock()
	if e, ok := r.engines[workspaceID]; ok {
		e.Close()
		delete(r.engines, workspaceID)
	}
	r.mu.Unlock()
	return r.open(workspaceID)
}

// closeAll closes every open Engine, for use during server shutdown.
func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.engines {
		if err := e.Close(); err != nil && log != nil {
			log.Error("failed to close workspace engine", "workspace", id, "error", err)
		}
	}
	r.engines = make(map[string]*engine.Engine)
}
