// Package engine aggregates the per-workspace components — tree store,
// build pipeline, dependency installer, artifact cache, and type-definition
// service — into a single lifecycle, opened once when a workspace becomes
// active and closed when it is replaced.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/panelforge/hostd/src/common/logs"
	"github.com/panelforge/hostd/src/common/paths"
	"github.com/panelforge/hostd/src/hostd/artifactcache"
	"github.com/panelforge/hostd/src/hostd/build"
	"github.com/panelforge/hostd/src/hostd/depinstall"
	"github.com/panelforge/hostd/src/hostd/storage"
	"github.com/panelforge/hostd/src/hostd/tree"
	"github.com/panelforge/hostd/src/hostd/typedefs"
)

var log *logs.Logger

// SetLogger sets the logger used by the engine package.
func SetLogger(l *logs.Logger) {
	log = l
}

// Config controls how an Engine's components are constructed. The zero
// value is usable: it yields a local filesystem cache backend rooted under
// the workspace directory and a single build worker.
type Config struct {
	// WorkspaceID names the workspace. The panel database persists to
	// panels.db under the workspace directory, not to a path derived from
	// this id.
	WorkspaceID string
	// CacheBackend is "local" (default) or "s3".
	CacheBackend string
	S3           storage.S3Config
	// BuildWorkers is the number of concurrent build worker goroutines.
	// Defaults to 1 when zero.
	BuildWorkers int
	// BuildQueueDepth bounds the pending-job channel. Defaults to 32 when zero.
	BuildQueueDepth int
	// DevCache bypasses cache reads (never writes) for local iteration.
	DevCache bool
}

// Engine is the open, running set of components backing a single
// workspace's panels. It is constructed by Open and torn down by Close.
type Engine struct {
	WorkspaceID string

	Tree          *tree.Store
	Pipeline      *build.Pipeline
	Installer     *depinstall.Installer
	Cache         *artifactcache.Cache
	Typedefs      *typedefs.Service
	BuildManager  *build.Manager

	database   *tree.Database
	storage    storage.Backend
	cancelWork context.CancelFunc
}

// Open constructs every component for workspaceDir and wires them
// together: the tree store's SQLite database, the artifact cache's storage
// backend, the dependency installer, the build pipeline, the type-
// definition service, and a running build worker pool.
//
// Opening a workspace directory that is already open elsewhere is the
// caller's responsibility to avoid — the daemon's workspace registry (see
// src/hostd/api) keeps at most one Engine per workspace id and treats a
// repeat Open as a no-op.
func Open(workspaceDir string, cfg Config) (*Engine, error) {
	workspaceDir = paths.Expand(workspaceDir)

	dbCfg := tree.DefaultConfig(cfg.WorkspaceID)
	dbCfg.PersistPath = filepath.Join(workspaceDir, "panels.db")
	database, err := tree.New(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open panel database: %w", err)
	}

	store := tree.NewStore(database.DB())

	storageCfg := storage.Config{
		Type: cfg.CacheBackend,
		Local: storage.LocalConfig{
			BasePath: filepath.Join(workspaceDir, "cache"),
		},
		S3: cfg.S3,
	}
	backend, err := storage.New(storageCfg)
	if err != nil {
		database.Shutdown()
		return nil, fmt.Errorf("open artifact cache storage: %w", err)
	}

	cache := artifactcache.New(backend, cfg.DevCache)
	installer := depinstall.New()
	pipeline := build.NewPipeline(cache, installer)

	typedefsDir := filepath.Join(workspaceDir, "typedefs")
	typedefsSvc := typedefs.New(typedefsDir)

	queueDepth := cfg.BuildQueueDepth
	if queueDepth <= 0 {
		queueDepth = 32
	}
	buildManager := build.NewManager(store, pipeline, queueDepth)

	workers := cfg.BuildWorkers
	if workers <= 0 {
		workers = 1
	}
	workCtx, cancelWork := context.WithCancel(context.Background())
	buildManager.Start(workCtx, workers)

	return &Engine{
		WorkspaceID:  cfg.WorkspaceID,
		Tree:         store,
		Pipeline:     pipeline,
		Installer:    installer,
		Cache:        cache,
		Typedefs:     typedefsSvc,
		BuildManager: buildManager,
		database:     database,
		storage:      backend,
		cancelWork:   cancelWork,
	}, nil
}

// Close tears down an Engine: it stops the build worker pool, stops the
// type-definition service's pending debounce timers, then persists and
// closes the panel database.
func (e *Engine) Close() error {
	if e.cancelWork != nil {
		e.cancelWork()
	}
	if e.Typedefs != nil {
		e.Typedefs.Close()
	}
	if e.database != nil {
		if err := e.database.Shutdown(); err != nil {
			return fmt.Errorf("shutdown panel database: %w", err)
		}
	}
	return nil
}
