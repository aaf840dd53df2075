// Package api exposes hostd's panel tree, build pipeline, type-definition
// service, and ns:// codec over an HTTP facade, grounded on the teacher's
// gin-based api package but with a per-workspace engine registry in place
// of a single shared database.
package api

import (
	"github.com/panelforge/hostd/src/common/logs"
	"github.com/panelforge/hostd/src/common/version"
	"github.com/panelforge/hostd/src/hostd/storage"
)

var log *logs.Logger
var versionInfo *version.Info

// SetLogger sets the logger used by the api package.
func SetLogger(l *logs.Logger) {
	log = l
}

// SetVersionInfo sets the version info returned by GET /v1/version.
func SetVersionInfo(v *version.Info) {
	versionInfo = v
}

// Config controls the API's workspace registry and bearer-token auth.
type Config struct {
	// WorkspaceRoot is the directory under which each workspace gets its
	// own subdirectory (panel database, artifact cache, typedefs root).
	WorkspaceRoot string
	// CacheBackend is "local" (default) or "s3", applied to every
	// workspace's artifact cache.
	CacheBackend string
	S3           storage.S3Config
	BuildWorkers int
	BuildQueueDepth int
	DevCache     bool
	// AuthToken, when non-empty, is compared against the bearer token on
	// every /v1/workspaces/... request; the root, health, version and
	// ns:// codec routes are not gated. An empty value disables auth
	// entirely (local/dev use).
	AuthToken string
}

// API holds the workspace registry and routes HTTP requests to it.
type API struct {
	cfg      Config
	registry *registry
}

// New constructs an API instance. No workspace is opened until first use.
func New(cfg Config) *API {
	return &API{
		cfg:      cfg,
		registry: newRegistry(cfg),
	}
}

// Shutdown closes every open workspace Engine.
func (a *API) Shutdown() {
	a.registry.closeAll()
}
