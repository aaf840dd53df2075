// Package tree implements the panel tree store: a durable, workspace-scoped
// tree of panels with history, position ordering, soft-delete, and
// selected-path propagation. It owns an in-memory SQLite database that is
// persisted to disk on shutdown or on demand.
package tree

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/panelforge/hostd/src/common/logs"
	"github.com/panelforge/hostd/src/common/paths"
	"github.com/panelforge/hostd/src/hostd/tree/migrations"
	_ "github.com/mattn/go-sqlite3"
)

var log *logs.Logger

// SetLogger sets the logger used by the tree package.
func SetLogger(l *logs.Logger) {
	log = l
	migrations.SetLogger(l)
}

// invalidDBNameChars matches path separators, dots, control characters and
// every other character outside [a-zA-Z0-9_-] in a workspace-derived
// database filename, per the shared-resource sanitisation policy.
var invalidDBNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeDBName replaces each character unsafe for use in a filename
// with an underscore in a workspace identifier.
func SanitizeDBName(workspaceID string) string {
	return invalidDBNameChars.ReplaceAllString(workspaceID, "_")
}

// Database wraps the SQLite connection backing a single workspace's panel
// tree, with persistence to disk on shutdown.
type Database struct {
	db           *sql.DB
	persistPath  string
	mu           sync.RWMutex
	shutdownOnce sync.Once
}

// Config holds database configuration for a single workspace.
type Config struct {
	// PersistPath is the file path where the database is saved on shutdown.
	PersistPath string
	// LoadOnStart determines whether to load existing data from disk on open.
	LoadOnStart bool
}

// DefaultConfig returns a default configuration rooted under the user's
// config directory.
func DefaultConfig(workspaceID string) Config {
	name := SanitizeDBName(workspaceID)
	return Config{
		PersistPath: fmt.Sprintf("~/.hostd/workspaces/%s.db", name),
		LoadOnStart: true,
	}
}

// New opens an in-memory database for a workspace, running all pending
// migrations, and loading any existing data from disk.
//
// The panel database is opened at most once per workspace; switching
// workspaces means closing one Database and opening another.
func New(cfg Config) (*Database, error) {
	persistPath := paths.Expand(cfg.PersistPath)

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Shared in-memory SQLite needs at least one connection held open or
	// the database is destroyed when the pool goes idle.
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	database := &Database{
		db:          db,
		persistPath: persistPath,
	}

	runner := migrations.NewRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.LoadOnStart && persistPath != "" {
		if _, err := os.Stat(persistPath); err == nil {
			if err := database.LoadFromDisk(); err != nil {
				if log != nil {
					log.Warn("failed to load workspace database from disk", "path", persistPath, "error", err)
				}
			}
		}
	}

	return database, nil
}

// DB returns the underlying *sql.DB for direct queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Shutdown persists the database to disk and closes the connection.
func (d *Database) Shutdown() error {
	var shutdownErr error

	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.persistPath != "" {
			if err := d.persistToDisk(); err != nil {
				shutdownErr = fmt.Errorf("failed to persist database: %w", err)
			}
		}

		if err := d.db.Close(); err != nil {
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%v; also failed to close database: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("failed to close database: %w", err)
			}
		}
	})

	return shutdownErr
}

// persistToDisk saves the in-memory database to the configured file path
// using VACUUM INTO plus an atomic rename.
func (d *Database) persistToDisk() error {
	if d.persistPath == "" {
		return nil
	}

	dir := filepath.Dir(d.persistPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := d.persistPath + ".tmp"
	os.Remove(tempPath)

	query := fmt.Sprintf("VACUUM INTO '%s'", tempPath)
	if _, err := d.db.Exec(query); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to vacuum database to disk: %w", err)
	}

	if err := os.Rename(tempPath, d.persistPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename database file: %w", err)
	}

	return nil
}

// SaveToDisk manually triggers a save to disk (for periodic backups).
func (d *Database) SaveToDisk() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persistToDisk()
}

func (d *Database) tableExistsInDiskDB(tableName string) bool {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM disk_db.sqlite_master
		WHERE type='table' AND name=?
	`, tableName).Scan(&count)
	return err == nil && count > 0
}

// LoadFromDisk attaches the on-disk database and copies its panels,
// panel_events, and schema_version rows into the in-memory database,
// replacing the seeded defaults.
func (d *Database) LoadFromDisk() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.persistPath == "" {
		return nil
	}

	diskDB, err := sql.Open("sqlite3", d.persistPath)
	if err != nil {
		return fmt.Errorf("failed to open disk database: %w", err)
	}
	defer diskDB.Close()

	if err := diskDB.Ping(); err != nil {
		return fmt.Errorf("disk database ping failed: %w", err)
	}

	attachQuery := fmt.Sprintf("ATTACH DATABASE '%s' AS disk_db", d.persistPath)
	if _, err := d.db.Exec(attachQuery); err != nil {
		return fmt.Errorf("failed to attach disk database: %w", err)
	}
	defer d.db.Exec("DETACH DATABASE disk_db")

	var loaded []string
	var loadErrors []string

	if d.tableExistsInDiskDB("panels") {
		if _, err := d.db.Exec(`DELETE FROM panels`); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("panels delete: %v", err))
		}
		result, err := d.db.Exec(`
			INSERT INTO panels SELECT * FROM disk_db.panels
		`)
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("panels: %v", err))
		} else if rows, _ := result.RowsAffected(); rows > 0 {
			loaded = append(loaded, fmt.Sprintf("panels(%d)", rows))
		}
	}

	if d.tableExistsInDiskDB("panel_events") {
		result, err := d.db.Exec(`
			INSERT OR REPLACE INTO panel_events SELECT * FROM disk_db.panel_events
		`)
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("panel_events: %v", err))
		} else if rows, _ := result.RowsAffected(); rows > 0 {
			loaded = append(loaded, fmt.Sprintf("panel_events(%d)", rows))
		}
	}

	if d.tableExistsInDiskDB("schema_version") {
		if _, err := d.db.Exec(`
			INSERT OR REPLACE INTO schema_version SELECT * FROM disk_db.schema_version
		`); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("schema_version: %v", err))
		}
	}

	if log != nil {
		if len(loaded) > 0 {
			log.Info("loaded workspace database from disk", "tables", loaded)
		}
		for _, e := range loadErrors {
			log.Warn("failed to load table from disk", "error", e)
		}
	}

	return nil
}
