package migrations

import "database/sql"

// panelsTableSQL creates the core panels table at the v3 schema shape
// described in the design notes: history is persisted as a JSON array with
// history_index pointing at the active entry; runtime-only fields
// (build state, progress, errors) have no columns of their own, and the
// opaque runtime_state column is always written as '{}' by the store.
const panelsTableSQL = `
CREATE TABLE IF NOT EXISTS panels (
	identifier         TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	workspace_id       TEXT NOT NULL,
	parent_id          TEXT REFERENCES panels(identifier) ON DELETE CASCADE,
	position           INTEGER NOT NULL DEFAULT 0,
	selected_child_id  TEXT,
	collapsed          INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	archived_at        INTEGER,
	history            TEXT NOT NULL,
	history_index      INTEGER NOT NULL DEFAULT 0,
	runtime_state      TEXT NOT NULL DEFAULT '{}'
)`

const panelsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_panels_workspace ON panels(workspace_id);
CREATE INDEX IF NOT EXISTS idx_panels_parent ON panels(parent_id);
CREATE INDEX IF NOT EXISTS idx_panels_workspace_parent_position ON panels(workspace_id, parent_id, position);
CREATE INDEX IF NOT EXISTS idx_panels_archived ON panels(archived_at);
`

const schemaVersionTableSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
)`

// migration001PanelsSchema creates the panels table and seeds the
// single-row schema_version table at version 3 (tree.PanelSchemaVersion);
// no code reads that row back to compare it. It is independent of
// schema_migrations, which tracks this package's own migration
// bookkeeping.
func migration001PanelsSchema() Migration {
	return Migration{
		Version:     1,
		Description: "create panels table and schema_version row",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(panelsTableSQL); err != nil {
				return err
			}
			if _, err := tx.Exec(panelsIndexesSQL); err != nil {
				return err
			}
			if _, err := tx.Exec(schemaVersionTableSQL); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_version (id, version) VALUES (1, 3)
				ON CONFLICT(id) DO NOTHING`)
			return err
		},
	}
}
