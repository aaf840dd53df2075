package migrations

import "database/sql"

const panelEventsTableSQL = `
CREATE TABLE IF NOT EXISTS panel_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	panel_id     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	context      TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	workspace_id TEXT NOT NULL
)`

const panelEventsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_panel_events_panel ON panel_events(panel_id);
CREATE INDEX IF NOT EXISTS idx_panel_events_workspace_created ON panel_events(workspace_id, created_at DESC);
`

// migration002PanelEvents adds the append-only event log. Events are not
// part of the tree's invariants and are safe to lose on crash, so this
// table carries no foreign key enforcement against panels.
func migration002PanelEvents() Migration {
	return Migration{
		Version:     2,
		Description: "create panel_events table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(panelEventsTableSQL); err != nil {
				return err
			}
			_, err := tx.Exec(panelEventsIndexesSQL)
			return err
		},
	}
}
