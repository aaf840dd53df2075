package migrations

import "database/sql"

const panelsFTSTableSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS panels_fts USING fts5(
	identifier UNINDEXED,
	title
)`

// panelsFTSTriggers keeps panels_fts in sync with panels. Trigger name ->
// CREATE TRIGGER statement; each is only executed if a trigger with that
// name does not already exist in sqlite_master, per the migration-scoped
// idempotent-DDL rule: this guard is deliberately narrow to trigger
// creation and must not be copied to other DDL in this package.
var panelsFTSTriggers = map[string]string{
	"panels_fts_ai": `
		CREATE TRIGGER panels_fts_ai AFTER INSERT ON panels BEGIN
			INSERT INTO panels_fts(rowid, identifier, title) VALUES (new.rowid, new.identifier, new.title);
		END`,
	"panels_fts_ad": `
		CREATE TRIGGER panels_fts_ad AFTER DELETE ON panels BEGIN
			INSERT INTO panels_fts(panels_fts, rowid, identifier, title) VALUES ('delete', old.rowid, old.identifier, old.title);
		END`,
	"panels_fts_au": `
		CREATE TRIGGER panels_fts_au AFTER UPDATE OF title ON panels BEGIN
			INSERT INTO panels_fts(panels_fts, rowid, identifier, title) VALUES ('delete', old.rowid, old.identifier, old.title);
			INSERT INTO panels_fts(rowid, identifier, title) VALUES (new.rowid, new.identifier, new.title);
		END`,
}

// migration003PanelsFTS adds the full-text search virtual table for panel
// titles. This table is out of core scope functionally (spec.md §6) and
// exists only so an external collaborator can offer title search; the core
// never reads from it.
func migration003PanelsFTS() Migration {
	return Migration{
		Version:     3,
		Description: "create panels_fts virtual table and sync triggers",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(panelsFTSTableSQL); err != nil {
				return err
			}
			for name, stmt := range panelsFTSTriggers {
				var exists string
				err := tx.QueryRow(
					`SELECT name FROM sqlite_master WHERE type = 'trigger' AND name = ?`, name,
				).Scan(&exists)
				if err == nil {
					continue // already present from a prior reinit
				}
				if err != sql.ErrNoRows {
					return err
				}
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
