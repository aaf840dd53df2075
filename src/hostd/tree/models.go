package tree

import "encoding/json"

// MaxAncestorDepth bounds the recursive ancestor walk and the selected-path
// propagation walk; both detect cycles explicitly rather than relying on
// this cap alone, but the cap is the backstop.
const MaxAncestorDepth = 100

// PanelSchemaVersion is the schema version of record for this package's
// own `schema_version` row, independent of the schema_migrations
// bookkeeping table. See Design Notes: the source's version constant is
// taken as authoritative and migrations are written explicitly against it.
const PanelSchemaVersion = 3

// EventCreated is logged when a panel is created.
const EventCreated = "created"

// EventFocused is logged when a panel becomes the focus of a selected path.
const EventFocused = "focused"

// Snapshot is an immutable record of a panel's logical source, type, and
// option bag. The core treats Options as opaque JSON and never interprets
// or migrates it.
type Snapshot struct {
	Source  string          `json:"source"`
	Type    string          `json:"type"`
	Options json.RawMessage `json:"options,omitempty"`
}

// RuntimeState holds build state, progress, and error information for a
// panel. It is never persisted: it resets to zero value on process
// restart and is authoritative only in memory.
type RuntimeState struct {
	BuildState    string `json:"buildState,omitempty"`
	BuildProgress int    `json:"buildProgress,omitempty"`
	BuildError    string `json:"buildError,omitempty"`
}

// Panel is a persistent node in the tree.
type Panel struct {
	ID              string
	Title           string
	WorkspaceID     string
	ParentID        *string
	Position        int
	SelectedChildID *string
	Collapsed       bool
	CreatedAt       int64 // milliseconds since epoch
	UpdatedAt       int64
	ArchivedAt      *int64
	History         []Snapshot
	HistoryIndex    int

	// Runtime is populated from the in-memory side table; it is never read
	// from or written to the panels table.
	Runtime RuntimeState
}

// IsArchived reports whether the panel has been soft-deleted.
func (p *Panel) IsArchived() bool {
	return p.ArchivedAt != nil
}

// CurrentSnapshot returns the Snapshot the history index currently points
// at. Callers must not invoke this on a Panel whose invariants have not
// been repaired (scanPanel repairs history and index on every read).
func (p *Panel) CurrentSnapshot() Snapshot {
	return p.History[p.HistoryIndex]
}

// PanelSummary is the projection used by breadcrumb/sibling/child listings.
type PanelSummary struct {
	ID         string
	Type       string
	Title      string
	ChildCount int
	Position   int
	BuildState string // optional; empty when no runtime state is tracked
}

// Event is an append-only log row.
type Event struct {
	ID          int64
	PanelID     string
	EventType   string
	Context     json.RawMessage
	CreatedAt   int64
	WorkspaceID string
}

// UpdatePanelInput is a fold target for partial panel updates: only
// non-nil fields are applied, and they are mapped onto a fixed column
// allow-list (see updatableColumns in store.go) rather than built from
// caller-supplied column names.
type UpdatePanelInput struct {
	Title     *string
	Collapsed *bool
}

// PageResult wraps a paginated query result.
type PageResult struct {
	Items   []PanelSummary
	Total   int
	HasMore bool
}
