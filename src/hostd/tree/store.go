package tree

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	hosterrors "github.com/panelforge/hostd/src/common/errors"
)

// updatableColumns is the fixed allow-list that Update folds
// UpdatePanelInput into. Any expansion of updatable fields must extend
// this list; dynamic column lists are never built from caller input.
var updatableColumns = map[string]bool{
	"title":     true,
	"collapsed": true,
}

// TreeNode is one node of the full-forest enumeration returned by Tree:
// a panel summary plus its live children, recursively.
type TreeNode struct {
	PanelSummary
	Children []*TreeNode
}

// Store implements the panel tree contract described in the component
// design: create, read, update, history replace, move, selected-path
// propagation, collapse, archive, the full-tree read, and the event
// log — all scoped to a single workspace database.
type Store struct {
	db *sql.DB

	runtimeMu sync.RWMutex
	runtime   map[string]RuntimeState
}

// NewStore wraps an open *sql.DB (typically Database.DB()) with the panel
// tree operations.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		runtime: make(map[string]RuntimeState),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Create inserts a new panel as a prepend (position 0) among its siblings,
// shifting existing siblings by +1, and seeds history with exactly the
// supplied Snapshot at index 0. If id is empty a new identifier is
// generated.
func (s *Store) Create(workspaceID, id string, parentID *string, title string, snap Snapshot) (*Panel, error) {
	if id == "" {
		id = uuid.NewString()
	}

	if parentID != nil {
		exists, err := s.Exists(*parentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, hosterrors.ErrInvalidParent.WithMessagef("parent %q does not exist", *parentID)
		}
	}

	historyJSON, err := json.Marshal([]Snapshot{snap})
	if err != nil {
		return nil, fmt.Errorf("marshal initial history: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := shiftSiblingPositions(tx, workspaceID, parentID, 0, 1); err != nil {
		return nil, err
	}

	now := nowMillis()
	_, err = tx.Exec(`
		INSERT INTO panels (identifier, title, workspace_id, parent_id, position,
			selected_child_id, collapsed, created_at, updated_at, archived_at,
			history, history_index, runtime_state)
		VALUES (?, ?, ?, ?, 0, NULL, 0, ?, ?, NULL, ?, 0, '{}')
	`, id, title, workspaceID, nullableString(parentID), now, now, string(historyJSON))
	if err != nil {
		return nil, fmt.Errorf("insert panel: %w", err)
	}

	if err := appendEventTx(tx, workspaceID, id, EventCreated, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.Get(id)
}

// shiftSiblingPositions adds delta to the position of every live sibling
// at or after fromPosition under (workspaceID, parentID).
func shiftSiblingPositions(tx *sql.Tx, workspaceID string, parentID *string, fromPosition, delta int) error {
	query := `
		UPDATE panels SET position = position + ?
		WHERE workspace_id = ? AND parent_id IS ? AND archived_at IS NULL AND position >= ?
	`
	_, err := tx.Exec(query, delta, workspaceID, nullableString(parentID), fromPosition)
	return err
}

// Get fetches a single panel by identifier. Archived panels remain
// fetchable by identifier so stored references never dangle.
func (s *Store) Get(id string) (*Panel, error) {
	row := s.db.QueryRow(`
		SELECT identifier, title, workspace_id, parent_id, position, selected_child_id,
			collapsed, created_at, updated_at, archived_at, history, history_index
		FROM panels WHERE identifier = ?
	`, id)
	p, err := scanPanel(row)
	if err == sql.ErrNoRows {
		return nil, hosterrors.ErrPanelNotFound.WithMessagef("panel %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.attachRuntime(p)
	return p, nil
}

// Exists reports whether a panel identifier is known to the store
// (archived or not).
func (s *Store) Exists(id string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM panels WHERE identifier = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of non-archived panels in a workspace.
func (s *Store) Count(workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM panels WHERE workspace_id = ? AND archived_at IS NULL
	`, workspaceID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPanel(row rowScanner) (*Panel, error) {
	var (
		p                            Panel
		parentID, selectedChildID    sql.NullString
		archivedAt                   sql.NullInt64
		historyJSON                  string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.WorkspaceID, &parentID, &p.Position,
		&selectedChildID, &p.Collapsed, &p.CreatedAt, &p.UpdatedAt, &archivedAt,
		&historyJSON, &p.HistoryIndex); err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.String
		p.ParentID = &v
	}
	if selectedChildID.Valid {
		v := selectedChildID.String
		p.SelectedChildID = &v
	}
	if archivedAt.Valid {
		v := archivedAt.Int64
		p.ArchivedAt = &v
	}

	if err := json.Unmarshal([]byte(historyJSON), &p.History); err != nil || len(p.History) == 0 {
		// Corrupted history is repaired, not fatal: a synthetic single
		// snapshot keeps the "history length >= 1" invariant intact.
		p.History = []Snapshot{{Source: "", Type: "unknown"}}
		if log != nil {
			log.Warn("repaired corrupted panel history", "panel_id", p.ID)
		}
	}
	if p.HistoryIndex < 0 || p.HistoryIndex >= len(p.History) {
		if log != nil {
			log.Warn("repaired out-of-range history index", "panel_id", p.ID, "index", p.HistoryIndex, "length", len(p.History))
		}
		p.HistoryIndex = 0
	}

	return &p, nil
}

func (s *Store) attachRuntime(p *Panel) {
	s.runtimeMu.RLock()
	defer s.runtimeMu.RUnlock()
	if rs, ok := s.runtime[p.ID]; ok {
		p.Runtime = rs
	}
}

// SetRuntimeState assigns in-memory-only build state for a panel. This is
// never persisted; it resets to the zero value on process restart.
func (s *Store) SetRuntimeState(id string, rs RuntimeState) {
	s.runtimeMu.Lock()
	defer s.runtimeMu.Unlock()
	s.runtime[id] = rs
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// childCount returns the number of live children of a panel.
func (s *Store) childCount(tx queryer, panelID string) (int, error) {
	var count int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM panels WHERE parent_id = ? AND archived_at IS NULL
	`, panelID).Scan(&count)
	return count, err
}

type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) summaryFromPanel(tx queryer, p *Panel) (PanelSummary, error) {
	count, err := s.childCount(tx, p.ID)
	if err != nil {
		return PanelSummary{}, err
	}
	cur := p.CurrentSnapshot()
	return PanelSummary{
		ID:         p.ID,
		Type:       cur.Type,
		Title:      p.Title,
		ChildCount: count,
		Position:   p.Position,
		BuildState: p.Runtime.BuildState,
	}, nil
}

// Roots returns the live root panels of a workspace, ordered by position.
func (s *Store) Roots(workspaceID string) ([]PanelSummary, error) {
	return s.listSummaries(`
		SELECT identifier, title, workspace_id, parent_id, position, selected_child_id,
			collapsed, created_at, updated_at, archived_at, history, history_index
		FROM panels WHERE workspace_id = ? AND parent_id IS NULL AND archived_at IS NULL
		ORDER BY position ASC
	`, workspaceID)
}

// Children returns the live children of a panel, ordered by position.
func (s *Store) Children(parentID string) ([]PanelSummary, error) {
	return s.listSummaries(`
		SELECT identifier, title, workspace_id, parent_id, position, selected_child_id,
			collapsed, created_at, updated_at, archived_at, history, history_index
		FROM panels WHERE parent_id = ? AND archived_at IS NULL
		ORDER BY position ASC
	`, parentID)
}

// Siblings returns the live siblings of a panel (including itself),
// ordered by position.
func (s *Store) Siblings(id string) ([]PanelSummary, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if p.ParentID == nil {
		return s.Roots(p.WorkspaceID)
	}
	return s.Children(*p.ParentID)
}

// Tree returns the full forest of live panels in a workspace: every root
// with its descendants nested beneath it, ordered by position at each
// level. Archived panels are excluded at every level, the same as
// Roots/Children, so the archive invariant (archived panels vanish from
// every tree read) holds for the whole-tree read as well as the
// individual ones.
func (s *Store) Tree(workspaceID string) ([]*TreeNode, error) {
	rows, err := s.db.Query(`
		SELECT identifier, title, workspace_id, parent_id, position, selected_child_id,
			collapsed, created_at, updated_at, archived_at, history, history_index
		FROM panels WHERE workspace_id = ? AND archived_at IS NULL
		ORDER BY position ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make(map[string]*TreeNode)
	parentOf := make(map[string]*string)
	var order []string
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		s.attachRuntime(p)
		summary, err := s.summaryFromPanel(s.db, p)
		if err != nil {
			return nil, err
		}
		nodes[p.ID] = &TreeNode{PanelSummary: summary}
		parentOf[p.ID] = p.ParentID
		order = append(order, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var roots []*TreeNode
	for _, id := range order {
		node := nodes[id]
		parentID := parentOf[id]
		if parentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*parentID]
		if !ok {
			// Parent archived or otherwise excluded from this read: treat
			// the node as a root rather than dropping it silently.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots, nil
}

func (s *Store) listSummaries(query string, arg string) ([]PanelSummary, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PanelSummary
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		s.attachRuntime(p)
		summary, err := s.summaryFromPanel(s.db, p)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// RootsPaginated returns a page of root panels with a total count and a
// has-more flag.
func (s *Store) RootsPaginated(workspaceID string, limit, offset int) (PageResult, error) {
	return s.paginated(workspaceID, nil, limit, offset)
}

// ChildrenPaginated returns a page of a panel's children with a total
// count and a has-more flag.
func (s *Store) ChildrenPaginated(parentID string, limit, offset int) (PageResult, error) {
	p, err := s.Get(parentID)
	if err != nil {
		return PageResult{}, err
	}
	return s.paginated(p.WorkspaceID, &parentID, limit, offset)
}

func (s *Store) paginated(workspaceID string, parentID *string, limit, offset int) (PageResult, error) {
	var total int
	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM panels WHERE workspace_id = ? AND parent_id IS ? AND archived_at IS NULL
	`, workspaceID, nullableString(parentID)).Scan(&total); err != nil {
		return PageResult{}, err
	}

	rows, err := s.db.Query(`
		SELECT identifier, title, workspace_id, parent_id, position, selected_child_id,
			collapsed, created_at, updated_at, archived_at, history, history_index
		FROM panels WHERE workspace_id = ? AND parent_id IS ? AND archived_at IS NULL
		ORDER BY position ASC LIMIT ? OFFSET ?
	`, workspaceID, nullableString(parentID), limit, offset)
	if err != nil {
		return PageResult{}, err
	}
	defer rows.Close()

	var items []PanelSummary
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return PageResult{}, err
		}
		s.attachRuntime(p)
		summary, err := s.summaryFromPanel(s.db, p)
		if err != nil {
			return PageResult{}, err
		}
		items = append(items, summary)
	}
	if err := rows.Err(); err != nil {
		return PageResult{}, err
	}

	return PageResult{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// Ancestors walks parent pointers from id up to the root, bounded at
// MaxAncestorDepth, returning the chain closest-first. Returns
// ErrCycleDetected if a panel is revisited before reaching a root.
func (s *Store) Ancestors(id string) ([]*Panel, error) {
	var chain []*Panel
	visited := make(map[string]bool)

	current := id
	for depth := 0; depth <= MaxAncestorDepth; depth++ {
		p, err := s.Get(current)
		if err != nil {
			return nil, err
		}
		if p.ParentID == nil {
			return chain, nil
		}
		if visited[*p.ParentID] {
			if log != nil {
				log.Error("cycle detected walking ancestors", "panel_id", id, "at", *p.ParentID)
			}
			return nil, hosterrors.ErrCycleDetected
		}
		visited[current] = true
		parent, err := s.Get(*p.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
		current = *p.ParentID
	}
	if log != nil {
		log.Error("ancestor walk exceeded max depth", "panel_id", id, "max_depth", MaxAncestorDepth)
	}
	return nil, hosterrors.ErrCycleDetected.WithMessage("ancestor walk exceeded maximum depth")
}

// Update folds a partial UpdatePanelInput into the fixed updatableColumns
// allow-list and writes the result with parameter binding. Each field is
// checked against the allow-list before it is folded in, so a future
// UpdatePanelInput field cannot reach the database without also being
// added to updatableColumns.
func (s *Store) Update(id string, input UpdatePanelInput) error {
	var sets []string
	var args []interface{}

	if input.Title != nil && updatableColumns["title"] {
		sets = append(sets, "title = ?")
		args = append(args, *input.Title)
	}
	if input.Collapsed != nil && updatableColumns["collapsed"] {
		sets = append(sets, "collapsed = ?")
		args = append(args, *input.Collapsed)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nowMillis())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE panels SET %s WHERE identifier = ?", joinSets(sets))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res, id)
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func rowsAffectedOrNotFound(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return hosterrors.ErrPanelNotFound.WithMessagef("panel %q not found", id)
	}
	return nil
}

// SetTitle is a convenience wrapper over Update for the single-field case.
func (s *Store) SetTitle(id, title string) error {
	return s.Update(id, UpdatePanelInput{Title: &title})
}

// ReplaceHistory overwrites a panel's navigation history and index. The
// new history must be non-empty; index is clamped into range.
func (s *Store) ReplaceHistory(id string, history []Snapshot, index int) error {
	if len(history) == 0 {
		return hosterrors.ErrValidationFailed.WithMessage("history must be non-empty")
	}
	if index < 0 || index >= len(history) {
		index = 0
	}
	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE panels SET history = ?, history_index = ?, updated_at = ? WHERE identifier = ?
	`, string(data), index, nowMillis(), id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res, id)
}

// SetCollapsed sets the collapsed flag for a single panel.
func (s *Store) SetCollapsed(id string, collapsed bool) error {
	return s.Update(id, UpdatePanelInput{Collapsed: &collapsed})
}

// SetCollapsedBatch applies the same collapsed flag to a set of panels.
func (s *Store) SetCollapsedBatch(ids []string, collapsed bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := nowMillis()
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE panels SET collapsed = ?, updated_at = ? WHERE identifier = ?`, collapsed, now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CollapsedIDs returns the identifiers of all live collapsed panels in a
// workspace; archived panels are excluded.
func (s *Store) CollapsedIDs(workspaceID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT identifier FROM panels
		WHERE workspace_id = ? AND collapsed = 1 AND archived_at IS NULL
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetSelectedChild sets a panel's selected-child pointer. The child, when
// non-nil, must be a live (non-archived) child of the panel.
func (s *Store) SetSelectedChild(id string, childID *string) error {
	if childID != nil {
		var parentOK int
		err := s.db.QueryRow(`
			SELECT COUNT(*) FROM panels WHERE identifier = ? AND parent_id = ? AND archived_at IS NULL
		`, *childID, id).Scan(&parentOK)
		if err != nil {
			return err
		}
		if parentOK == 0 {
			return hosterrors.ErrSelectedChildNotLive
		}
	}
	res, err := s.db.Exec(`
		UPDATE panels SET selected_child_id = ?, updated_at = ? WHERE identifier = ?
	`, nullableString(childID), nowMillis(), id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res, id)
}

// UpdateSelectedPath walks parent pointers upward from a focused panel and
// sets each ancestor's selected-child to the child on the path. The walk
// is guarded by a visited set and MaxAncestorDepth; on cycle or overflow
// it logs and aborts without writing anything.
func (s *Store) UpdateSelectedPath(focusedID string) error {
	type edge struct {
		parent string
		child  string
	}
	var edges []edge
	visited := map[string]bool{focusedID: true}
	var workspaceID string

	child := focusedID
	for depth := 0; depth <= MaxAncestorDepth; depth++ {
		p, err := s.Get(child)
		if err != nil {
			return err
		}
		if workspaceID == "" {
			workspaceID = p.WorkspaceID
		}
		if p.ParentID == nil {
			break
		}
		if visited[*p.ParentID] {
			if log != nil {
				log.Error("cycle detected during selected-path propagation", "focused_id", focusedID)
			}
			return hosterrors.ErrCycleDetected
		}
		edges = append(edges, edge{parent: *p.ParentID, child: child})
		visited[*p.ParentID] = true
		child = *p.ParentID
		if depth == MaxAncestorDepth {
			if log != nil {
				log.Error("selected-path propagation exceeded max depth", "focused_id", focusedID)
			}
			return hosterrors.ErrCycleDetected.WithMessage("selected-path walk exceeded maximum depth")
		}
	}

	if len(edges) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowMillis()
	for _, e := range edges {
		if _, err := tx.Exec(`
			UPDATE panels SET selected_child_id = ?, updated_at = ? WHERE identifier = ?
		`, e.child, now, e.parent); err != nil {
			return err
		}
	}
	if err := appendEventTx(tx, workspaceID, focusedID, EventFocused, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Move relocates a panel to a new parent (or the same parent) and target
// position, then normalises sibling positions. position already excludes
// the dragged item; moves that cross parents normalise both the old and
// new parent, same-parent moves normalise only the (single) parent.
func (s *Store) Move(id string, newParentID *string, position int) error {
	panel, err := s.Get(id)
	if err != nil {
		return err
	}

	if newParentID != nil {
		if *newParentID == id {
			return hosterrors.ErrInvalidParent.WithMessage("panel cannot be its own parent")
		}
		if err := s.checkNoCycle(id, *newParentID); err != nil {
			return err
		}
	}

	sameParent := equalStringPtr(panel.ParentID, newParentID)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE panels SET parent_id = ?, updated_at = ? WHERE identifier = ?`,
		nullableString(newParentID), nowMillis(), id); err != nil {
		return err
	}

	if err := normaliseWithInsert(tx, panel.WorkspaceID, newParentID, id, position); err != nil {
		return err
	}
	if !sameParent {
		if err := normaliseExcluding(tx, panel.WorkspaceID, panel.ParentID, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// checkNoCycle verifies that candidateParent is not id itself nor a
// descendant of id, which would create a cycle.
func (s *Store) checkNoCycle(id, candidateParent string) error {
	current := candidateParent
	visited := make(map[string]bool)
	for depth := 0; depth <= MaxAncestorDepth; depth++ {
		if current == id {
			return hosterrors.ErrCycleDetected.WithMessage("move would create a cycle")
		}
		if visited[current] {
			return hosterrors.ErrCycleDetected
		}
		visited[current] = true
		p, err := s.Get(current)
		if err != nil {
			return err
		}
		if p.ParentID == nil {
			return nil
		}
		current = *p.ParentID
	}
	return hosterrors.ErrCycleDetected.WithMessage("ancestor walk exceeded maximum depth")
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// normaliseWithInsert rebuilds the live sibling order at (workspaceID,
// parentID), inserting movingID at insertAt within the remaining
// siblings, then rewrites positions to a dense [0, n).
func normaliseWithInsert(tx *sql.Tx, workspaceID string, parentID *string, movingID string, insertAt int) error {
	ids, err := liveSiblingIDs(tx, workspaceID, parentID, movingID)
	if err != nil {
		return err
	}
	if insertAt < 0 {
		insertAt = 0
	}
	if insertAt > len(ids) {
		insertAt = len(ids)
	}
	ordered := make([]string, 0, len(ids)+1)
	ordered = append(ordered, ids[:insertAt]...)
	ordered = append(ordered, movingID)
	ordered = append(ordered, ids[insertAt:]...)

	return writePositions(tx, ordered)
}

// normaliseExcluding rewrites positions of the live siblings at
// (workspaceID, parentID) excluding excludeID into a dense [0, n), used
// when a panel has just moved away from this parent.
func normaliseExcluding(tx *sql.Tx, workspaceID string, parentID *string, excludeID string) error {
	ids, err := liveSiblingIDs(tx, workspaceID, parentID, excludeID)
	if err != nil {
		return err
	}
	return writePositions(tx, ids)
}

func liveSiblingIDs(tx *sql.Tx, workspaceID string, parentID *string, excludeID string) ([]string, error) {
	rows, err := tx.Query(`
		SELECT identifier FROM panels
		WHERE workspace_id = ? AND parent_id IS ? AND archived_at IS NULL AND identifier != ?
		ORDER BY position ASC
	`, workspaceID, nullableString(parentID), excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func writePositions(tx *sql.Tx, ordered []string) error {
	for i, id := range ordered {
		if _, err := tx.Exec(`UPDATE panels SET position = ? WHERE identifier = ?`, i, id); err != nil {
			return err
		}
	}
	return nil
}

// Archive soft-deletes a panel and normalises its former siblings.
func (s *Store) Archive(id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowMillis()
	res, err := tx.Exec(`UPDATE panels SET archived_at = ?, updated_at = ? WHERE identifier = ? AND archived_at IS NULL`, now, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // already archived: archive is idempotent
	}

	// Clear any parent's selected-child pointer if it pointed at the
	// now-archived panel, since selected_child must always be live.
	if p.ParentID != nil {
		if _, err := tx.Exec(`
			UPDATE panels SET selected_child_id = NULL
			WHERE identifier = ? AND selected_child_id = ?
		`, *p.ParentID, id); err != nil {
			return err
		}
	}

	if err := normaliseExcluding(tx, p.WorkspaceID, p.ParentID, id); err != nil {
		return err
	}

	return tx.Commit()
}

// Unarchive clears a panel's archived-at timestamp, leaving it in the same
// tree slot (parent, position) up to normalisation.
func (s *Store) Unarchive(id string) error {
	res, err := s.db.Exec(`UPDATE panels SET archived_at = NULL, updated_at = ? WHERE identifier = ?`, nowMillis(), id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res, id)
}

// AppendEvent appends a row to the event log. Events are not part of the
// tree's invariants and are safe to lose on crash.
func (s *Store) AppendEvent(workspaceID, panelID, eventType string, context json.RawMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := appendEventTx(tx, workspaceID, panelID, eventType, context); err != nil {
		return err
	}
	return tx.Commit()
}

func appendEventTx(tx *sql.Tx, workspaceID, panelID, eventType string, context json.RawMessage) error {
	if context == nil {
		context = json.RawMessage("{}")
	}
	_, err := tx.Exec(`
		INSERT INTO panel_events (panel_id, event_type, context, created_at, workspace_id)
		VALUES (?, ?, ?, ?, ?)
	`, panelID, eventType, string(context), nowMillis(), workspaceID)
	return err
}

// RecentEvents returns up to limit events for a workspace, newest first.
func (s *Store) RecentEvents(workspaceID string, limit int) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, panel_id, event_type, context, created_at, workspace_id
		FROM panel_events WHERE workspace_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ctx string
		if err := rows.Scan(&e.ID, &e.PanelID, &e.EventType, &ctx, &e.CreatedAt, &e.WorkspaceID); err != nil {
			return nil, err
		}
		e.Context = json.RawMessage(ctx)
		events = append(events, e)
	}
	return events, rows.Err()
}
