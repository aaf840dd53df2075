package tree

import (
	"database/sql"
	"strconv"
	"testing"

	"github.com/panelforge/hostd/src/hostd/tree/migrations"
	_ "github.com/mattn/go-sqlite3"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("set pragma: %v", err)
	}

	runner := migrations.NewRunner(db)
	if err := runner.Run(); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return NewStore(db)
}

func TestCreateThenReadRoots(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("ws1", "p1", nil, "Editor", Snapshot{Source: "panels/editor", Type: "editor"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	roots, err := s.Roots("ws1")
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}
	want := PanelSummary{ID: "p1", Type: "editor", Title: "Editor", ChildCount: 0, Position: 0}
	if roots[0] != want {
		t.Errorf("got %+v, want %+v", roots[0], want)
	}
}

func TestPrependOrdering(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := s.Create("ws1", id, nil, id, Snapshot{Source: "x", Type: "t"}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	roots, err := s.Roots("ws1")
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if len(roots) != 3 {
		t.Fatalf("expected 3 roots, got %d", len(roots))
	}

	wantOrder := []struct {
		id  string
		pos int
	}{{"p3", 0}, {"p2", 1}, {"p1", 2}}
	for i, w := range wantOrder {
		if roots[i].ID != w.id || roots[i].Position != w.pos {
			t.Errorf("index %d: got (%s,%d), want (%s,%d)", i, roots[i].ID, roots[i].Position, w.id, w.pos)
		}
	}
}

func TestMoveAndNormalise(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create("ws1", "P", nil, "parent", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(P): %v", err)
	}
	parentID := "P"
	// Creating in order a, b, c, d (each prepended) would yield d, c, b, a;
	// they are created in reverse order instead so the fixture matches the
	// scenario's stated starting order [a,b,c,d].
	for _, id := range []string{"d", "c", "b", "a"} {
		if _, err := s.Create("ws1", id, &parentID, id, Snapshot{Source: "x", Type: "t"}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	children, err := s.Children("P")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 4 {
		t.Fatalf("expected 4 children, got %d", len(children))
	}
	gotOrder := []string{children[0].ID, children[1].ID, children[2].ID, children[3].ID}
	wantStart := []string{"a", "b", "c", "d"}
	for i := range wantStart {
		if gotOrder[i] != wantStart[i] {
			t.Fatalf("fixture setup: got order %v, want %v", gotOrder, wantStart)
		}
	}

	if err := s.Move("c", &parentID, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}

	children, err = s.Children("P")
	if err != nil {
		t.Fatalf("Children after move: %v", err)
	}
	wantAfter := []string{"c", "a", "b", "d"}
	for i, w := range wantAfter {
		if children[i].ID != w || children[i].Position != i {
			t.Errorf("index %d: got (%s,%d), want (%s,%d)", i, children[i].ID, children[i].Position, w, i)
		}
	}
}

func TestSelectedPathMonotonicity(t *testing.T) {
	s := newTestStore(t)

	root := "root"
	mid := "mid"
	leaf := "leaf"
	if _, err := s.Create("ws1", root, nil, "root", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(root): %v", err)
	}
	if _, err := s.Create("ws1", mid, &root, "mid", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(mid): %v", err)
	}
	if _, err := s.Create("ws1", leaf, &mid, "leaf", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(leaf): %v", err)
	}

	if err := s.UpdateSelectedPath(leaf); err != nil {
		t.Fatalf("UpdateSelectedPath: %v", err)
	}

	rootPanel, err := s.Get(root)
	if err != nil {
		t.Fatalf("Get(root): %v", err)
	}
	if rootPanel.SelectedChildID == nil || *rootPanel.SelectedChildID != mid {
		t.Errorf("root.selectedChild = %v, want %q", rootPanel.SelectedChildID, mid)
	}

	midPanel, err := s.Get(mid)
	if err != nil {
		t.Fatalf("Get(mid): %v", err)
	}
	if midPanel.SelectedChildID == nil || *midPanel.SelectedChildID != leaf {
		t.Errorf("mid.selectedChild = %v, want %q", midPanel.SelectedChildID, leaf)
	}
}

func TestSelectedPathFocusEventCarriesWorkspaceID(t *testing.T) {
	s := newTestStore(t)

	root := "root"
	leaf := "leaf"
	if _, err := s.Create("ws1", root, nil, "root", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(root): %v", err)
	}
	if _, err := s.Create("ws1", leaf, &root, "leaf", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(leaf): %v", err)
	}

	if err := s.UpdateSelectedPath(leaf); err != nil {
		t.Fatalf("UpdateSelectedPath: %v", err)
	}

	events, err := s.RecentEvents("ws1", 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	var sawFocused bool
	for _, e := range events {
		if e.EventType == EventFocused && e.PanelID == leaf {
			sawFocused = true
			if e.WorkspaceID != "ws1" {
				t.Errorf("focused event WorkspaceID = %q, want ws1", e.WorkspaceID)
			}
		}
	}
	if !sawFocused {
		t.Fatal("expected a focused event scoped to ws1 to be visible via RecentEvents")
	}
}

func TestArchiveUnarchivePreservesSlot(t *testing.T) {
	s := newTestStore(t)

	parentID := "P"
	if _, err := s.Create("ws1", parentID, nil, "parent", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(P): %v", err)
	}
	for _, id := range []string{"c", "b", "a"} {
		if _, err := s.Create("ws1", id, &parentID, id, Snapshot{Source: "x", Type: "t"}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	before, err := s.Get("b")
	if err != nil {
		t.Fatalf("Get(b) before: %v", err)
	}

	if err := s.Archive("b"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	children, err := s.Children(parentID)
	if err != nil {
		t.Fatalf("Children after archive: %v", err)
	}
	for _, c := range children {
		if c.ID == "b" {
			t.Fatalf("archived panel b still appears in Children()")
		}
	}

	if err := s.Unarchive("b"); err != nil {
		t.Fatalf("Unarchive: %v", err)
	}

	after, err := s.Get("b")
	if err != nil {
		t.Fatalf("Get(b) after: %v", err)
	}
	if after.ArchivedAt != nil {
		t.Errorf("expected b unarchived, archived_at = %v", *after.ArchivedAt)
	}
	if after.ParentID == nil || *after.ParentID != *before.ParentID {
		t.Errorf("parent changed across archive/unarchive: got %v, want %v", after.ParentID, before.ParentID)
	}
}

func TestCycleDetectedAtDepth(t *testing.T) {
	s := newTestStore(t)

	root := "n0"
	if _, err := s.Create("ws1", root, nil, "n0", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(n0): %v", err)
	}
	prev := root
	for i := 1; i <= MaxAncestorDepth; i++ {
		id := "n" + strconv.Itoa(i)
		parent := prev
		if _, err := s.Create("ws1", id, &parent, id, Snapshot{Source: "x", Type: "t"}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
		prev = id
	}

	deepest := prev
	if err := s.Move(root, &deepest, 0); err == nil {
		t.Fatalf("expected cycle detection error, got nil")
	}

	rootAfter, err := s.Get(root)
	if err != nil {
		t.Fatalf("Get(root): %v", err)
	}
	if rootAfter.SelectedChildID != nil {
		t.Errorf("selected-child state mutated despite rejected cyclic move")
	}
}

func TestUpdateFoldsOnlyAllowedFields(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create("ws1", "p1", nil, "Editor", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTitle := "Renamed"
	collapsed := true
	if err := s.Update("p1", UpdatePanelInput{Title: &newTitle, Collapsed: &collapsed}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	p, err := s.Get("p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Title != newTitle {
		t.Errorf("Title = %q, want %q", p.Title, newTitle)
	}
	if !p.Collapsed {
		t.Errorf("Collapsed = false, want true")
	}
}

func TestInsertingFirstChildYieldsPositionZero(t *testing.T) {
	s := newTestStore(t)

	parentID := "P"
	if _, err := s.Create("ws1", parentID, nil, "parent", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(P): %v", err)
	}
	child, err := s.Create("ws1", "c1", &parentID, "child", Snapshot{Source: "x", Type: "t"})
	if err != nil {
		t.Fatalf("Create(c1): %v", err)
	}
	if child.Position != 0 {
		t.Errorf("Position = %d, want 0", child.Position)
	}
}

func TestTreeNestsChildrenAndExcludesArchived(t *testing.T) {
	s := newTestStore(t)

	root := "root"
	if _, err := s.Create("ws1", root, nil, "Root", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(root): %v", err)
	}
	childA := "childA"
	if _, err := s.Create("ws1", childA, &root, "A", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(childA): %v", err)
	}
	childB := "childB"
	if _, err := s.Create("ws1", childB, &root, "B", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(childB): %v", err)
	}
	if _, err := s.Create("ws1", "grandchild", &childA, "C", Snapshot{Source: "x", Type: "t"}); err != nil {
		t.Fatalf("Create(grandchild): %v", err)
	}

	forest, err := s.Tree("ws1")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(forest) != 1 {
		t.Fatalf("expected 1 root, got %d", len(forest))
	}
	if forest[0].ID != root {
		t.Fatalf("root ID = %q, want %q", forest[0].ID, root)
	}
	if len(forest[0].Children) != 2 {
		t.Fatalf("expected 2 children under root, got %d", len(forest[0].Children))
	}
	var a *TreeNode
	for _, c := range forest[0].Children {
		if c.ID == childA {
			a = c
		}
	}
	if a == nil || len(a.Children) != 1 {
		t.Fatalf("expected childA to carry its grandchild")
	}

	if err := s.Archive(childB); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	forest, err = s.Tree("ws1")
	if err != nil {
		t.Fatalf("Tree after archive: %v", err)
	}
	if len(forest[0].Children) != 1 {
		t.Fatalf("expected archived child excluded, got %d children", len(forest[0].Children))
	}
	if forest[0].Children[0].ID != childA {
		t.Fatalf("expected remaining child %q, got %q", childA, forest[0].Children[0].ID)
	}
}
