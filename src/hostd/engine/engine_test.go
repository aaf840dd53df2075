package engine

import (
	"testing"

	"github.com/panelforge/hostd/src/hostd/tree"
)

func TestOpenWiresComponentsAndSupportsTreeOps(t *testing.T) {
	e, err := Open(t.TempDir(), Config{WorkspaceID: "ws1", BuildWorkers: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	panel, err := e.Tree.Create("ws1", "p1", nil, "Editor", tree.Snapshot{Source: "panels/editor", Type: "editor"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if panel.Title != "Editor" {
		t.Errorf("got title %q", panel.Title)
	}

	if e.Pipeline == nil || e.Installer == nil || e.Cache == nil || e.Typedefs == nil || e.BuildManager == nil {
		t.Fatal("expected every component to be constructed")
	}
}

func TestCloseIsIdempotentlySafe(t *testing.T) {
	e, err := Open(t.TempDir(), Config{WorkspaceID: "ws2"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
