package build

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writeFile %s: %v", name, err)
	}
}

func TestLoadManifestRequiresTitle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "panel.json", `{"entry":"index.ts"}`)

	if _, err := loadManifest(dir); err == nil {
		t.Fatal("expected error for manifest missing title")
	}
}

func TestLoadManifestPassesThroughExtra(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "panel.json", `{"title":"Editor","icon":"pencil"}`)

	m, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.Title != "Editor" {
		t.Errorf("Title = %q", m.Title)
	}
	if _, ok := m.Extra["icon"]; !ok {
		t.Error("expected icon to survive in Extra")
	}
	if _, ok := m.Extra["title"]; ok {
		t.Error("known field title should not appear in Extra")
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadManifest(dir); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestResolveEntryExplicitWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.ts", "")
	writeFile(t, dir, "custom.ts", "")

	entry, err := resolveEntry(dir, &Manifest{Entry: "custom.ts"})
	if err != nil {
		t.Fatalf("resolveEntry: %v", err)
	}
	if entry != "custom.ts" {
		t.Errorf("entry = %q", entry)
	}
}

func TestResolveEntryConventionalSingleMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.tsx", "")

	entry, err := resolveEntry(dir, &Manifest{})
	if err != nil {
		t.Fatalf("resolveEntry: %v", err)
	}
	if entry != "index.tsx" {
		t.Errorf("entry = %q", entry)
	}
}

func TestResolveEntryAmbiguous(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.ts", "")
	writeFile(t, dir, "index.tsx", "")

	if _, err := resolveEntry(dir, &Manifest{}); err == nil {
		t.Fatal("expected ambiguous entry error")
	}
}

func TestResolveEntryNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := resolveEntry(dir, &Manifest{}); err == nil {
		t.Fatal("expected entry-not-found error")
	}
}
