package build

import (
	"encoding/json"
	"os"
	"path/filepath"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
)

// Manifest is the build manifest a source directory exposes. The pipeline
// requires only Title; everything else is optional, and fields it does not
// know about pass through opaquely via Extra.
type Manifest struct {
	Title        string            `json:"title"`
	Entry        string            `json:"entry,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Externals    map[string]string `json:"externals,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

const manifestFilename = "panel.json"

// loadManifest reads and validates the build manifest from sourceDir.
func loadManifest(sourceDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(sourceDir, manifestFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hosterrors.ErrManifestMissing.WithMessagef("no %s in %s", manifestFilename, sourceDir)
		}
		return nil, hosterrors.ErrManifestMissing.WithCause(err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, hosterrors.ErrManifestMissing.WithMessagef("malformed manifest: %v", err)
	}
	if m.Title == "" {
		return nil, hosterrors.ErrManifestMissing.WithMessage("manifest missing required field: title")
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err == nil {
		delete(extra, "title")
		delete(extra, "entry")
		delete(extra, "dependencies")
		delete(extra, "externals")
		m.Extra = extra
	}

	return &m, nil
}

// conventionalEntries is the fixed, ordered probe list used when the
// manifest names no explicit entry.
var conventionalEntries = []string{"index.tsx", "index.ts", "index.jsx", "index.js", "main.tsx", "main.ts"}

// resolveEntry implements spec.md §4.2 step 5: an explicit manifest entry
// wins outright; otherwise exactly one conventional file must exist.
func resolveEntry(sourceDir string, manifest *Manifest) (string, error) {
	if manifest.Entry != "" {
		return manifest.Entry, nil
	}

	var found []string
	for _, candidate := range conventionalEntries {
		if _, err := os.Stat(filepath.Join(sourceDir, candidate)); err == nil {
			found = append(found, candidate)
		}
	}

	switch len(found) {
	case 0:
		return "", hosterrors.ErrEntryNotFound
	case 1:
		return found[0], nil
	default:
		return "", hosterrors.ErrEntryAmbiguous.WithMessagef("candidates: %v", found)
	}
}
