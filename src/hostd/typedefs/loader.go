package typedefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// collectTypeFiles walks pkgDir and returns every .d.ts file's contents
// keyed by its path relative to pkgDir (forward-slash separated).
func collectTypeFiles(pkgDir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.Walk(pkgDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".d.ts") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(pkgDir, path)
		if err != nil {
			return nil
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// pickEntryPoint chooses the package's primary declaration file: the
// package.json "types"/"typings" field if present, otherwise a top-level
// index.d.ts, otherwise the lexicographically first top-level .d.ts file,
// otherwise "".
func pickEntryPoint(files map[string]string) string {
	if len(files) == 0 {
		return ""
	}

	if pkgJSON, ok := files["package.json"]; ok {
		var meta struct {
			Types   string `json:"types"`
			Typings string `json:"typings"`
		}
		if err := json.Unmarshal([]byte(pkgJSON), &meta); err == nil {
			if meta.Types != "" {
				if _, ok := files[meta.Types]; ok {
					return meta.Types
				}
			}
			if meta.Typings != "" {
				if _, ok := files[meta.Typings]; ok {
					return meta.Typings
				}
			}
		}
	}

	var topLevel []string
	for path := range files {
		if strings.HasSuffix(path, ".d.ts") && !strings.Contains(path, "/") {
			topLevel = append(topLevel, path)
		}
	}
	if len(topLevel) == 0 {
		return ""
	}
	sort.Strings(topLevel)
	if idx := indexOf(topLevel, "index.d.ts"); idx >= 0 {
		return topLevel[idx]
	}
	return topLevel[0]
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}
