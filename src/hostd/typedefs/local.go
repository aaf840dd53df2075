package typedefs

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveLocal returns a package's type files directly from the
// configured local-workspace packages directory when name matches the
// configured local prefix and a matching directory exists, bypassing
// installation entirely.
func (s *Service) resolveLocal(name string) (PackageResult, bool) {
	if s.LocalPrefix == "" || s.LocalPackagesDir == "" {
		return PackageResult{}, false
	}
	if !strings.HasPrefix(name, s.LocalPrefix) {
		return PackageResult{}, false
	}

	pkgDir := filepath.Join(s.LocalPackagesDir, strings.TrimPrefix(name, s.LocalPrefix))
	if info, err := os.Stat(pkgDir); err != nil || !info.IsDir() {
		return PackageResult{}, false
	}

	files, err := collectTypeFiles(pkgDir)
	if err != nil || len(files) == 0 {
		return PackageResult{}, false
	}
	return PackageResult{Files: files, EntryPoint: pickEntryPoint(files)}, true
}
