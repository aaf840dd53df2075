package typedefs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const fakeNPMScript = `#!/usr/bin/env python3
import json, os, sys

with open("package.json") as f:
    manifest = json.load(f)

missing = "this-package-does-not-exist-xyz"
deps = manifest.get("dependencies", {})
if missing in deps:
    sys.stdout.write("npm ERR! 404 Not Found - GET https://registry.npmjs.org/%s\n" % missing)
    sys.exit(1)

os.makedirs("node_modules", exist_ok=True)
for name in deps:
    pkg_dir = os.path.join("node_modules", name)
    os.makedirs(pkg_dir, exist_ok=True)
    with open(os.path.join(pkg_dir, "package.json"), "w") as f:
        json.dump({"name": name, "version": "1.0.0", "types": "index.d.ts"}, f)
    with open(os.path.join(pkg_dir, "index.d.ts"), "w") as f:
        f.write("export declare const value: number;\n")
sys.exit(0)
`

func newFakeNPM(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-npm")
	if err := os.WriteFile(path, []byte(fakeNPMScript), 0755); err != nil {
		t.Fatalf("write fake npm: %v", err)
	}
	return path
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := New(t.TempDir())
	svc.NPMPath = newFakeNPM(t)
	svc.Debounce = 5 * time.Millisecond
	return svc
}

func TestGetPackageTypesBatchWith404(t *testing.T) {
	svc := newTestService(t)

	results := svc.GetPackageTypes(context.Background(), "/consumer/a", []string{"lodash", "this-package-does-not-exist-xyz"})

	lodash, ok := results["lodash"]
	if !ok || len(lodash.Files) == 0 {
		t.Fatalf("expected non-empty files for lodash, got %+v", lodash)
	}
	if lodash.EntryPoint == "" {
		t.Error("expected an entry point for lodash")
	}

	missing, ok := results["this-package-does-not-exist-xyz"]
	if !ok {
		t.Fatal("expected a result entry for the missing package")
	}
	if missing.Error == "" {
		t.Error("expected an error for the missing package")
	}
	if len(missing.Files) != 0 {
		t.Error("expected empty files for the missing package")
	}

	if _, ok := svc.cacheGet("lodash"); !ok {
		t.Error("expected lodash@latest to be cached")
	}
	if _, ok := svc.cacheGet("this-package-does-not-exist-xyz"); ok {
		t.Error("expected no cache entry for the missing package")
	}
}

func TestGetPackageTypesSkipsNodeBuiltins(t *testing.T) {
	svc := newTestService(t)
	results := svc.GetPackageTypes(context.Background(), "/consumer/a", []string{"node:fs", "fs"})
	for name, res := range results {
		if !res.Skipped {
			t.Errorf("%s: expected skipped=true", name)
		}
	}
}

func TestGetPackageTypesSecondCallHitsCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_ = svc.GetPackageTypes(ctx, "/consumer/a", []string{"lodash"})
	results := svc.GetPackageTypes(ctx, "/consumer/b", []string{"lodash"})

	lodash := results["lodash"]
	if len(lodash.Files) == 0 {
		t.Fatal("expected cached result to carry files through")
	}
}

func TestGetPackageTypesResolvesLocalPackages(t *testing.T) {
	svc := newTestService(t)
	localDir := t.TempDir()
	svc.LocalPrefix = "@workspace/"
	svc.LocalPackagesDir = localDir

	pkgDir := filepath.Join(localDir, "widgets")
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "index.d.ts"), []byte("export {};\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	results := svc.GetPackageTypes(context.Background(), "/consumer/a", []string{"@workspace/widgets"})
	res := results["@workspace/widgets"]
	if len(res.Files) == 0 {
		t.Fatal("expected local package files to resolve without installation")
	}
}

func TestInvalidateClearsCacheAndConsumers(t *testing.T) {
	svc := newTestService(t)
	svc.GetPackageTypes(context.Background(), "/consumer/a", []string{"lodash"})

	if svc.cache.len() == 0 {
		t.Fatal("expected cache to be populated before invalidate")
	}

	svc.Invalidate()

	if svc.cache.len() != 0 {
		t.Error("expected cache to be empty after invalidate")
	}
	svc.consumersMu.Lock()
	n := len(svc.consumers)
	svc.consumersMu.Unlock()
	if n != 0 {
		t.Error("expected consumer map to be empty after invalidate")
	}
}

func TestPickEntryPointPrefersPackageJSONTypes(t *testing.T) {
	files := map[string]string{
		"package.json": mustJSON(map[string]string{"types": "lib/main.d.ts"}),
		"lib/main.d.ts": "export {}\n",
		"other.d.ts":    "export {}\n",
	}
	if got := pickEntryPoint(files); got != "lib/main.d.ts" {
		t.Errorf("pickEntryPoint = %q", got)
	}
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
