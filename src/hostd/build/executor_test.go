package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newArgRecordingBinary writes an executable that dumps its argv (one per
// line) to argsPath and exits 0, standing in for the esbuild binary so
// these tests can assert on the flags Bundle constructs without actually
// invoking esbuild.
func newArgRecordingBinary(t *testing.T, argsPath string) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "esbuild-stub.sh")
	body := "#!/bin/sh\nfor a in \"$@\"; do echo \"$a\" >> \"" + argsPath + "\"; done\nexit 0\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatalf("write esbuild stub: %v", err)
	}
	return script
}

func TestBundleAppendsFsStubAliasFlags(t *testing.T) {
	argsPath := filepath.Join(t.TempDir(), "args.log")
	e := &ESBuildExecutor{BinaryPath: newArgRecordingBinary(t, argsPath)}

	_, err := e.Bundle(context.Background(), BundleOptions{
		EntryPoint:   "entry.js",
		OutDir:       t.TempDir(),
		Target:       TargetPanel,
		FsStubModule: "/runtime/__fs_stub.js",
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}

	data, err := os.ReadFile(argsPath)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	args := string(data)
	if !strings.Contains(args, "--alias:fs=/runtime/__fs_stub.js") {
		t.Errorf("expected an fs alias flag, got args:\n%s", args)
	}
	if !strings.Contains(args, "--alias:fs/promises=/runtime/__fs_stub.js") {
		t.Errorf("expected an fs/promises alias flag, got args:\n%s", args)
	}
}

func TestBundleAppendsDedupeAliasFlags(t *testing.T) {
	argsPath := filepath.Join(t.TempDir(), "args.log")
	e := &ESBuildExecutor{BinaryPath: newArgRecordingBinary(t, argsPath)}

	_, err := e.Bundle(context.Background(), BundleOptions{
		EntryPoint: "entry.js",
		OutDir:     t.TempDir(),
		Target:     TargetWorker,
		DedupeModules: map[string]string{
			"react": "/runtime/node_modules/react",
		},
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}

	data, err := os.ReadFile(argsPath)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	if !strings.Contains(string(data), "--alias:react=/runtime/node_modules/react") {
		t.Errorf("expected a react dedupe alias flag, got args:\n%s", data)
	}
}

func TestEntryBaseNameStripsDirAndExtension(t *testing.T) {
	cases := map[string]string{
		"entry.js":         "entry",
		"dir/sub/entry.ts": "entry",
		"__entry.js":       "__entry",
		"no-extension":     "no-extension",
	}
	for input, want := range cases {
		if got := entryBaseName(input); got != want {
			t.Errorf("entryBaseName(%q) = %q, want %q", input, got, want)
		}
	}
}
