package depinstall

import (
	"errors"
	"testing"
)

func TestResolveWorkspaceSpecifiers(t *testing.T) {
	deps := map[string]string{
		"shared-ui": "workspace:*",
		"lodash":    "^4.17.0",
	}
	got := resolveWorkspaceSpecifiers("/tmp/runtime/abc", deps)

	if got["lodash"] != "^4.17.0" {
		t.Errorf("lodash = %q, want unchanged", got["lodash"])
	}
	if got["shared-ui"] == "workspace:*" {
		t.Errorf("shared-ui was not resolved from workspace:* specifier")
	}
	if len(got["shared-ui"]) < len("file:") || got["shared-ui"][:5] != "file:" {
		t.Errorf("shared-ui = %q, want a file: URI", got["shared-ui"])
	}
}

func TestCanonicalJSONStableAcrossMapOrder(t *testing.T) {
	a := manifest{Name: "n", Private: true, Version: "0.0.0", Dependencies: map[string]string{"b": "1", "a": "2"}}
	b := manifest{Name: "n", Private: true, Version: "0.0.0", Dependencies: map[string]string{"a": "2", "b": "1"}}

	encodedA, err := canonicalJSON(a)
	if err != nil {
		t.Fatalf("canonicalJSON(a): %v", err)
	}
	encodedB, err := canonicalJSON(b)
	if err != nil {
		t.Fatalf("canonicalJSON(b): %v", err)
	}
	if string(encodedA) != string(encodedB) {
		t.Errorf("encodings differ by map construction order: %s vs %s", encodedA, encodedB)
	}
}

func TestInstallEmptyDependenciesReturnsNoHash(t *testing.T) {
	inst := New()
	hash, err := inst.Install(nil, t.TempDir(), nil, "")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty for no dependencies", hash)
	}
}

func TestMissingPackageName(t *testing.T) {
	err := errors.New("npm error code E404\nnpm error 404 Not Found - GET https://registry.npmjs.org/this-package-does-not-exist-xyz - Not found")
	pkg, ok := missingPackageName(err)
	if !ok {
		t.Fatal("expected missingPackageName to recognise a 404")
	}
	if pkg != "this-package-does-not-exist-xyz" {
		t.Errorf("pkg = %q, want %q", pkg, "this-package-does-not-exist-xyz")
	}
}

func TestIsPeerConflictAndENOTEMPTY(t *testing.T) {
	if !isPeerConflict(errors.New("npm error ERESOLVE unable to resolve dependency tree")) {
		t.Error("expected ERESOLVE message to be recognised as a peer conflict")
	}
	if !isENOTEMPTY(errors.New("rename node_modules/.tmp: ENOTEMPTY: directory not empty")) {
		t.Error("expected ENOTEMPTY message to be recognised")
	}
}
