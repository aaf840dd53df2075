package nsurl

import (
	"reflect"
	"testing"
)

func TestParseExamples(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantSource string
		wantAction Action
	}{
		{"bare path", "ns:///panels/editor", "panels/editor", ActionNavigate},
		{"explicit child action", "ns:///panels/editor?action=child", "panels/editor", ActionChild},
		{"gitRef", "ns:///panels/editor?gitRef=main", "panels/editor", ActionNavigate},
		{"repoArgs", "ns:///panels/editor?repoArgs=%7B%22workspace%22%3A%22repos%2Fapp%22%7D", "panels/editor", ActionNavigate},
		{"stateArgs and focus", "ns:///workers/indexer?stateArgs=%7B%22foo%22%3A1%7D&focus=true", "workers/indexer", ActionNavigate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, opts, err := Parse(tt.uri)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.uri, err)
			}
			if source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
			if opts.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", opts.Action, tt.wantAction)
			}
		})
	}
}

func TestParseRejectsNonNSScheme(t *testing.T) {
	if _, _, err := Parse("http://panels/editor"); err == nil {
		t.Fatal("expected error for non-ns scheme")
	}
}

func TestParseRejectsUnknownAction(t *testing.T) {
	if _, _, err := Parse("ns:///panels/editor?action=teleport"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseRejectsEmptySource(t *testing.T) {
	if _, _, err := Parse("ns:///"); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, _, err := Parse("ns:///panels/editor?repoArgs=not-json"); err == nil {
		t.Fatal("expected error for malformed repoArgs JSON")
	}
}

func TestParseRejectsNonStringEnv(t *testing.T) {
	if _, _, err := Parse("ns:///panels/editor?env=%7B%22FOO%22%3A1%7D"); err == nil {
		t.Fatal("expected error for non-string env value")
	}
}

// TestRoundTrip exercises the universal invariant from spec.md §8:
// parse(emit(source, opts)) reproduces (source, opts) exactly.
func TestRoundTrip(t *testing.T) {
	gitRef := "main"
	want := Options{
		Action: ActionChild,
		GitRef: &gitRef,
		RepoArgs: map[string]RepoArgSpec{
			"lib": {Repo: "r", Ref: "v1"},
		},
	}

	emitted, err := Emit("panels/x", want)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	gotSource, gotOpts, err := Parse(emitted)
	if err != nil {
		t.Fatalf("Parse(%q): %v", emitted, err)
	}

	if gotSource != "panels/x" {
		t.Errorf("source = %q, want %q", gotSource, "panels/x")
	}
	if gotOpts.Action != ActionChild {
		t.Errorf("action = %q, want %q", gotOpts.Action, ActionChild)
	}
	if gotOpts.GitRef == nil || *gotOpts.GitRef != "main" {
		t.Errorf("gitRef = %v, want %q", gotOpts.GitRef, "main")
	}
	if !reflect.DeepEqual(gotOpts.RepoArgs, want.RepoArgs) {
		t.Errorf("repoArgs = %+v, want %+v", gotOpts.RepoArgs, want.RepoArgs)
	}
	if gotOpts.TemplateSpec != nil || gotOpts.Env != nil || gotOpts.StateArgs != nil ||
		gotOpts.Name != nil || gotOpts.Focus != nil || gotOpts.Unsafe != nil {
		t.Errorf("expected all unspecified options to remain nil, got %+v", gotOpts)
	}
}

func TestRoundTripBareRepoArgString(t *testing.T) {
	opts := Options{
		Action:   ActionNavigate,
		RepoArgs: map[string]RepoArgSpec{"workspace": {Repo: "repos/app"}},
	}
	emitted, err := Emit("panels/editor", opts)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	_, gotOpts, err := Parse(emitted)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if gotOpts.RepoArgs["workspace"].Repo != "repos/app" || gotOpts.RepoArgs["workspace"].Ref != "" {
		t.Errorf("repoArgs[workspace] = %+v, want {Repo: repos/app, Ref: \"\"}", gotOpts.RepoArgs["workspace"])
	}
}

func TestEmitOmitsDefaultAction(t *testing.T) {
	emitted, err := Emit("panels/editor", Options{Action: ActionNavigate})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if emitted != "ns:///panels/editor" {
		t.Errorf("emitted = %q, want %q", emitted, "ns:///panels/editor")
	}
}
