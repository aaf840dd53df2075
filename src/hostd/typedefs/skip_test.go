package typedefs

import "testing"

func TestIsSkippable(t *testing.T) {
	cases := map[string]bool{
		"node:fs":                    true,
		"fs":                         true,
		"#internal":                  true,
		"node_modules":               true,
		"@panelforge/runtime-mount":  true,
		"lodash":                     false,
		"@scope/package":             false,
	}
	for name, want := range cases {
		if got := isSkippable(name); got != want {
			t.Errorf("isSkippable(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTypesPackageName(t *testing.T) {
	if got := typesPackageName("lodash"); got != "@types/lodash" {
		t.Errorf("got %q", got)
	}
	if got := typesPackageName("@babel/core"); got != "@types/babel__core" {
		t.Errorf("got %q", got)
	}
}
