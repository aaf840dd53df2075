package typedefs

import "strings"

// platformBuiltins never carry installable type definitions; they ship
// with the runtime they belong to.
var platformBuiltins = map[string]bool{
	"fs": true, "path": true, "os": true, "http": true, "https": true,
	"crypto": true, "stream": true, "buffer": true, "events": true,
	"util": true, "url": true, "querystring": true, "child_process": true,
}

// internalOnlyPrefixes are specifiers that only make sense wired into the
// host runtime itself; they are never fetchable from a registry.
var internalOnlyPrefixes = []string{"@panelforge/runtime-", "@panelforge/internal-"}

// isSkippable reports whether name should bypass installation entirely
// per spec.md §4.7's skip rules.
func isSkippable(name string) bool {
	switch {
	case strings.HasPrefix(name, "node:"):
		return true
	case platformBuiltins[name]:
		return true
	case strings.HasPrefix(name, "#"):
		return true
	case name == "node_modules":
		return true
	}
	for _, prefix := range internalOnlyPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// typesPackageName returns the @types/* package name that provides
// community type definitions for a bare package specifier, handling the
// scoped-package mangling (@scope/name -> @types/scope__name).
func typesPackageName(name string) string {
	if strings.HasPrefix(name, "@") {
		trimmed := strings.TrimPrefix(name, "@")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) == 2 {
			return "@types/" + parts[0] + "__" + parts[1]
		}
	}
	return "@types/" + name
}
