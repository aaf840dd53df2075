// hostd is a workspace-scoped runtime that hosts composable panels: it
// persists the panel tree, provisions and bundles panel sources on demand,
// and exposes an HTTP facade for the bridge/preload layer that embeds it.
package main

import (
	"github.com/panelforge/hostd/src/hostd/core"
)

func main() {
	core.Execute()
}
