package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const defaultHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
%s%s</head>
<body>
<div id="root"></div>
<script type="module" src="./bundle.js"></script>
</body>
</html>
`

// generateHTML implements spec.md §4.2 step 8: an existing index.html in
// the source tree wins outright; otherwise a default document is emitted
// with a conditional import map and stylesheet reference.
func generateHTML(sourceDir string, externals map[string]string) (string, error) {
	existing := filepath.Join(sourceDir, "index.html")
	if data, err := os.ReadFile(existing); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	var importMapTag string
	if len(externals) > 0 {
		imports := make(map[string]string, len(externals))
		for specifier, url := range externals {
			imports[specifier] = url
		}
		encoded, err := json.Marshal(struct {
			Imports map[string]string `json:"imports"`
		}{Imports: imports})
		if err != nil {
			return "", err
		}
		importMapTag = fmt.Sprintf("<script type=\"importmap\">%s</script>\n", encoded)
	}

	stylesheetTag := `<link rel="stylesheet" href="./bundle.css">` + "\n"

	return fmt.Sprintf(defaultHTMLTemplate, importMapTag, stylesheetTag), nil
}
