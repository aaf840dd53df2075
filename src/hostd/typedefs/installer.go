package typedefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
)

// maxTypeInstallRetries bounds the 404-trimming fixpoint for a single
// flush, per spec.md §4.7 step 4 ("up to a fixed bound, e.g. 5").
const maxTypeInstallRetries = 5

type typesManifest struct {
	Name         string            `json:"name"`
	Private      bool              `json:"private"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// reifyTypePackages writes a synthetic manifest naming every entry in
// names at "*" into dir and installs it, trimming 404'd packages and
// retrying up to maxTypeInstallRetries times. On a one-shot ENOTEMPTY
// failure the entire consumer directory is reset and reinstalled from a
// fresh minimal manifest. Peer-dependency conflicts are never retried.
func (s *Service) reifyTypePackages(ctx context.Context, dir string, names map[string]bool) (installed map[string]bool, err error) {
	installed = make(map[string]bool, len(names))
	remaining := make(map[string]bool, len(names))
	for n := range names {
		remaining[n] = true
	}

	resetDone := false
	attempts := 1 + maxTypeInstallRetries
	for attempt := 0; attempt < attempts && len(remaining) > 0; attempt++ {
		if err := writeTypesManifest(dir, remaining); err != nil {
			return installed, err
		}

		out, runErr := s.runNPMInstall(ctx, dir)
		if runErr == nil {
			for n := range remaining {
				installed[n] = true
			}
			return installed, nil
		}

		if missing, ok := missingPackageName(out); ok && remaining[missing] {
			delete(remaining, missing)
			if log != nil {
				log.Debug("trimming unresolvable type package", "package", missing)
			}
			continue
		}

		if isPeerConflict(out) {
			return installed, hosterrors.ErrPeerConflict.WithMessagef("peer dependency conflict installing type packages: %s", conflictSummary(out))
		}

		if isENOTEMPTY(out) && !resetDone {
			resetDone = true
			_ = os.RemoveAll(dir)
			continue
		}

		return installed, fmt.Errorf("type package install failed: %w: %s", runErr, out)
	}

	return installed, fmt.Errorf("exhausted retry budget installing type packages")
}

func writeTypesManifest(dir string, names map[string]bool) error {
	deps := make(map[string]string, len(names))
	for n := range names {
		deps[n] = "*"
	}
	m := typesManifest{Name: "hostd-typedefs-consumer", Private: true, Version: "0.0.0", Dependencies: deps}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "package.json"), data, 0644)
}

func (s *Service) runNPMInstall(ctx context.Context, dir string) (string, error) {
	bin := s.NPMPath
	if bin == "" {
		bin = "npm"
	}
	cmd := exec.CommandContext(ctx, bin, "install", "--no-audit", "--no-fund")
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

var missingPackageRe = regexp.MustCompile(`(?:404.*?registry\.npmjs\.org/([^\s/]+)|No matching version found for ([^\s@]+))`)

func missingPackageName(output string) (string, bool) {
	match := missingPackageRe.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}
	for _, candidate := range match[1:] {
		if candidate != "" {
			return candidate, true
		}
	}
	return "", false
}

func isPeerConflict(output string) bool {
	return strings.Contains(output, "ERESOLVE") || strings.Contains(output, "peer dep")
}

func isENOTEMPTY(output string) bool {
	return strings.Contains(output, "ENOTEMPTY")
}

func conflictSummary(output string) string {
	lines := strings.Split(output, "\n")
	var relevant []string
	for _, line := range lines {
		if strings.Contains(line, "peer") || strings.Contains(line, "Conflicting") {
			relevant = append(relevant, strings.TrimSpace(line))
		}
		if len(relevant) >= 3 {
			break
		}
	}
	return strings.Join(relevant, "; ")
}
