// Package depinstall installs a panel's resolved dependency set into its
// runtime directory, shelling out to a platform package-manager facade and
// skipping work when nothing has changed since the previous install.
package depinstall

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/panelforge/hostd/src/common/logs"
)

var log *logs.Logger

// SetLogger sets the logger used by the depinstall package.
func SetLogger(l *logs.Logger) {
	log = l
}

// maxTrimRetryMargin bounds the error-trimming retry loop: each retry removes
// exactly one offending package named by a "not found" error, so the bound
// is the number of dependencies plus one defensive margin.
const maxTrimRetryMargin = 1

// manifest is the canonical synthetic package manifest written into the
// runtime directory ahead of install.
type manifest struct {
	Name         string            `json:"name"`
	Private      bool              `json:"private"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// Installer runs the platform package manager (npm) against a runtime
// directory on behalf of the build pipeline.
type Installer struct {
	// NPMPath overrides the resolved "npm" executable, for testing.
	NPMPath string
}

// New returns an Installer using the default "npm" executable resolution.
func New() *Installer {
	return &Installer{NPMPath: "npm"}
}

// Install resolves workspace:* specifiers to local file URIs, computes the
// canonical manifest hash, skips the install if previousHash matches and a
// populated node_modules exists, and otherwise writes the manifest and
// reifies it via the package manager. It returns the new hash, or "" if
// dependencies is empty.
func (inst *Installer) Install(ctx context.Context, runtimeDirectory string, dependencies map[string]string, previousHash string) (string, error) {
	if len(dependencies) == 0 {
		return "", nil
	}

	resolved := resolveWorkspaceSpecifiers(runtimeDirectory, dependencies)

	m := manifest{
		Name:         "hostd-panel-runtime",
		Private:      true,
		Version:      "0.0.0",
		Dependencies: resolved,
	}
	data, err := canonicalJSON(m)
	if err != nil {
		return "", fmt.Errorf("canonicalize manifest: %w", err)
	}
	newHash := sha256sum(data)

	manifestPath := filepath.Join(runtimeDirectory, "package.json")

	if previousHash != "" && previousHash == newHash && hasPopulatedModules(runtimeDirectory) {
		existing, err := os.ReadFile(manifestPath)
		if err != nil || !bytesEqual(existing, data) {
			if err := os.WriteFile(manifestPath, data, 0644); err != nil {
				return "", fmt.Errorf("rewrite unchanged manifest: %w", err)
			}
		}
		return newHash, nil
	}

	if err := os.RemoveAll(filepath.Join(runtimeDirectory, "node_modules")); err != nil {
		return "", fmt.Errorf("remove stale install tree: %w", err)
	}
	os.Remove(filepath.Join(runtimeDirectory, "package-lock.json"))

	if err := os.MkdirAll(runtimeDirectory, 0755); err != nil {
		return "", fmt.Errorf("create runtime directory: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if err := inst.reifyWithTrimming(ctx, runtimeDirectory, resolved); err != nil {
		return "", err
	}

	return newHash, nil
}

// reifyWithTrimming runs the package-manager install, and on a package-not-
// found failure trims exactly the offending package and retries, bounded
// by the number of dependencies. Peer-dependency conflicts are never
// retried. A directory-not-empty (ENOTEMPTY) failure gets exactly one
// reset-and-retry.
func (inst *Installer) reifyWithTrimming(ctx context.Context, runtimeDirectory string, deps map[string]string) error {
	remaining := make(map[string]string, len(deps))
	for k, v := range deps {
		remaining[k] = v
	}

	resetDone := false
	attempts := len(remaining) + maxTrimRetryMargin

	for i := 0; i < attempts; i++ {
		err := inst.runInstall(ctx, runtimeDirectory)
		if err == nil {
			return nil
		}

		if pkg, ok := missingPackageName(err); ok {
			if _, known := remaining[pkg]; !known {
				return hosterrors.ErrPackageNotFound.WithMessagef("package not found: %s", pkg).WithCause(err)
			}
			delete(remaining, pkg)
			if err := inst.rewriteManifestDependencies(runtimeDirectory, remaining); err != nil {
				return err
			}
			if log != nil {
				log.Warn("dependency install trimmed missing package and retrying", "package", pkg)
			}
			continue
		}

		if isPeerConflict(err) {
			return hosterrors.ErrPeerConflict.WithCause(err)
		}

		if isENOTEMPTY(err) && !resetDone {
			resetDone = true
			if err := os.RemoveAll(filepath.Join(runtimeDirectory, "node_modules")); err != nil {
				return fmt.Errorf("reset after ENOTEMPTY: %w", err)
			}
			continue
		}

		return fmt.Errorf("dependency install failed: %w", err)
	}

	return hosterrors.ErrPackageNotFound.WithMessage("exceeded trim retry budget")
}

func (inst *Installer) rewriteManifestDependencies(runtimeDirectory string, deps map[string]string) error {
	m := manifest{Name: "hostd-panel-runtime", Private: true, Version: "0.0.0", Dependencies: deps}
	data, err := canonicalJSON(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runtimeDirectory, "package.json"), data, 0644)
}

func (inst *Installer) runInstall(ctx context.Context, runtimeDirectory string) error {
	npm := inst.NPMPath
	if npm == "" {
		npm = "npm"
	}
	cmd := exec.CommandContext(ctx, npm, "install", "--no-audit", "--no-fund")
	cmd.Dir = runtimeDirectory
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}

func missingPackageName(err error) (string, bool) {
	msg := err.Error()
	const marker = "404 Not Found"
	if !strings.Contains(msg, marker) {
		return "", false
	}
	// npm reports "404 Not Found - GET https://registry.npmjs.org/<pkg> ..."
	idx := strings.LastIndex(msg, "registry.npmjs.org/")
	if idx < 0 {
		return "", false
	}
	rest := msg[idx+len("registry.npmjs.org/"):]
	for i, r := range rest {
		if r == ' ' || r == '\n' || r == '\r' {
			return rest[:i], true
		}
	}
	return rest, true
}

func isPeerConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ERESOLVE") || strings.Contains(msg, "peer dep")
}

func isENOTEMPTY(err error) bool {
	return strings.Contains(err.Error(), "ENOTEMPTY")
}

func hasPopulatedModules(runtimeDirectory string) bool {
	entries, err := os.ReadDir(filepath.Join(runtimeDirectory, "node_modules"))
	return err == nil && len(entries) > 0
}

// resolveWorkspaceSpecifiers rewrites "workspace:*" dependency specifiers
// to absolute local file URIs rooted at the runtime directory's sibling
// workspace packages directory.
func resolveWorkspaceSpecifiers(runtimeDirectory string, dependencies map[string]string) map[string]string {
	resolved := make(map[string]string, len(dependencies))
	for name, spec := range dependencies {
		if spec == "workspace:*" || strings.HasPrefix(spec, "workspace:") {
			abs, err := filepath.Abs(filepath.Join(runtimeDirectory, "..", "workspace-packages", name))
			if err != nil {
				resolved[name] = spec
				continue
			}
			resolved[name] = "file:" + abs
			continue
		}
		resolved[name] = spec
	}
	return resolved
}

// canonicalJSON marshals the manifest for hashing. encoding/json already
// sorts map[string]string keys when marshaling, which is what makes this
// serialisation stable for the dependency hash.
func canonicalJSON(m manifest) ([]byte, error) {
	return json.Marshal(m)
}

func sha256sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func bytesEqual(a, b []byte) bool {
	return string(a) == string(b)
}
