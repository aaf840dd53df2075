// Package gitprovision resolves panel source versions against a local git
// repository and materialises disposable working copies at an exact
// commit for the build pipeline to read from.
package gitprovision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/panelforge/hostd/src/common/logs"
)

var log *logs.Logger

// SetLogger sets the logger used by the gitprovision package.
func SetLogger(l *logs.Logger) {
	log = l
}

// ProgressFunc reports provisioning phase transitions to the caller. It is
// optional and advisory.
type ProgressFunc func(phase string)

// ProvisionedSource is a disposable working copy materialised at an exact
// commit. SourcePath is readable until Cleanup is invoked; Cleanup is
// always safe to call more than once and never returns an error.
type ProvisionedSource struct {
	SourcePath string
	Commit     string
	Cleanup    func()
}

// ResolveTargetCommit resolves a version spec (a branch, tag, or commit-ish;
// empty means HEAD) against a local git repository at root to an exact
// commit SHA, without checking anything out. ok is false, with a nil
// error, when the spec does not resolve to a known commit — this is the
// expected "no hit" case for early cache lookup, not a failure.
func ResolveTargetCommit(ctx context.Context, root, version string) (commit string, ok bool, err error) {
	ref := version
	if ref == "" {
		ref = "HEAD"
	}

	out, err := runGit(ctx, root, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		if isUnknownRevision(err) {
			return "", false, nil
		}
		return "", false, hosterrors.ErrVersionUnresolvable.WithCause(err)
	}

	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", false, nil
	}
	return sha, true, nil
}

// ProvisionPanelVersion resolves version to an exact commit, archives
// that immutable commit's whole tree into a fresh temporary directory,
// and reports source's path inside it as SourcePath. Because the archived commit is resolved to an immutable SHA
// before materialisation, the reported commit always matches the
// materialised tree regardless of concurrent upstream ref movement.
func ProvisionPanelVersion(ctx context.Context, root, source, version string, progress ProgressFunc) (*ProvisionedSource, error) {
	if progress != nil {
		progress("cloning")
	}

	commit, ok, err := ResolveTargetCommit(ctx, root, version)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, hosterrors.ErrVersionUnresolvable.WithMessagef("version %q not found in %s", version, root)
	}

	tempDir, err := os.MkdirTemp("", "hostd-panel-*")
	if err != nil {
		return nil, hosterrors.ErrProvisionFailed.WithCause(err)
	}

	if err := archiveCommit(ctx, root, commit, tempDir); err != nil {
		os.RemoveAll(tempDir)
		return nil, hosterrors.ErrProvisionFailed.WithCause(err)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if err := os.RemoveAll(tempDir); err != nil && log != nil {
				log.Warn("failed to remove provisioned working copy", "path", tempDir, "error", err)
			}
		})
	}

	return &ProvisionedSource{
		SourcePath: filepath.Join(tempDir, source),
		Commit:     commit,
		Cleanup:    cleanup,
	}, nil
}

// archiveCommit extracts the tree of commit into destDir via `git archive`
// piped directly into `tar -x`, avoiding an intermediate archive file on
// disk for what is, by construction, a throwaway working copy.
func archiveCommit(ctx context.Context, root, commit, destDir string) error {
	archiveCmd := exec.CommandContext(ctx, "git", "-C", root, "archive", commit)
	extractCmd := exec.CommandContext(ctx, "tar", "-x", "-C", destDir)

	pipe, err := archiveCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open archive pipe: %w", err)
	}
	extractCmd.Stdin = pipe

	var archiveStderr, extractStderr bytes.Buffer
	archiveCmd.Stderr = &archiveStderr
	extractCmd.Stderr = &extractStderr

	if err := extractCmd.Start(); err != nil {
		return fmt.Errorf("start tar extract: %w", err)
	}
	if err := archiveCmd.Run(); err != nil {
		extractCmd.Wait()
		return fmt.Errorf("git archive failed: %w: %s", err, archiveStderr.String())
	}
	if err := extractCmd.Wait(); err != nil {
		return fmt.Errorf("tar extract failed: %w: %s", err, extractStderr.String())
	}
	return nil
}

func runGit(ctx context.Context, root string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", root}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

func isUnknownRevision(err error) bool {
	return strings.Contains(err.Error(), "unknown revision") ||
		strings.Contains(err.Error(), "fatal: ambiguous argument") ||
		strings.Contains(err.Error(), "Needed a single revision")
}
