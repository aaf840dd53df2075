package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// BundleTarget selects the bundler's platform/format profile.
type BundleTarget string

const (
	// TargetPanel bundles for a browser ES2022 ESM target with inline
	// source maps.
	TargetPanel BundleTarget = "panel"
	// TargetWorker bundles for a Node-like ES2022 ESM target without
	// source maps.
	TargetWorker BundleTarget = "worker"
)

// BundleOptions configures a single bundler invocation.
type BundleOptions struct {
	EntryPoint string
	OutDir     string
	Target     BundleTarget
	Externals  []string

	// FsStubModule, when non-empty, is aliased in place of both "fs" and
	// "fs/promises": panel sources that import Node's fs module (common in
	// code shared with a worker build) resolve to this stub instead of
	// failing to bundle for a browser target.
	FsStubModule string

	// DedupeModules aliases an import specifier to a single resolved
	// on-disk module path, so every source that imports it (the panel
	// entry, the framework-mount wrapper, any nested dependency) shares
	// one copy instead of bundling a duplicate per resolution root.
	DedupeModules map[string]string
}

// BundleResult carries the emitted artifact paths.
type BundleResult struct {
	BundlePath string
	CSSPath    string // empty if no CSS was emitted
	Log        string
}

// Executor runs a bundler as a subprocess, the way the dependency
// installer shells to npm and the git provisioner shells to git: no
// bundler library is vendored, the actual toolchain binary is invoked.
type Executor interface {
	Bundle(ctx context.Context, opts BundleOptions) (BundleResult, error)
	IsAvailable() bool
}

// ESBuildExecutor shells out to the esbuild CLI.
type ESBuildExecutor struct {
	// BinaryPath overrides the resolved "esbuild" executable, for testing.
	BinaryPath string
}

// NewExecutor returns the default Executor (esbuild).
func NewExecutor() Executor {
	return &ESBuildExecutor{BinaryPath: "esbuild"}
}

func (e *ESBuildExecutor) IsAvailable() bool {
	bin := e.BinaryPath
	if bin == "" {
		bin = "esbuild"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

func (e *ESBuildExecutor) Bundle(ctx context.Context, opts BundleOptions) (BundleResult, error) {
	bin := e.BinaryPath
	if bin == "" {
		bin = "esbuild"
	}

	args := []string{
		opts.EntryPoint,
		"--bundle",
		"--format=esm",
		"--outdir=" + opts.OutDir,
	}

	switch opts.Target {
	case TargetPanel:
		args = append(args, "--target=es2022", "--sourcemap=inline", "--platform=browser")
	case TargetWorker:
		args = append(args, "--target=es2022", "--platform=node")
	default:
		return BundleResult{}, fmt.Errorf("unknown bundle target: %q", opts.Target)
	}

	for _, ext := range opts.Externals {
		args = append(args, "--external:"+ext)
	}

	if opts.FsStubModule != "" {
		args = append(args, "--alias:fs="+opts.FsStubModule, "--alias:fs/promises="+opts.FsStubModule)
	}
	for specifier, resolved := range opts.DedupeModules {
		args = append(args, "--alias:"+specifier+"="+resolved)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return BundleResult{Log: stderr.String()}, fmt.Errorf("esbuild failed: %w: %s", err, stderr.String())
	}

	result := BundleResult{
		BundlePath: bundleOutputPath(opts),
		Log:        stdout.String() + stderr.String(),
	}
	cssPath := opts.OutDir + "/" + entryBaseName(opts.EntryPoint) + ".css"
	if _, err := os.Stat(cssPath); err == nil {
		result.CSSPath = cssPath
	}
	return result, nil
}

func bundleOutputPath(opts BundleOptions) string {
	return opts.OutDir + "/" + entryBaseName(opts.EntryPoint) + ".js"
}

func entryBaseName(entry string) string {
	base := entry
	for i := len(entry) - 1; i >= 0; i-- {
		if entry[i] == '/' {
			base = entry[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
