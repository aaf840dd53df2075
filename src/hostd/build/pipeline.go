// Package build implements the panel build pipeline: provisioning a
// versioned source tree, installing its dependencies, bundling it, and
// caching the result under the (kind, absolute source, commit) key the
// artifact cache expects.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
	"github.com/panelforge/hostd/src/common/logs"
	"github.com/panelforge/hostd/src/hostd/artifactcache"
	"github.com/panelforge/hostd/src/hostd/depinstall"
	"github.com/panelforge/hostd/src/hostd/gitprovision"
)

var log *logs.Logger

// SetLogger sets the logger used by the build package.
func SetLogger(l *logs.Logger) {
	log = l
}

// Size caps from spec.md §8.
const (
	maxBundleBytes = 50 * 1024 * 1024
	maxHTMLBytes   = 10 * 1024 * 1024
	maxCSSBytes    = 10 * 1024 * 1024
)

// frameworkIntegrationPackage is the view-framework integration package
// whose presence triggers auto-mount wrapper synthesis and peer
// framework dependency injection.
const frameworkIntegrationPackage = "@panelforge/runtime-mount"

// implicitExternals maps a detected manifest dependency to a CDN ESM URL
// excluded from the bundle and declared in the emitted import map.
var implicitExternals = map[string]string{
	"isomorphic-git": "https://esm.sh/isomorphic-git@1",
}

// frameworkPeerDependencies is the declared peer-dependency set merged in
// when the manifest depends on the framework-integration package.
var frameworkPeerDependencies = map[string]string{
	"react":     "^18.0.0",
	"react-dom": "^18.0.0",
}

// Kind distinguishes panels from workers for cache-key namespacing and
// bundler target selection.
type Kind string

const (
	KindPanel  Kind = "panel"
	KindWorker Kind = "worker"
)

// ProgressFunc reports build state transitions. It is optional and
// advisory.
type ProgressFunc func(state string)

// Result is the outcome of a build.
type Result struct {
	Success  bool      `json:"success"`
	Bundle   string    `json:"bundle,omitempty"`
	HTML     string    `json:"html,omitempty"` // empty for workers
	CSS      string    `json:"css,omitempty"`  // empty when no stylesheet was emitted
	Manifest *Manifest `json:"manifest,omitempty"`
	BuildLog string    `json:"buildLog,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Pipeline wires the provisioner, dependency installer, artifact cache,
// and bundler executor together to implement buildPanel/buildWorker.
type Pipeline struct {
	Cache     *artifactcache.Cache
	Installer *depinstall.Installer
	Executor  Executor
	DevCache  bool
}

// NewPipeline returns a Pipeline with the default esbuild executor.
func NewPipeline(cache *artifactcache.Cache, installer *depinstall.Installer) *Pipeline {
	return &Pipeline{
		Cache:     cache,
		Installer: installer,
		Executor:  NewExecutor(),
	}
}

// BuildPanel builds a browser-targeted panel bundle plus its HTML shell.
func (p *Pipeline) BuildPanel(ctx context.Context, root, sourcePath, version string, progress ProgressFunc) Result {
	return p.build(ctx, KindPanel, root, sourcePath, version, progress)
}

// BuildWorker builds a Node-like worker bundle with no HTML shell.
func (p *Pipeline) BuildWorker(ctx context.Context, root, sourcePath, version string, progress ProgressFunc) Result {
	return p.build(ctx, KindWorker, root, sourcePath, version, progress)
}

type buildLog struct {
	lines []string
}

func (b *buildLog) Printf(format string, args ...interface{}) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *buildLog) String() string {
	return strings.Join(b.lines, "\n")
}

func emit(progress ProgressFunc, state string) {
	if progress != nil {
		progress(state)
	}
}

// build implements the twelve-step algorithm from spec.md §4.2.
func (p *Pipeline) build(ctx context.Context, kind Kind, root, sourcePath, version string, progress ProgressFunc) Result {
	blog := &buildLog{}
	emit(progress, "pending")

	absSource, err := filepath.Abs(filepath.Join(root, sourcePath))
	if err != nil {
		return fail(blog, hosterrors.ErrSourceNotFound.WithCause(err))
	}

	// Step 1: early commit resolution and cache lookup, without checking
	// anything out.
	commit, resolved, err := gitprovision.ResolveTargetCommit(ctx, root, version)
	if err != nil {
		blog.Printf("commit resolution failed: %v", err)
	}
	if resolved {
		key := cacheKey(kind, absSource, commit)
		if value, hit, err := p.cacheGet(ctx, key); err == nil && hit {
			var cached Result
			if err := json.Unmarshal([]byte(value), &cached); err == nil {
				blog.Printf("cache hit for %s", key)
				emit(progress, "ready")
				cached.BuildLog = blog.String()
				return cached
			}
			blog.Printf("corrupted cache entry for %s, ignoring", key)
		}
	}

	// Step 2: provision a disposable working copy at the target commit.
	emit(progress, "cloning")
	provisioned, err := gitprovision.ProvisionPanelVersion(ctx, root, sourcePath, version, func(phase string) { blog.Printf("provision: %s", phase) })
	if err != nil {
		return fail(blog, err)
	}
	defer safeCleanup(provisioned.Cleanup)

	// Post-checkout cache re-check: the early resolution above may have
	// missed (unresolved ref) or raced an upstream move; the commit the
	// provisioner actually materialised is authoritative, so check once
	// more before doing any bundling work.
	postCheckoutKey := cacheKey(kind, absSource, provisioned.Commit)
	if value, hit, err := p.cacheGet(ctx, postCheckoutKey); err == nil && hit {
		var cached Result
		if err := json.Unmarshal([]byte(value), &cached); err == nil {
			blog.Printf("post-checkout cache hit for %s", postCheckoutKey)
			emit(progress, "ready")
			cached.BuildLog = blog.String()
			return cached
		}
		blog.Printf("corrupted cache entry for %s, ignoring", postCheckoutKey)
	}

	emit(progress, "building")
	result := p.buildFromProvisioned(ctx, kind, provisioned.SourcePath, absSource, provisioned.Commit, blog)
	if !result.Success {
		emit(progress, "error")
		result.BuildLog = blog.String()
		return result
	}

	// Step 11: cache the successful result.
	encoded, err := json.Marshal(result)
	if err == nil {
		key := cacheKey(kind, absSource, provisioned.Commit)
		if err := p.cacheSet(ctx, key, string(encoded)); err != nil {
			blog.Printf("cache store failed for %s: %v", key, err)
		}
	}

	emit(progress, "ready")
	result.BuildLog = blog.String()
	return result
}

func (p *Pipeline) buildFromProvisioned(ctx context.Context, kind Kind, sourceDir, absSource, commit string, blog *buildLog) Result {
	if _, err := os.Stat(sourceDir); err != nil {
		return fail(blog, hosterrors.ErrSourceNotFound.WithCause(err))
	}

	// Step 3: manifest load.
	manifest, err := loadManifest(sourceDir)
	if err != nil {
		return fail(blog, err)
	}

	// Step 4: dependency prep. The installer is handed the hash it computed
	// last time for this (source, commit) so it can skip reification when
	// the dependency set hasn't changed; the hash it returns replaces the
	// cached one either way.
	effectiveDeps := mergeDependencies(manifest)
	runtimeDir := filepath.Join(sourceDir, ".hostd-runtime")
	if p.Installer != nil {
		depsKey := depsHashKey(absSource, commit)
		previousHash, _, err := p.cacheGet(ctx, depsKey)
		if err != nil {
			blog.Printf("deps hash cache lookup failed for %s: %v", depsKey, err)
		}
		newHash, err := p.Installer.Install(ctx, runtimeDir, effectiveDeps, previousHash)
		if err != nil {
			return fail(blog, err)
		}
		if newHash != "" {
			if err := p.cacheSet(ctx, depsKey, newHash); err != nil {
				blog.Printf("deps hash cache store failed for %s: %v", depsKey, err)
			}
		}
	}

	// Step 5: entry resolution.
	entry, err := resolveEntry(sourceDir, manifest)
	if err != nil {
		return fail(blog, err)
	}

	// Step 6: wrapper synthesis.
	hasFramework := dependsOn(manifest, frameworkIntegrationPackage)
	wrapperPath, err := synthesizeWrapper(runtimeDir, entry, hasFramework)
	if err != nil {
		return fail(blog, hosterrors.ErrBundleFailed.WithCause(err))
	}

	// Step 7: external resolution.
	externals := resolveExternals(manifest)

	// Step 8: HTML generation (panels only).
	var html string
	if kind == KindPanel {
		html, err = generateHTML(sourceDir, externals)
		if err != nil {
			return fail(blog, hosterrors.ErrBundleFailed.WithCause(err))
		}
	}

	// Step 9: bundle. The fs/fs-promises redirect and the framework-dedup
	// alias are esbuild CLI flags (--alias), not a JS plugin host: there is
	// no embedded Node/esbuild-API runtime here to host a real plugin
	// (DESIGN.md: Build Pipeline), so both are expressed as alias targets
	// instead.
	target := TargetPanel
	if kind == KindWorker {
		target = TargetWorker
	}
	outDir := filepath.Join(runtimeDir, "dist")
	fsStub, err := writeFsStubModule(runtimeDir)
	if err != nil {
		return fail(blog, hosterrors.ErrBundleFailed.WithCause(err))
	}
	bundleOpts := BundleOptions{
		EntryPoint:   wrapperPath,
		OutDir:       outDir,
		Target:       target,
		Externals:    externalSpecifiers(externals),
		FsStubModule: fsStub,
	}
	if hasFramework {
		bundleOpts.DedupeModules = frameworkDedupeAliases(runtimeDir)
	}
	bundleResult, err := p.Executor.Bundle(ctx, bundleOpts)
	if err != nil {
		blog.Printf("%s", bundleResult.Log)
		return fail(blog, hosterrors.ErrBundleFailed.WithCause(err))
	}

	bundleBytes, err := os.ReadFile(bundleResult.BundlePath)
	if err != nil {
		return fail(blog, hosterrors.ErrBundleFailed.WithCause(err))
	}

	// Step 10: size gates.
	if len(bundleBytes) > maxBundleBytes {
		return fail(blog, hosterrors.ErrSizeCapExceeded.WithMessagef("bundle %d bytes exceeds cap", len(bundleBytes)))
	}
	if len(html) > maxHTMLBytes {
		return fail(blog, hosterrors.ErrSizeCapExceeded.WithMessagef("html %d bytes exceeds cap", len(html)))
	}

	var css string
	if bundleResult.CSSPath != "" {
		cssBytes, err := os.ReadFile(bundleResult.CSSPath)
		if err == nil {
			if len(cssBytes) > maxCSSBytes {
				return fail(blog, hosterrors.ErrSizeCapExceeded.WithMessagef("css %d bytes exceeds cap", len(cssBytes)))
			}
			css = string(cssBytes)
		}
	}

	return Result{
		Success:  true,
		Bundle:   string(bundleBytes),
		HTML:     html,
		CSS:      css,
		Manifest: manifest,
	}
}

func fail(blog *buildLog, err error) Result {
	blog.Printf("build failed: %v", err)
	return Result{Success: false, Error: err.Error(), BuildLog: blog.String()}
}

func safeCleanup(cleanup func()) {
	defer func() { recover() }()
	cleanup()
}

// mergeDependencies implements step 4's merge: manifest deps plus the
// framework's declared peer dependencies when the integration package is
// referenced.
func mergeDependencies(manifest *Manifest) map[string]string {
	merged := make(map[string]string, len(manifest.Dependencies))
	for k, v := range manifest.Dependencies {
		merged[k] = v
	}
	if dependsOn(manifest, frameworkIntegrationPackage) {
		for k, v := range frameworkPeerDependencies {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}
	return merged
}

func dependsOn(manifest *Manifest, pkg string) bool {
	_, ok := manifest.Dependencies[pkg]
	return ok
}

func resolveExternals(manifest *Manifest) map[string]string {
	externals := make(map[string]string, len(manifest.Externals))
	for k, v := range manifest.Externals {
		externals[k] = v
	}
	for dep := range manifest.Dependencies {
		if url, ok := implicitExternals[dep]; ok {
			if _, exists := externals[dep]; !exists {
				externals[dep] = url
			}
		}
	}
	return externals
}

func externalSpecifiers(externals map[string]string) []string {
	specifiers := make([]string, 0, len(externals))
	for spec := range externals {
		specifiers = append(specifiers, spec)
	}
	return specifiers
}

// synthesizeWrapper writes a small synthetic entry file that either
// auto-mounts the user entry (when the framework integration package is
// present) or imports it directly. The wrapper's content depends only on
// (hasFramework, relativeUserEntry), so it is deterministic and lives
// outside the cache key's inputs.
func synthesizeWrapper(runtimeDir, relativeEntry string, hasFramework bool) (string, error) {
	if err := os.MkdirAll(runtimeDir, 0755); err != nil {
		return "", err
	}
	wrapperPath := filepath.Join(runtimeDir, "__entry.js")

	var content string
	if hasFramework {
		content = fmt.Sprintf("import { mount } from %q;\nimport userEntry from %q;\nmount(userEntry);\n",
			frameworkIntegrationPackage, "../"+relativeEntry)
	} else {
		content = fmt.Sprintf("import %q;\n", "../"+relativeEntry)
	}

	if err := os.WriteFile(wrapperPath, []byte(content), 0644); err != nil {
		return "", err
	}
	return wrapperPath, nil
}

// fsStubModuleContents is a browser-safe stand-in for Node's "fs" and
// "fs/promises" modules: every property resolves to a function that
// throws when called instead of silently returning undefined, so a panel that actually depends on filesystem
// access fails loudly at call time rather than bundling cleanly and
// misbehaving at runtime.
const fsStubModuleContents = `const unsupported = () => {
	throw new Error("fs is not available in the panel runtime");
};
export default new Proxy({}, { get: () => unsupported });
`

// writeFsStubModule writes the virtual fs/fs-promises redirect target
// into runtimeDir, returning its path for use as BundleOptions.FsStubModule.
func writeFsStubModule(runtimeDir string) (string, error) {
	if err := os.MkdirAll(runtimeDir, 0755); err != nil {
		return "", err
	}
	stubPath := filepath.Join(runtimeDir, "__fs_stub.js")
	if err := os.WriteFile(stubPath, []byte(fsStubModuleContents), 0644); err != nil {
		return "", err
	}
	return stubPath, nil
}

// frameworkDedupeAliases points the framework's peer dependencies at the
// single copy installed into runtimeDir's node_modules, so the wrapper's
// own import and any nested dependency on the same package resolve to one
// module instance instead of two.
func frameworkDedupeAliases(runtimeDir string) map[string]string {
	aliases := make(map[string]string, len(frameworkPeerDependencies))
	for pkg := range frameworkPeerDependencies {
		aliases[pkg] = filepath.Join(runtimeDir, "node_modules", pkg)
	}
	return aliases
}

// cacheKey builds the artifact cache key described in spec.md §4.5:
// <kind>:<canonical absolute source path>:<commit>.
func cacheKey(kind Kind, absSource, commit string) string {
	return fmt.Sprintf("%s:%s:%s", kind, absSource, commit)
}

// depsHashKey builds the dependency-hash cache key described in spec.md
// §4.5: deps:<canonical absolute source path>:<commit>. It stores the
// installer's manifest hash so the next build against the same (source,
// commit) can skip reinstalling when nothing has changed.
func depsHashKey(absSource, commit string) string {
	return fmt.Sprintf("deps:%s:%s", absSource, commit)
}

func (p *Pipeline) cacheGet(ctx context.Context, key string) (string, bool, error) {
	if p.Cache == nil {
		return "", false, nil
	}
	return p.Cache.Get(ctx, key)
}

func (p *Pipeline) cacheSet(ctx context.Context, key, value string) error {
	if p.Cache == nil {
		return nil
	}
	return p.Cache.Set(ctx, key, value)
}
