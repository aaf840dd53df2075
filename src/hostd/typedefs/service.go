// Package typedefs implements the type-definition acquisition service:
// batched, deduplicated installation of type packages (with an
// automatic @types/* fallback) on behalf of panel language tooling,
// backed by a capacity-bounded LRU and a per-consumer on-disk dependency
// root.
package typedefs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panelforge/hostd/src/common/logs"
)

var log *logs.Logger

// SetLogger sets the logger used by the typedefs package.
func SetLogger(l *logs.Logger) {
	log = l
}

// DefaultDebounce is the fixed, small coalescing window pending installs
// wait out before a flush runs.
const DefaultDebounce = 20 * time.Millisecond

// DefaultLRUCapacity bounds the number of cached packages.
const DefaultLRUCapacity = 100

// Service acquires type definitions for package specifiers on behalf of
// consumers identified by an opaque path (typically a panel's runtime
// directory).
type Service struct {
	RootDir          string
	LocalPrefix      string
	LocalPackagesDir string
	NPMPath          string
	Debounce         time.Duration

	cacheMu sync.Mutex
	cache   *lru

	consumersMu sync.Mutex
	consumers   map[string]*consumerState

	mkdirOnce *coalescer[string, string]
}

// New returns a Service rooted at rootDir, where each consumer's
// installed dependency directory lives.
func New(rootDir string) *Service {
	return &Service{
		RootDir:   rootDir,
		NPMPath:   "npm",
		Debounce:  DefaultDebounce,
		cache:     newLRU(DefaultLRUCapacity),
		consumers: make(map[string]*consumerState),
		mkdirOnce: newCoalescer[string, string](),
	}
}

// GetPackageTypes resolves type definitions for every entry in names on
// behalf of consumerPath, per spec.md §4.7: skip, local, cache, and
// install-on-demand in that order.
func (s *Service) GetPackageTypes(ctx context.Context, consumerPath string, names []string) map[string]PackageResult {
	result := make(map[string]PackageResult, len(names))
	var toFetch []string

	for _, name := range names {
		if isSkippable(name) {
			result[name] = PackageResult{Files: map[string]string{}, Skipped: true}
			continue
		}
		if local, ok := s.resolveLocal(name); ok {
			result[name] = local
			continue
		}
		if cached, ok := s.cacheGet(name); ok {
			result[name] = cached
			continue
		}
		toFetch = append(toFetch, name)
	}

	if len(toFetch) == 0 {
		return result
	}

	cs := s.consumerState(consumerPath)
	waiters := make(map[string]chan PackageResult, len(toFetch))
	for _, name := range toFetch {
		// A package already installed on disk (e.g. from a prior flush for
		// another consumer request) resolves directly without joining the
		// queue, per spec.md §4.7's concurrency note.
		if res, ok := s.loadIfInstalled(cs.dir, name); ok {
			result[name] = res
			continue
		}
		waiters[name] = cs.enqueue(name, s.debounce(), func() { s.flush(ctx, consumerPath) })
	}

	for name, ch := range waiters {
		res := <-ch
		if res.Error == "" && !res.Skipped {
			s.cachePut(name, res)
		}
		result[name] = res
	}

	return result
}

func (s *Service) debounce() time.Duration {
	if s.Debounce > 0 {
		return s.Debounce
	}
	return DefaultDebounce
}

func (s *Service) cacheGet(name string) (PackageResult, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.get(cacheKeyFor(name))
}

func (s *Service) cachePut(name string, value PackageResult) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache.put(cacheKeyFor(name), value)
}

func cacheKeyFor(name string) string {
	return name + "@latest"
}

// loadIfInstalled returns a package's types directly from dir's
// node_modules if it is already present, without triggering install.
func (s *Service) loadIfInstalled(dir, name string) (PackageResult, bool) {
	if dir == "" {
		return PackageResult{}, false
	}
	pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
	files, err := collectTypeFiles(pkgDir)
	if err != nil || len(files) == 0 {
		return PackageResult{}, false
	}
	return PackageResult{
		Files:              files,
		ReferencedPackages: referencedPackages(pkgDir),
		EntryPoint:         pickEntryPoint(files),
	}, true
}

// installAndLoad reifies every name under dir, loads the resulting type
// files, and — for packages that ship no types of their own — queues
// and installs the matching @types/* package as a best-effort follow-up.
func (s *Service) installAndLoad(ctx context.Context, dir string, names map[string]bool) map[string]PackageResult {
	results := make(map[string]PackageResult, len(names))

	installed, err := s.reifyTypePackages(ctx, dir, names)
	if err != nil && len(installed) == 0 {
		for name := range names {
			results[name] = PackageResult{Files: map[string]string{}, Error: err.Error()}
		}
		return results
	}

	needsTypesPackage := make(map[string]bool)
	for name := range names {
		if !installed[name] {
			results[name] = PackageResult{Files: map[string]string{}, Error: "package not found: " + name}
			continue
		}

		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		files, loadErr := collectTypeFiles(pkgDir)
		if loadErr != nil || len(files) == 0 {
			if !hasOwnTypeMarker(pkgDir) {
				needsTypesPackage[name] = true
			}
			results[name] = PackageResult{Files: map[string]string{}}
			continue
		}
		results[name] = PackageResult{
			Files:              files,
			ReferencedPackages: referencedPackages(pkgDir),
			EntryPoint:         pickEntryPoint(files),
		}
	}

	if len(needsTypesPackage) > 0 {
		s.installTypesFallback(ctx, dir, needsTypesPackage, results)
	}

	return results
}

// installTypesFallback installs @types/<name> for every package in
// needing that had no types of its own. Failures here (including 404s,
// the common case for packages with no community types either) are
// non-fatal: the original package's result is left as an empty,
// non-error result (Skipped is not set) rather than propagating the
// @types failure upward.
func (s *Service) installTypesFallback(ctx context.Context, dir string, needing map[string]bool, results map[string]PackageResult) {
	typesNames := make(map[string]bool, len(needing))
	reverse := make(map[string]string, len(needing))
	for name := range needing {
		tn := typesPackageName(name)
		typesNames[tn] = true
		reverse[tn] = name
	}

	installed, _ := s.reifyTypePackages(ctx, dir, typesNames)

	for tn, original := range reverse {
		if !installed[tn] {
			continue
		}
		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(tn))
		files, err := collectTypeFiles(pkgDir)
		if err != nil || len(files) == 0 {
			continue
		}
		results[original] = PackageResult{
			Files:              files,
			ReferencedPackages: referencedPackages(pkgDir),
			EntryPoint:         pickEntryPoint(files),
		}
	}
}

func hasOwnTypeMarker(pkgDir string) bool {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return false
	}
	var meta struct {
		Types   string `json:"types"`
		Typings string `json:"typings"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return false
	}
	return meta.Types != "" || meta.Typings != ""
}

func referencedPackages(pkgDir string) []string {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return nil
	}
	var meta struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	var refs []string
	for dep := range meta.Dependencies {
		refs = append(refs, dep)
	}
	return refs
}

// Invalidate clears the package-result LRU and the consumer directory
// map; in-flight flushes are allowed to drain but new arrivals get a
// fresh consumerState and directory lookup.
func (s *Service) Invalidate() {
	s.cacheMu.Lock()
	s.cache.clear()
	s.cacheMu.Unlock()

	s.consumersMu.Lock()
	s.consumers = make(map[string]*consumerState)
	s.consumersMu.Unlock()

	s.mkdirOnce.reset()
}

// Close releases all per-consumer timers. Safe to call during shutdown;
// does not remove on-disk consumer directories.
func (s *Service) Close() {
	s.consumersMu.Lock()
	defer s.consumersMu.Unlock()
	for _, cs := range s.consumers {
		cs.qmu.Lock()
		if cs.timer != nil {
			cs.timer.Stop()
			cs.timer = nil
		}
		cs.qmu.Unlock()
	}
}
