package typedefs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// consumerDirNamespace salts the deterministic per-consumer directory
// hash so it does not collide with UUIDs minted elsewhere in the
// process.
var consumerDirNamespace = uuid.MustParse("6f6e8c9e-6d9b-4b6a-9b7d-6b6a2f1d9a31")

// consumerDirName derives a stable, filesystem-safe directory name from
// a consumer path. Deterministic: the same path always maps to the same
// name, so directory creation is idempotent across restarts.
func consumerDirName(consumerPath string) string {
	return uuid.NewSHA1(consumerDirNamespace, []byte(consumerPath)).String()
}

type pendingName struct {
	resultCh chan PackageResult
}

// consumerState holds the mutable, per-consumer bookkeeping: the
// directory, the debounced pending-name queue, and the flush mutex that
// enforces "at most one flush per consumer at a time".
type consumerState struct {
	dir string

	qmu     sync.Mutex
	pending map[string]*pendingName
	timer   *time.Timer

	flushMu sync.Mutex
}

// consumerState returns (creating if necessary) the state for
// consumerPath. Directory creation is serialised via mkdirOnce so
// concurrent first-arrivals for the same consumer cannot race on mkdir.
func (s *Service) consumerState(consumerPath string) *consumerState {
	s.consumersMu.Lock()
	cs, ok := s.consumers[consumerPath]
	if ok {
		s.consumersMu.Unlock()
		return cs
	}
	cs = &consumerState{pending: make(map[string]*pendingName)}
	s.consumers[consumerPath] = cs
	s.consumersMu.Unlock()

	dir, _ := s.mkdirOnce.Do(consumerPath, func() (string, error) {
		dir := filepath.Join(s.RootDir, consumerDirName(consumerPath))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		return dir, nil
	})
	cs.dir = dir
	return cs
}

// enqueue registers name as pending for this consumer and arms the
// debounce timer on first arrival. A name already pending shares the
// existing waiter channel rather than being enqueued twice.
func (cs *consumerState) enqueue(name string, debounce time.Duration, flush func()) chan PackageResult {
	cs.qmu.Lock()
	defer cs.qmu.Unlock()

	if pn, ok := cs.pending[name]; ok {
		return pn.resultCh
	}

	pn := &pendingName{resultCh: make(chan PackageResult, 1)}
	cs.pending[name] = pn

	if cs.timer == nil {
		cs.timer = time.AfterFunc(debounce, flush)
	}

	return pn.resultCh
}

// snapshotAndClear takes the current pending queue and resets it,
// disarming the timer so a later enqueue rearms it fresh.
func (cs *consumerState) snapshotAndClear() map[string]*pendingName {
	cs.qmu.Lock()
	defer cs.qmu.Unlock()
	snapshot := cs.pending
	cs.pending = make(map[string]*pendingName)
	cs.timer = nil
	return snapshot
}

// flush drains the consumer's pending queue through install+load,
// delivering each name's result to its waiters. It holds flushMu for
// its duration, which is what makes a concurrently-triggered flush wait
// for this one to drain before starting its own pass.
func (s *Service) flush(ctx context.Context, consumerPath string) {
	cs := s.consumerState(consumerPath)
	cs.flushMu.Lock()
	defer cs.flushMu.Unlock()

	snapshot := cs.snapshotAndClear()
	if len(snapshot) == 0 {
		return
	}

	names := make(map[string]bool, len(snapshot))
	for name := range snapshot {
		names[name] = true
	}

	results := s.installAndLoad(ctx, cs.dir, names)

	for name, pn := range snapshot {
		res, ok := results[name]
		if !ok {
			res = PackageResult{Files: map[string]string{}, Error: "package not found: " + name}
		}
		pn.resultCh <- res
	}
}
