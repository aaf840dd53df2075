package build

import (
	"context"
	"fmt"

	"github.com/panelforge/hostd/src/hostd/tree"
)

// Job describes one build request for a panel or worker snapshot.
type Job struct {
	WorkspaceID string
	PanelID     string
	Root        string
	SourcePath  string
	Version     string
	Kind        Kind
}

// Manager owns the build job queue, dispatches it to a fixed pool of
// workers, and writes build outcomes back into the tree store's
// in-memory runtime side table.
type Manager struct {
	store    *tree.Store
	pipeline *Pipeline
	jobChan  chan Job
}

// NewManager returns a Manager backed by the given tree store and
// pipeline. Start must be called to spin up worker goroutines.
func NewManager(store *tree.Store, pipeline *Pipeline, queueDepth int) *Manager {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Manager{
		store:    store,
		pipeline: pipeline,
		jobChan:  make(chan Job, queueDepth),
	}
}

// Start launches n worker goroutines that run until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w := &worker{id: i, manager: m}
		go w.run(ctx)
	}
}

// Enqueue submits a job for processing. It blocks if the queue is full.
func (m *Manager) Enqueue(job Job) {
	m.jobChan <- job
}

type worker struct {
	id      int
	manager *Manager
}

func (w *worker) run(ctx context.Context) {
	if log != nil {
		log.Debug("build worker started", "worker_id", w.id)
	}
	defer func() {
		if log != nil {
			log.Debug("build worker stopped", "worker_id", w.id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.manager.jobChan:
			if !ok {
				return
			}
			w.processJob(ctx, job)
		}
	}
}

// processJob drives one job through the pipeline, recovering from any
// panic so the worker goroutine survives and the panel is left in an
// "error" runtime state instead of hanging forever.
func (w *worker) processJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Error("build worker recovered from panic",
					"worker_id", w.id, "panel_id", job.PanelID, "panic", fmt.Sprintf("%v", r))
			}
			w.setRuntimeState(job.PanelID, tree.RuntimeState{
				BuildState: "error",
				BuildError: fmt.Sprintf("internal error (panic): %v", r),
			})
		}
	}()

	if log != nil {
		log.Info("processing build job", "worker_id", w.id, "panel_id", job.PanelID, "kind", job.Kind)
	}

	w.setRuntimeState(job.PanelID, tree.RuntimeState{BuildState: "pending"})

	progress := func(state string) {
		rs := tree.RuntimeState{BuildState: state}
		w.setRuntimeState(job.PanelID, rs)
	}

	var result Result
	switch job.Kind {
	case KindWorker:
		result = w.manager.pipeline.BuildWorker(ctx, job.Root, job.SourcePath, job.Version, progress)
	default:
		result = w.manager.pipeline.BuildPanel(ctx, job.Root, job.SourcePath, job.Version, progress)
	}

	if !result.Success {
		w.setRuntimeState(job.PanelID, tree.RuntimeState{BuildState: "error", BuildError: result.Error})
		return
	}

	w.setRuntimeState(job.PanelID, tree.RuntimeState{BuildState: "ready", BuildProgress: 100})
}

func (w *worker) setRuntimeState(panelID string, rs tree.RuntimeState) {
	w.manager.store.SetRuntimeState(panelID, rs)
}
