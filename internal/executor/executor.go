package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/fsutil"
	"github.com/corvid-bio/rookery/internal/marker"
	"github.com/corvid-bio/rookery/internal/pipeline"
)

// Executor schedules and runs one task graph.
type Executor struct {
	graph   *pipeline.Graph
	store   *marker.Store
	invoker Invoker
	budget  int64
}

// New returns an Executor with the given global thread budget.
func New(graph *pipeline.Graph, store *marker.Store, invoker Invoker, maxThreads int) *Executor {
	if maxThreads < 1 {
		maxThreads = 1
	}
	return &Executor{
		graph:   graph,
		store:   store,
		invoker: invoker,
		budget:  int64(maxThreads),
	}
}

// completion carries one finished invocation back to the scheduling loop.
type completion struct {
	task *pipeline.Task
	err  error
}

// Run executes the graph to completion. Tasks whose markers already exist
// are never re-run; among simultaneously ready tasks, dispatch follows
// declaration order. The sum of in-flight thread requests never exceeds the
// budget. A strict task failure cancels the run after in-flight tasks drain.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	states := make(map[string]TaskState, e.graph.Len())
	resumed := 0
	for _, t := range e.graph.Tasks() {
		if e.store.Exists(t.Marker) {
			states[t.ID] = Done
			resumed++
			continue
		}
		states[t.ID] = Pending
	}
	if resumed > 0 {
		logger.Info("Resuming: tasks with existing markers are skipped.", "skipped", resumed, "total", e.graph.Len())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(e.budget)
	done := make(chan completion)
	running := 0

	drain := func() {
		cancel()
		for running > 0 {
			c := <-done
			running--
			if c.err != nil {
				logger.Debug("In-flight task finished during shutdown.", "task", c.task.ID, "error", c.err)
			}
		}
	}

	for {
		// Promote pending tasks whose dependencies are all done.
		for _, t := range e.graph.Tasks() {
			if states[t.ID] != Pending {
				continue
			}
			deps, err := e.graph.Dependencies(t.ID)
			if err != nil {
				drain()
				return err
			}
			ready := true
			for _, dep := range deps {
				if states[dep] != Done {
					ready = false
					break
				}
			}
			if ready {
				states[t.ID] = Ready
			}
		}

		// Dispatch in declaration order while the budget admits it. Stopping
		// at the first task that does not fit keeps dispatch deterministic.
		for _, t := range e.graph.Tasks() {
			if states[t.ID] != Ready {
				continue
			}
			if runCtx.Err() != nil {
				break
			}
			weight := e.clampThreads(ctx, t)
			if !sem.TryAcquire(weight) {
				break
			}
			states[t.ID] = Running
			running++
			logger.Info("Dispatching task.", "task", t.ID, "threads", weight, "policy", t.Policy.String())
			go func(t *pipeline.Task, weight int64) {
				defer sem.Release(weight)
				done <- completion{task: t, err: e.execute(runCtx, t)}
			}(t, weight)
		}

		if running == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			remaining := 0
			for _, t := range e.graph.Tasks() {
				if states[t.ID] != Done {
					remaining++
				}
			}
			if remaining == 0 {
				logger.Info("All tasks completed.")
				return nil
			}
			// Nothing runs and nothing could be dispatched: the graph is
			// wedged. Cycle detection at build time should make this
			// unreachable.
			return fmt.Errorf("scheduler wedged with %d unfinished tasks", remaining)
		}

		c := <-done
		running--
		if c.err != nil {
			states[c.task.ID] = Failed
			logger.Error("Task failed, aborting run.", "task", c.task.ID, "error", c.err)
			drain()
			return fmt.Errorf("execution failed: %w", c.err)
		}
		states[c.task.ID] = Done
	}
}

// clampThreads bounds a task's thread request to the global budget so a
// single oversized request cannot starve forever.
func (e *Executor) clampThreads(ctx context.Context, t *pipeline.Task) int64 {
	weight := int64(t.Threads)
	if weight < 1 {
		weight = 1
	}
	if weight > e.budget {
		ctxlog.FromContext(ctx).Warn("Task requests more threads than the global budget, clamping.",
			"task", t.ID, "requested", t.Threads, "budget", e.budget)
		weight = e.budget
	}
	return weight
}

// execute runs one task and applies its failure policy to the result.
func (e *Executor) execute(ctx context.Context, t *pipeline.Task) error {
	logger := ctxlog.FromContext(ctx).With("task", t.ID)

	result := e.invoker.Invoke(ctx, t)
	if !result.Failed() {
		logger.Info("Task completed.")
		return e.finalize(t)
	}

	if t.Policy == pipeline.SoftFail {
		// The failure is absorbed: downstream consumers see an empty result
		// behind a valid marker.
		logger.Warn("Tool failed; continuing under soft-fail policy.",
			"exit_code", result.ExitCode, "stderr", result.StderrPath, "error", result.Err)
		return e.finalize(t)
	}

	return &ToolFailureError{TaskID: t.ID, ExitCode: result.ExitCode, StderrPath: result.StderrPath}
}

// finalize guarantees the task's declared output directories exist and
// writes its completion marker.
func (e *Executor) finalize(t *pipeline.Task) error {
	for _, dir := range t.OutputDirs {
		if err := fsutil.EnsureDir(e.store.Resolve(dir)); err != nil {
			return fmt.Errorf("task '%s': %w", t.ID, err)
		}
	}
	if err := e.store.Write(t.Marker); err != nil {
		return fmt.Errorf("task '%s': %w", t.ID, err)
	}
	return nil
}
