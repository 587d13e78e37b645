package pipeline

import (
	"context"
	"fmt"

	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/dag"
	"github.com/corvid-bio/rookery/internal/fsutil"
	"github.com/corvid-bio/rookery/internal/marker"
)

// Graph is a validated task graph: tasks in declaration order plus the
// dependency topology derived from their input/output contracts.
type Graph struct {
	tasks []*Task
	byID  map[string]*Task
	dag   *dag.Graph
}

// Tasks returns the graph's tasks in declaration order.
func (g *Graph) Tasks() []*Task { return g.tasks }

// Task returns the task with the given ID, or nil.
func (g *Graph) Task(id string) *Task { return g.byID[id] }

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Dependencies returns the IDs of the tasks the given task depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	return g.dag.Dependencies(id)
}

// Dependents returns the IDs of the tasks depending on the given task.
func (g *Graph) Dependents(id string) ([]string, error) {
	return g.dag.Dependents(id)
}

// Build constructs a validated Graph from branch-selected tasks.
//
// Edge derivation: an input that exactly matches another task's declared
// output (or marker) becomes a dependency edge. Anything else must exist on
// disk as a raw file, otherwise the build fails with UnresolvedInputError.
// Two tasks declaring the same output is a DuplicateOutputError; a cyclic
// topology surfaces the dag package's CycleError.
func Build(ctx context.Context, tasks []*Task, store *marker.Store) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.", "task_count", len(tasks))

	// First pass: index producers, rejecting contested outputs.
	producers := make(map[string]string)
	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id '%s'", t.ID)
		}
		byID[t.ID] = t
		declared := append(append([]string{}, t.Outputs...), t.Marker)
		for _, out := range declared {
			if out == "" {
				continue
			}
			if first, taken := producers[out]; taken {
				return nil, &DuplicateOutputError{Output: out, FirstTask: first, SecondTask: t.ID}
			}
			producers[out] = t.ID
		}
	}

	// Second pass: nodes in declaration order, then edges from input matching.
	g := dag.New()
	for _, t := range tasks {
		g.AddNode(t.ID)
	}
	for _, t := range tasks {
		for _, input := range t.Inputs {
			if producerID, ok := producers[input]; ok {
				if producerID == t.ID {
					return nil, fmt.Errorf("task '%s' lists its own output '%s' as input", t.ID, input)
				}
				if err := g.AddEdge(producerID, t.ID); err != nil {
					return nil, fmt.Errorf("linking '%s' -> '%s': %w", producerID, t.ID, err)
				}
				continue
			}
			if !fsutil.Exists(store.Resolve(input)) {
				return nil, &UnresolvedInputError{TaskID: t.ID, Input: input}
			}
		}
	}
	logger.Debug("Build: node linking complete.")

	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("validating dependency graph: %w", err)
	}
	logger.Debug("Build: graph construction successful.")

	return &Graph{tasks: tasks, byID: byID, dag: g}, nil
}
