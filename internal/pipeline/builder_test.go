package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-bio/rookery/internal/dag"
	"github.com/corvid-bio/rookery/internal/marker"
)

func testStore(t *testing.T) *marker.Store {
	t.Helper()
	return marker.NewStore(t.TempDir())
}

func rawFile(t *testing.T, store *marker.Store, rel string) string {
	t.Helper()
	full := store.Resolve(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	return rel
}

func simpleTask(id string, inputs, outputs []string) *Task {
	return &Task{
		ID:      id,
		Inputs:  inputs,
		Outputs: outputs,
		Marker:  "markers/" + id + ".done",
		Threads: 1,
	}
}

func TestBuildDerivesEdgesFromOutputs(t *testing.T) {
	store := testStore(t)
	raw := rawFile(t, store, "assembly.fasta")

	a := simpleTask("coverage", []string{raw}, []string{"coverage.tsv"})
	b := simpleTask("binner", []string{raw, "coverage.tsv"}, []string{"bins"})
	c := simpleTask("convert", []string{"bins"}, []string{"c2b.tsv"})

	g, err := Build(context.Background(), []*Task{a, b, c}, store)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	deps, err := g.Dependencies("binner")
	require.NoError(t, err)
	assert.Equal(t, []string{"coverage"}, deps)

	deps, err = g.Dependencies("convert")
	require.NoError(t, err)
	assert.Equal(t, []string{"binner"}, deps)

	dependents, err := g.Dependents("coverage")
	require.NoError(t, err)
	assert.Equal(t, []string{"binner"}, dependents)
}

func TestBuildPreservesDeclarationOrder(t *testing.T) {
	store := testStore(t)
	raw := rawFile(t, store, "in.txt")

	tasks := []*Task{
		simpleTask("z", []string{raw}, []string{"z.out"}),
		simpleTask("a", []string{raw}, []string{"a.out"}),
		simpleTask("m", []string{raw}, []string{"m.out"}),
	}
	g, err := Build(context.Background(), tasks, store)
	require.NoError(t, err)

	var ids []string
	for _, task := range g.Tasks() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)
}

func TestBuildUnresolvedInput(t *testing.T) {
	store := testStore(t)

	a := simpleTask("lonely", []string{"never-produced.tsv"}, []string{"out"})
	_, err := Build(context.Background(), []*Task{a}, store)

	var unresolved *UnresolvedInputError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "lonely", unresolved.TaskID)
	assert.Equal(t, "never-produced.tsv", unresolved.Input)
}

func TestBuildDuplicateOutput(t *testing.T) {
	store := testStore(t)
	raw := rawFile(t, store, "in.txt")

	a := simpleTask("first", []string{raw}, []string{"shared.tsv"})
	b := simpleTask("second", []string{raw}, []string{"shared.tsv"})
	_, err := Build(context.Background(), []*Task{a, b}, store)

	var dup *DuplicateOutputError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "shared.tsv", dup.Output)
	assert.Equal(t, "first", dup.FirstTask)
	assert.Equal(t, "second", dup.SecondTask)
}

func TestBuildCycleDetected(t *testing.T) {
	store := testStore(t)

	a := simpleTask("a", []string{"b.out"}, []string{"a.out"})
	b := simpleTask("b", []string{"a.out"}, []string{"b.out"})
	_, err := Build(context.Background(), []*Task{a, b}, store)

	var cycleErr *dag.CycleError
	assert.True(t, errors.As(err, &cycleErr))
}

func TestBuildRejectsSelfInput(t *testing.T) {
	store := testStore(t)

	a := simpleTask("selfish", []string{"self.out"}, []string{"self.out"})
	_, err := Build(context.Background(), []*Task{a}, store)
	assert.ErrorContains(t, err, "lists its own output")
}
