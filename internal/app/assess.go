package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/executor"
	"github.com/corvid-bio/rookery/internal/fsutil"
	"github.com/corvid-bio/rookery/internal/marker"
	"github.com/corvid-bio/rookery/internal/pipeline"
)

const refineDir = "data/refine"

// checkmAssessor scores candidate bin sets by invoking the external quality
// assessment tool once per refinement round.
type checkmAssessor struct {
	store   *marker.Store
	invoker executor.Invoker
	threads int
	pplacer int
	round   int
}

func (a *App) newAssessor() *checkmAssessor {
	return &checkmAssessor{
		store:   a.store,
		invoker: a.invoker,
		threads: a.cfg.MaxThreads,
		pplacer: a.cfg.PplacerThreads,
	}
}

// Assess implements refine.QualityAssessor. The candidate set is written as
// a contig-to-bin table under a per-round directory, the tool is invoked on
// it, and its quality table is read back. An empty set assesses trivially.
func (c *checkmAssessor) Assess(ctx context.Context, set *bins.BinSet) (map[string]bins.Quality, error) {
	if set.Empty() {
		return map[string]bins.Quality{}, nil
	}
	c.round++

	dir := path.Join(refineDir, fmt.Sprintf("round_%d", c.round))
	if err := fsutil.EnsureDir(c.store.Resolve(dir)); err != nil {
		return nil, err
	}
	tablePath := path.Join(dir, "contig2bin.tsv")
	if err := bins.WriteContigBinTable(c.store.Resolve(tablePath), set); err != nil {
		return nil, err
	}

	outPath := path.Join(dir, "quality.tsv")
	task := &pipeline.Task{
		ID:      fmt.Sprintf("checkm_round_%d", c.round),
		Threads: c.threads,
		Policy:  pipeline.Strict,
		Invocation: pipeline.Invocation{Program: "checkm", Args: []string{
			"lineage_wf", "--tab_table", "-f", outPath,
			"-t", strconv.Itoa(c.threads),
			"--pplacer_threads", strconv.Itoa(c.pplacer),
			tablePath, path.Join(dir, "checkm"),
		}},
	}
	result := c.invoker.Invoke(ctx, task)
	if result.Failed() {
		if result.Err != nil {
			return nil, fmt.Errorf("quality assessment round %d: %w", c.round, result.Err)
		}
		return nil, &executor.ToolFailureError{TaskID: task.ID, ExitCode: result.ExitCode, StderrPath: result.StderrPath}
	}
	return bins.ReadQualityTable(c.store.Resolve(outPath))
}

// skaniANI computes average nucleotide identity between two bins by invoking
// the external comparison tool on their contig lists.
type skaniANI struct {
	store   *marker.Store
	invoker executor.Invoker
	threads int
	pair    int
}

func (a *App) newANICalculator() *skaniANI {
	return &skaniANI{store: a.store, invoker: a.invoker, threads: a.cfg.MaxThreads}
}

// ANI implements refine.ANICalculator. The tool writes a single identity
// value in [0,1] to its output file.
func (s *skaniANI) ANI(ctx context.Context, a, b *bins.Bin) (float64, error) {
	s.pair++

	dir := path.Join(refineDir, "ani")
	if err := fsutil.EnsureDir(s.store.Resolve(dir)); err != nil {
		return 0, err
	}
	listA := path.Join(dir, fmt.Sprintf("pair_%d_a.txt", s.pair))
	listB := path.Join(dir, fmt.Sprintf("pair_%d_b.txt", s.pair))
	if err := writeContigList(s.store.Resolve(listA), a); err != nil {
		return 0, err
	}
	if err := writeContigList(s.store.Resolve(listB), b); err != nil {
		return 0, err
	}

	outPath := path.Join(dir, fmt.Sprintf("pair_%d.txt", s.pair))
	task := &pipeline.Task{
		ID:      fmt.Sprintf("skani_pair_%d", s.pair),
		Threads: s.threads,
		Policy:  pipeline.Strict,
		Invocation: pipeline.Invocation{Program: "skani", Args: []string{
			"dist", "--ql", listA, "--rl", listB,
			"-t", strconv.Itoa(s.threads), "-o", outPath,
		}},
	}
	result := s.invoker.Invoke(ctx, task)
	if result.Failed() {
		if result.Err != nil {
			return 0, fmt.Errorf("ani computation for '%s' vs '%s': %w", a.Name, b.Name, result.Err)
		}
		return 0, &executor.ToolFailureError{TaskID: task.ID, ExitCode: result.ExitCode, StderrPath: result.StderrPath}
	}

	raw, err := os.ReadFile(s.store.Resolve(outPath))
	if err != nil {
		return 0, fmt.Errorf("reading ani output: %w", err)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ani output '%s': %w", outPath, err)
	}
	return value, nil
}

// writeContigList writes one contig id per line.
func writeContigList(resolved string, bin *bins.Bin) error {
	var sb strings.Builder
	for _, c := range bin.Contigs() {
		sb.WriteString(c.ID)
		sb.WriteByte('\n')
	}
	return os.WriteFile(resolved, []byte(sb.String()), 0o644)
}
