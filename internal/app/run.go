package app

import (
	"context"
	"fmt"
	"path"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/consensus"
	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/executor"
	"github.com/corvid-bio/rookery/internal/fsutil"
	"github.com/corvid-bio/rookery/internal/pipeline"
	"github.com/corvid-bio/rookery/internal/refine"
)

// Run executes the whole pipeline: the recovery task graph, consensus
// selection over the per-tool results, iterative refinement, the final
// reports and the post-refinement annotation graph. A completed run always
// yields a final bin set and a quality report, even when individual binners
// soft-failed.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.runGraph(ctx, pipeline.RecoveryTasks(a.cfg)); err != nil {
		return err
	}

	features, coverage, err := a.readFeatures(ctx)
	if err != nil {
		return err
	}

	ensemble, err := a.readEnsemble(ctx, coverage)
	if err != nil {
		return err
	}
	cons, err := consensus.Select(ctx, ensemble, consensus.Options{
		ScoreThreshold: a.cfg.ScoreThreshold,
		PenaltyWeight:  1,
	})
	if err != nil {
		return err
	}

	loop := refine.NewLoop(
		a.newAssessor(),
		a.newANICalculator(),
		features,
		refine.Options{
			MaxContamination: a.cfg.MaxContamination,
			MaxIterations:    a.cfg.MaxIterations,
			MinBinSize:       a.cfg.MinBinSize,
			ANI:              a.cfg.ANI,
			FinalRefining:    true,
		},
	)
	outcome, err := loop.Run(ctx, cons)
	if err != nil {
		return err
	}
	a.logger.Info("Refinement finished.",
		"state", outcome.State.String(),
		"iterations", outcome.Iterations,
		"bins", outcome.Bins.Len())

	if err := a.writeReports(ctx, outcome.Bins, coverage); err != nil {
		return err
	}

	if annotate := pipeline.AnnotateTasks(a.cfg); len(annotate) > 0 {
		a.logger.Info("Starting annotation stage.", "tasks", len(annotate))
		if err := a.runGraph(ctx, annotate); err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// runGraph branch-selects, builds and executes one task list.
func (a *App) runGraph(ctx context.Context, tasks []*pipeline.Task) error {
	selected, err := pipeline.SelectBranch(ctx, tasks, a.cfg.ReadMode, a.store)
	if err != nil {
		return err
	}
	graph, err := pipeline.Build(ctx, selected, a.store)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", graph.Len())

	if graph.Len() == 0 {
		a.logger.Warn("No tasks in graph, execution not required.")
		return nil
	}
	return executor.New(graph, a.store, a.invoker, a.cfg.MaxThreads).Run(ctx)
}

// readEnsemble loads every binner's contig-to-bin table, applies the shared
// quality table and backfills contig lengths from the coverage table.
// Missing tables read as empty sets: that is the normal shape of a
// soft-failed tool's output.
func (a *App) readEnsemble(ctx context.Context, coverage *bins.CoverageTable) (consensus.EnsembleInput, error) {
	logger := ctxlog.FromContext(ctx)

	quality := map[string]bins.Quality{}
	qualityPath := a.store.Resolve(pipeline.QualityTable)
	if fsutil.Exists(qualityPath) {
		loaded, err := bins.ReadQualityTable(qualityPath)
		if err != nil {
			return nil, err
		}
		quality = loaded
	} else {
		logger.Warn("Quality table missing, candidates will score zero.", "path", qualityPath)
	}

	input := make(consensus.EnsembleInput, 0)
	for _, name := range pipeline.Binners(a.cfg) {
		set, err := bins.ReadContigBinTable(a.store.Resolve(pipeline.ContigBinTable(name)), name)
		if err != nil {
			return nil, err
		}
		if set.Empty() {
			logger.Warn("Binner produced no bins.", "binner", name)
		}
		for _, binName := range set.BinNames() {
			if q, ok := quality[binName]; ok {
				set.SetQuality(binName, q)
			}
			if coverage == nil {
				continue
			}
			for _, c := range set.Bin(binName).Contigs() {
				if row, ok := coverage.Rows[c.ID]; ok && row.Length > 0 {
					set.SetLength(c.ID, row.Length)
				}
			}
		}
		input = append(input, set)
	}
	return input, nil
}

// readFeatures loads the composition and coverage tables into the feature
// space used by refinement. Either table may be absent.
func (a *App) readFeatures(ctx context.Context) (refine.Features, *bins.CoverageTable, error) {
	logger := ctxlog.FromContext(ctx)

	composition := map[string][]float64{}
	if p := a.store.Resolve(pipeline.KmerTable); fsutil.Exists(p) {
		loaded, err := bins.ReadFeatureTable(p)
		if err != nil {
			return nil, nil, err
		}
		composition = loaded
	} else {
		logger.Warn("Composition table missing, refinement will use coverage only.")
	}

	var coverage *bins.CoverageTable
	if p := a.store.Resolve(pipeline.CoverageTable); fsutil.Exists(p) {
		loaded, err := bins.ReadCoverageTable(p)
		if err != nil {
			return nil, nil, err
		}
		coverage = loaded
	} else {
		logger.Warn("Coverage table missing, refinement will use composition only.")
	}

	return refine.CombineFeatures(composition, coverage), coverage, nil
}

// writeReports persists the final bin set: the contig-to-bin table, the
// per-bin quality report and the per-bin abundance report.
func (a *App) writeReports(ctx context.Context, set *bins.BinSet, coverage *bins.CoverageTable) error {
	logger := ctxlog.FromContext(ctx)

	dir := a.store.Resolve(pipeline.FinalBinsDir)
	if err := fsutil.EnsureDir(dir); err != nil {
		return err
	}

	tablePath := path.Join(pipeline.FinalBinsDir, "contig2bin.tsv")
	if err := bins.WriteContigBinTable(a.store.Resolve(tablePath), set); err != nil {
		return err
	}
	if err := writeQualityReport(a.store.Resolve(path.Join(pipeline.FinalBinsDir, "quality_report.tsv")), set); err != nil {
		return err
	}
	if err := writeAbundanceReport(a.store.Resolve(path.Join(pipeline.FinalBinsDir, "abundance.tsv")), set, coverage); err != nil {
		return err
	}

	logger.Info("Final reports written.", "dir", dir, "bins", set.Len(), "contigs", set.ContigCount())
	return nil
}
