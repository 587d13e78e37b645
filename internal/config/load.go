package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/corvid-bio/rookery/internal/ctxlog"
)

// fileModel is the top-level shape of a run configuration file.
type fileModel struct {
	Run *runBlock `hcl:"run,block"`
}

// runBlock mirrors Options; every attribute is optional so the file only
// needs to state what differs from the defaults.
type runBlock struct {
	OutputDir        *string  `hcl:"output,optional"`
	Fasta            *string  `hcl:"fasta,optional"`
	LongReads        *string  `hcl:"long_reads,optional"`
	ShortReads1      *string  `hcl:"short_reads_1,optional"`
	ShortReads2      *string  `hcl:"short_reads_2,optional"`
	SingleEnd        *bool    `hcl:"single_end,optional"`
	MinContigSize    *int     `hcl:"min_contig_size,optional"`
	MinBinSize       *int     `hcl:"min_bin_size,optional"`
	MaxThreads       *int     `hcl:"max_threads,optional"`
	PplacerThreads   *int     `hcl:"pplacer_threads,optional"`
	GtdbtkFolder     *string  `hcl:"gtdbtk_folder,optional"`
	BuscoFolder      *string  `hcl:"busco_folder,optional"`
	ScoreThreshold   *float64 `hcl:"score_threshold,optional"`
	MaxIterations    *int     `hcl:"max_iterations,optional"`
	MaxContamination *float64 `hcl:"max_contamination,optional"`
	ANI              *float64 `hcl:"ani,optional"`
}

// envEvalContext exposes the process environment to config expressions as an
// `env` object, so files can write e.g. `gtdbtk_folder = env.GTDBTK_DATA_PATH`.
func envEvalContext() *hcl.EvalContext {
	envVars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			envVars[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(envVars),
		},
	}
}

// loadFile parses an HCL run configuration file into an Options value.
func loadFile(ctx context.Context, path string) (*Options, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing config file '%s': %w", path, diags)
	}

	var model fileModel
	if diags := gohcl.DecodeBody(file.Body, envEvalContext(), &model); diags.HasErrors() {
		return nil, fmt.Errorf("decoding config file '%s': %w", path, diags)
	}

	if model.Run == nil {
		logger.Warn("Config file contains no run block, using defaults.", "path", path)
		return &Options{}, nil
	}
	logger.Debug("Config file loaded.", "path", path)

	b := model.Run
	return &Options{
		OutputDir:        b.OutputDir,
		Fasta:            b.Fasta,
		LongReads:        b.LongReads,
		ShortReads1:      b.ShortReads1,
		ShortReads2:      b.ShortReads2,
		SingleEnd:        b.SingleEnd,
		MinContigSize:    b.MinContigSize,
		MinBinSize:       b.MinBinSize,
		MaxThreads:       b.MaxThreads,
		PplacerThreads:   b.PplacerThreads,
		GtdbtkFolder:     b.GtdbtkFolder,
		BuscoFolder:      b.BuscoFolder,
		ScoreThreshold:   b.ScoreThreshold,
		MaxIterations:    b.MaxIterations,
		MaxContamination: b.MaxContamination,
		ANI:              b.ANI,
	}, nil
}
