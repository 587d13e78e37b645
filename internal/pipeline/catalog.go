package pipeline

import (
	"fmt"
	"path"
	"strconv"

	"github.com/corvid-bio/rookery/internal/config"
)

// Well-known artifact paths, relative to the run directory.
const (
	CoverageTable = "data/coverage.tsv"
	KmerTable     = "data/kmers.tsv"
	QualityTable  = "data/quality.tsv"
	ContigBinDir  = "data/c2b"
	FinalBinsDir  = "final_bins"
	TaxonomyDir   = "data/gtdbtk"
)

// markerFor returns the conventional sentinel path of a task.
func markerFor(taskID string) string {
	return path.Join("data", "markers", taskID+".done")
}

// ContigBinTable returns the contig-to-bin table path of one binner.
func ContigBinTable(binner string) string {
	return path.Join(ContigBinDir, binner+".tsv")
}

// binnerSpec is the parameter plumbing of one binning tool; data, not logic.
type binnerSpec struct {
	name    string
	group   string
	program string
	args    []string
}

// binners lists the contributing binning tools in declaration order. All of
// them run under SoftFail: the ensemble survives losing any one contributor.
func binners(cfg *config.Config) []binnerSpec {
	minContig := strconv.Itoa(cfg.MinContigSize)
	return []binnerSpec{
		{
			name:    "metabat2",
			program: "metabat2",
			args: []string{
				"-i", cfg.Fasta, "-a", CoverageTable,
				"-o", "data/metabat2_bins/bin", "-m", minContig,
			},
		},
		{
			name:    "metabat_sens",
			group:   "metabat1",
			program: "metabat1",
			args: []string{
				"--sensitive", "-i", cfg.Fasta, "-a", CoverageTable,
				"-o", "data/metabat_sens_bins/bin", "-m", minContig,
			},
		},
		{
			name:    "metabat_spec",
			group:   "metabat1",
			program: "metabat1",
			args: []string{
				"--specific", "-i", cfg.Fasta, "-a", CoverageTable,
				"-o", "data/metabat_spec_bins/bin", "-m", minContig,
			},
		},
		{
			name:    "maxbin2",
			program: "run_MaxBin.pl",
			args: []string{
				"-contig", cfg.Fasta, "-abund", CoverageTable,
				"-out", "data/maxbin2_bins/bin", "-min_contig_length", minContig,
			},
		},
		{
			name:    "concoct",
			program: "concoct",
			args: []string{
				"--composition_file", cfg.Fasta, "--coverage_file", CoverageTable,
				"-b", "data/concoct_bins", "-l", minContig,
			},
		},
		{
			name:    "rosella",
			program: "rosella",
			args: []string{
				"bin", "-r", cfg.Fasta, "--coverage-values", CoverageTable,
				"-o", "data/rosella_bins", "--min-contig-size", minContig,
			},
		},
		{
			name:    "vamb",
			program: "vamb",
			args: []string{
				"--fasta", cfg.Fasta, "--jgi", CoverageTable,
				"--outdir", "data/vamb_bins", "-m", minContig,
			},
		},
		{
			name:    "semibin",
			program: "SemiBin2",
			args: []string{
				"single_easy_bin", "-i", cfg.Fasta, "-a", CoverageTable,
				"-o", "data/semibin_bins", "--min-len", minContig,
			},
		},
	}
}

// Binners returns the names of the contributing binning tools in declaration
// order; consensus source order follows it.
func Binners(cfg *config.Config) []string {
	specs := binners(cfg)
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.name
	}
	return names
}

// coverageVariants declares the mutually exclusive coverage-table tasks, one
// per read mode, all producing the same logical output.
func coverageVariants(cfg *config.Config) []*Task {
	threads := strconv.Itoa(cfg.MaxThreads)
	base := func(id string, mode config.ReadMode, readArgs []string, inputs []string) *Task {
		args := append([]string{
			"contig", "-r", cfg.Fasta, "-m", "metabat",
			"-t", threads, "-o", CoverageTable,
		}, readArgs...)
		return &Task{
			ID:            id,
			Inputs:        append([]string{cfg.Fasta}, inputs...),
			Outputs:       []string{CoverageTable},
			OutputDirs:    []string{"data"},
			Marker:        markerFor(id),
			Threads:       cfg.MaxThreads,
			Policy:        Strict,
			Invocation:    Invocation{Program: "coverm", Args: args},
			LogicalOutput: CoverageTable,
			Variant:       mode,
		}
	}

	return []*Task{
		base("coverage_paired", config.ReadModePaired,
			[]string{"-1", cfg.ShortReads1, "-2", cfg.ShortReads2},
			[]string{cfg.ShortReads1, cfg.ShortReads2}),
		base("coverage_interleaved", config.ReadModeInterleaved,
			[]string{"--interleaved", cfg.ShortReads1},
			[]string{cfg.ShortReads1}),
		base("coverage_single", config.ReadModeSingle,
			[]string{"--single", cfg.ShortReads1},
			[]string{cfg.ShortReads1}),
		base("coverage_long", config.ReadModeLong,
			[]string{"--single", cfg.LongReads, "-p", "minimap2-ont"},
			[]string{cfg.LongReads}),
	}
}

// RecoveryTasks returns the declarative task list of the recovery stage:
// coverage variants, k-mer frequencies, the binning ensemble, format
// conversion and quality assessment. Declaration order is the scheduler's
// tie-break order.
func RecoveryTasks(cfg *config.Config) []*Task {
	tasks := coverageVariants(cfg)

	tasks = append(tasks, &Task{
		ID:         "kmer_freq",
		Inputs:     []string{cfg.Fasta},
		Outputs:    []string{KmerTable},
		OutputDirs: []string{"data"},
		Marker:     markerFor("kmer_freq"),
		Threads:    cfg.MaxThreads,
		Policy:     Strict,
		Invocation: Invocation{Program: "rosella", Args: []string{
			"kmer", "-r", cfg.Fasta, "-o", KmerTable,
			"--min-contig-size", strconv.Itoa(cfg.MinContigSize),
		}},
	})

	binnerThreads := cfg.MaxThreads / 4
	if binnerThreads < 1 {
		binnerThreads = 1
	}
	specs := binners(cfg)
	converterInputs := make([]string, 0, len(specs))
	converterOutputs := make([]string, 0, len(specs))
	var converterArgs []string
	for _, spec := range specs {
		outDir := path.Join("data", spec.name+"_bins")
		tasks = append(tasks, &Task{
			ID:         spec.name,
			Inputs:     []string{cfg.Fasta, CoverageTable},
			Outputs:    []string{outDir},
			OutputDirs: []string{outDir},
			Marker:     markerFor(spec.name),
			Params: map[string]string{
				"min_contig_size": strconv.Itoa(cfg.MinContigSize),
			},
			Threads:    binnerThreads,
			Group:      spec.group,
			Policy:     SoftFail,
			Invocation: Invocation{Program: spec.program, Args: append(spec.args, "-t", strconv.Itoa(binnerThreads))},
		})
		converterInputs = append(converterInputs, outDir)
		converterOutputs = append(converterOutputs, ContigBinTable(spec.name))
		converterArgs = append(converterArgs, "--bins", outDir, "--output", ContigBinTable(spec.name))
	}

	tasks = append(tasks, &Task{
		ID:         "convert_binnings",
		Inputs:     converterInputs,
		Outputs:    converterOutputs,
		OutputDirs: []string{ContigBinDir},
		Marker:     markerFor("convert_binnings"),
		Threads:    1,
		Policy:     Strict,
		Invocation: Invocation{Program: "convert_binnings", Args: converterArgs},
	})

	tasks = append(tasks, &Task{
		ID:         "checkm",
		Inputs:     append([]string{cfg.Fasta}, converterOutputs...),
		Outputs:    []string{QualityTable},
		OutputDirs: []string{"data"},
		Marker:     markerFor("checkm"),
		Params: map[string]string{
			"pplacer_threads": strconv.Itoa(cfg.PplacerThreads),
		},
		Threads: cfg.MaxThreads,
		Policy:  Strict,
		Invocation: Invocation{Program: "checkm", Args: []string{
			"lineage_wf", "--tab_table", "-f", QualityTable,
			"-t", strconv.Itoa(cfg.MaxThreads),
			"--pplacer_threads", strconv.Itoa(cfg.PplacerThreads),
			ContigBinDir, "data/checkm",
		}},
	})

	return tasks
}

// AnnotateTasks returns the post-refinement stage: taxonomy assignment over
// the final bins. Empty when no GTDB-Tk folder is configured.
func AnnotateTasks(cfg *config.Config) []*Task {
	if cfg.GtdbtkFolder == "" {
		return nil
	}
	return []*Task{{
		ID:         "gtdbtk_classify",
		Inputs:     []string{path.Join(FinalBinsDir, "contig2bin.tsv")},
		Outputs:    []string{TaxonomyDir},
		OutputDirs: []string{TaxonomyDir},
		Marker:     markerFor("gtdbtk_classify"),
		Params: map[string]string{
			"gtdbtk_folder": cfg.GtdbtkFolder,
		},
		Threads: cfg.PplacerThreads,
		Policy:  SoftFail,
		Invocation: Invocation{Program: "gtdbtk", Args: []string{
			"classify_wf", "--genome_dir", FinalBinsDir,
			"--out_dir", TaxonomyDir,
			"--cpus", strconv.Itoa(cfg.PplacerThreads),
		}},
	}}
}

// Describe renders a one-line summary of a task for logs.
func Describe(t *Task) string {
	return fmt.Sprintf("%s [%s, %d threads]: %s", t.ID, t.Policy, t.Threads, t.Invocation)
}
