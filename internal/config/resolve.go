package config

import (
	"context"
	"fmt"

	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/fsutil"
)

// Options carries overrides for a subset of run parameters. Nil fields fall
// through to the config file value, then to the built-in default. It is the
// input of Resolve; CLI flags and tests populate it.
type Options struct {
	// File is the path of an optional HCL run configuration file.
	File string

	OutputDir        *string
	Fasta            *string
	LongReads        *string
	ShortReads1      *string
	ShortReads2      *string
	SingleEnd        *bool
	MinContigSize    *int
	MinBinSize       *int
	MaxThreads       *int
	PplacerThreads   *int
	GtdbtkFolder     *string
	BuscoFolder      *string
	ScoreThreshold   *float64
	MaxIterations    *int
	MaxContamination *float64
	ANI              *float64
}

func pick[T any](override, fromFile *T, def T) T {
	if override != nil {
		return *override
	}
	if fromFile != nil {
		return *fromFile
	}
	return def
}

// normalizePath maps the "none" sentinel to the empty string.
func normalizePath(p string) string {
	if p == NoneSentinel {
		return ""
	}
	return p
}

// Resolve merges overrides, the optional config file and built-in defaults
// into a validated, immutable Config. All *Error returns are fatal and occur
// before any task executes.
func Resolve(ctx context.Context, opts Options) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	fileOpts := &Options{}
	if opts.File != "" {
		if !fsutil.Exists(opts.File) {
			return nil, &Error{Option: "config", Reason: fmt.Sprintf("file '%s' does not exist", opts.File)}
		}
		loaded, err := loadFile(ctx, opts.File)
		if err != nil {
			return nil, err
		}
		fileOpts = loaded
	}

	cfg := &Config{
		OutputDir:        pick(opts.OutputDir, fileOpts.OutputDir, "."),
		Fasta:            pick(opts.Fasta, fileOpts.Fasta, "assembly.fasta"),
		LongReads:        normalizePath(pick(opts.LongReads, fileOpts.LongReads, NoneSentinel)),
		ShortReads1:      normalizePath(pick(opts.ShortReads1, fileOpts.ShortReads1, NoneSentinel)),
		ShortReads2:      normalizePath(pick(opts.ShortReads2, fileOpts.ShortReads2, NoneSentinel)),
		SingleEnd:        pick(opts.SingleEnd, fileOpts.SingleEnd, false),
		MinContigSize:    pick(opts.MinContigSize, fileOpts.MinContigSize, 1500),
		MinBinSize:       pick(opts.MinBinSize, fileOpts.MinBinSize, 200000),
		MaxThreads:       pick(opts.MaxThreads, fileOpts.MaxThreads, 8),
		PplacerThreads:   pick(opts.PplacerThreads, fileOpts.PplacerThreads, 8),
		GtdbtkFolder:     normalizePath(pick(opts.GtdbtkFolder, fileOpts.GtdbtkFolder, NoneSentinel)),
		BuscoFolder:      normalizePath(pick(opts.BuscoFolder, fileOpts.BuscoFolder, NoneSentinel)),
		ScoreThreshold:   pick(opts.ScoreThreshold, fileOpts.ScoreThreshold, -42),
		MaxIterations:    pick(opts.MaxIterations, fileOpts.MaxIterations, 5),
		MaxContamination: pick(opts.MaxContamination, fileOpts.MaxContamination, 10),
		ANI:              pick(opts.ANI, fileOpts.ANI, 0.97),
	}

	mode, err := resolveReadMode(cfg)
	if err != nil {
		return nil, err
	}
	cfg.ReadMode = mode

	if err := validate(ctx, cfg); err != nil {
		return nil, err
	}

	logger.Debug("Configuration resolved.",
		"read_mode", cfg.ReadMode.String(),
		"fasta", cfg.Fasta,
		"output", cfg.OutputDir,
		"max_threads", cfg.MaxThreads)
	return cfg, nil
}

// resolveReadMode derives the discriminated read-input mode from the raw
// read paths. Exactly one coverage task variant is keyed by this value.
func resolveReadMode(cfg *Config) (ReadMode, error) {
	switch {
	case cfg.ShortReads1 != "" && cfg.ShortReads2 != "":
		if cfg.SingleEnd {
			return ReadModeNone, &Error{Option: "single_end", Reason: "cannot combine single_end with short_reads_2"}
		}
		return ReadModePaired, nil
	case cfg.ShortReads2 != "":
		return ReadModeNone, &Error{Option: "short_reads_2", Reason: "set without short_reads_1"}
	case cfg.ShortReads1 != "" && cfg.SingleEnd:
		return ReadModeSingle, nil
	case cfg.ShortReads1 != "":
		return ReadModeInterleaved, nil
	case cfg.LongReads != "":
		return ReadModeLong, nil
	default:
		return ReadModeNone, &Error{Reason: "no read input configured: provide long_reads or short_reads_1"}
	}
}

func validate(ctx context.Context, cfg *Config) error {
	logger := ctxlog.FromContext(ctx)

	required := map[string]string{
		"fasta": cfg.Fasta,
	}
	if cfg.LongReads != "" {
		required["long_reads"] = cfg.LongReads
	}
	if cfg.ShortReads1 != "" {
		required["short_reads_1"] = cfg.ShortReads1
	}
	if cfg.ShortReads2 != "" {
		required["short_reads_2"] = cfg.ShortReads2
	}
	for option, path := range required {
		if !fsutil.Exists(path) {
			return &Error{Option: option, Reason: fmt.Sprintf("required input '%s' does not exist", path)}
		}
	}

	// Optional reference folders are warn-only: the tasks needing them are
	// gated off instead of failing the run.
	if cfg.GtdbtkFolder != "" && !fsutil.Exists(cfg.GtdbtkFolder) {
		logger.Warn("GTDB-Tk folder does not exist, taxonomy assignment will be skipped.", "path", cfg.GtdbtkFolder)
		cfg.GtdbtkFolder = ""
	}
	if cfg.BuscoFolder != "" && !fsutil.Exists(cfg.BuscoFolder) {
		logger.Warn("BUSCO folder does not exist, continuing without it.", "path", cfg.BuscoFolder)
		cfg.BuscoFolder = ""
	}

	if cfg.MaxThreads < 1 {
		return &Error{Option: "max_threads", Reason: "must be at least 1"}
	}
	if cfg.PplacerThreads < 1 {
		return &Error{Option: "pplacer_threads", Reason: "must be at least 1"}
	}
	if cfg.PplacerThreads > maxPplacerThreads {
		logger.Warn("Capping pplacer threads.", "requested", cfg.PplacerThreads, "cap", maxPplacerThreads)
		cfg.PplacerThreads = maxPplacerThreads
	}
	if cfg.MinContigSize < 0 {
		return &Error{Option: "min_contig_size", Reason: "must not be negative"}
	}
	if cfg.MinBinSize < 0 {
		return &Error{Option: "min_bin_size", Reason: "must not be negative"}
	}
	if cfg.MaxIterations < 0 {
		return &Error{Option: "max_iterations", Reason: "must not be negative"}
	}
	if cfg.MaxContamination < 0 {
		return &Error{Option: "max_contamination", Reason: "must not be negative"}
	}
	if cfg.ANI <= 0 || cfg.ANI > 1 {
		return &Error{Option: "ani", Reason: "must be in (0, 1]"}
	}

	return nil
}
