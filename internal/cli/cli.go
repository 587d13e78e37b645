package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/corvid-bio/rookery/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns populated app options,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Flags left unset fall through to the config file, then to built-in
// defaults.
func Parse(args []string, output io.Writer) (*app.Options, bool, error) {
	flagSet := flag.NewFlagSet("rookery", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Rookery - an ensemble metagenome binning pipeline.

Usage:
  rookery [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL run configuration file.")
	outputFlag := flagSet.String("output", "", "Run directory for all artifacts. Default is the current directory.")
	assemblyFlag := flagSet.String("assembly", "", "Path to the assembly FASTA file.")
	longReadsFlag := flagSet.String("long-reads", "", "Path to long reads, or 'none'.")
	shortReads1Flag := flagSet.String("short-reads-1", "", "Path to forward (or interleaved) short reads, or 'none'.")
	shortReads2Flag := flagSet.String("short-reads-2", "", "Path to reverse short reads, or 'none'.")
	singleEndFlag := flagSet.Bool("single-end", false, "Treat short-reads-1 as single-end instead of interleaved.")
	minContigFlag := flagSet.Int("min-contig-size", 0, "Minimum contig size passed to the binners.")
	minBinFlag := flagSet.Int("min-bin-size", 0, "Minimum total bin length kept in the final result.")
	threadsFlag := flagSet.Int("threads", 0, "Global thread budget for external tools.")
	pplacerFlag := flagSet.Int("pplacer-threads", 0, "Threads for pplacer, capped at 48.")
	gtdbtkFlag := flagSet.String("gtdbtk-folder", "", "Path to the GTDB-Tk reference data, or 'none'.")
	buscoFlag := flagSet.String("busco-folder", "", "Path to the BUSCO reference data, or 'none'.")
	scoreFlag := flagSet.Float64("score-threshold", 0, "Minimum candidate score admitted to the consensus.")
	iterationsFlag := flagSet.Int("max-iterations", 0, "Maximum refinement passes.")
	contaminationFlag := flagSet.Float64("max-contamination", 0, "Per-bin contamination ceiling in percent.")
	aniFlag := flagSet.Float64("ani", 0, "Dereplication identity threshold in (0, 1].")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument: %s", flagSet.Arg(0))}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	opts := &app.Options{LogFormat: logFormat, LogLevel: logLevel}
	opts.Config.File = *configFlag

	// Only explicitly set flags become overrides; everything else falls
	// through to the config file and the defaults.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			opts.Config.OutputDir = outputFlag
		case "assembly":
			opts.Config.Fasta = assemblyFlag
		case "long-reads":
			opts.Config.LongReads = longReadsFlag
		case "short-reads-1":
			opts.Config.ShortReads1 = shortReads1Flag
		case "short-reads-2":
			opts.Config.ShortReads2 = shortReads2Flag
		case "single-end":
			opts.Config.SingleEnd = singleEndFlag
		case "min-contig-size":
			opts.Config.MinContigSize = minContigFlag
		case "min-bin-size":
			opts.Config.MinBinSize = minBinFlag
		case "threads":
			opts.Config.MaxThreads = threadsFlag
		case "pplacer-threads":
			opts.Config.PplacerThreads = pplacerFlag
		case "gtdbtk-folder":
			opts.Config.GtdbtkFolder = gtdbtkFlag
		case "busco-folder":
			opts.Config.BuscoFolder = buscoFlag
		case "score-threshold":
			opts.Config.ScoreThreshold = scoreFlag
		case "max-iterations":
			opts.Config.MaxIterations = iterationsFlag
		case "max-contamination":
			opts.Config.MaxContamination = contaminationFlag
		case "ani":
			opts.Config.ANI = aniFlag
		}
	})

	return opts, false, nil
}
