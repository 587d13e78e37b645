package config

import "fmt"

// NoneSentinel is the accepted placeholder for "this input is not provided".
// It mirrors the convention of the external tool ecosystem, where read paths
// default to the literal string "none".
const NoneSentinel = "none"

// maxPplacerThreads caps pplacer's thread count; above this the tool's
// memory usage grows without bound.
const maxPplacerThreads = 48

// ReadMode is the resolved read-input mode of a run. It discriminates the
// mutually exclusive coverage task variants.
type ReadMode int

const (
	// ReadModeNone means no short-read and no long-read input.
	ReadModeNone ReadMode = iota
	// ReadModePaired means forward and reverse short-read files.
	ReadModePaired
	// ReadModeInterleaved means a single file holding interleaved pairs.
	ReadModeInterleaved
	// ReadModeSingle means unpaired single-end short reads.
	ReadModeSingle
	// ReadModeLong means long reads only.
	ReadModeLong
)

// String returns the mode's lowercase name.
func (m ReadMode) String() string {
	switch m {
	case ReadModePaired:
		return "paired"
	case ReadModeInterleaved:
		return "interleaved"
	case ReadModeSingle:
		return "single"
	case ReadModeLong:
		return "long"
	default:
		return "none"
	}
}

// Error is a fatal configuration error, raised before any task executes.
type Error struct {
	Option string
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Reason)
}

// Config holds the immutable parameters of one pipeline run. It is
// constructed by Resolve and read-only thereafter.
type Config struct {
	// OutputDir is the run directory; all task outputs, markers and logs
	// live underneath it.
	OutputDir string

	// Fasta is the assembly whose contigs are binned.
	Fasta string

	// Read inputs. Empty string means not provided.
	LongReads   string
	ShortReads1 string
	ShortReads2 string
	// SingleEnd marks ShortReads1 as unpaired single-end reads rather than
	// an interleaved pair file.
	SingleEnd bool

	// ReadMode is derived from the read inputs above.
	ReadMode ReadMode

	MinContigSize int
	MinBinSize    int

	MaxThreads     int
	PplacerThreads int

	// Optional reference folders. Missing paths only produce warnings; the
	// tasks depending on them are skipped.
	GtdbtkFolder string
	BuscoFolder  string

	// ScoreThreshold is the consensus candidate rejection threshold.
	ScoreThreshold float64

	MaxIterations    int
	MaxContamination float64

	// ANI is the nucleotide-similarity threshold for deduplicating
	// near-identical bins during final refinement.
	ANI float64
}
