package pipeline

import (
	"fmt"
	"strings"

	"github.com/corvid-bio/rookery/internal/config"
)

// FailurePolicy decides what a non-zero exit of a task's external tool means
// for the run.
type FailurePolicy int

const (
	// Strict aborts the entire run; no markers are written.
	Strict FailurePolicy = iota
	// SoftFail absorbs the failure: output directories are created, markers
	// are written, and downstream consumers see an empty result.
	SoftFail
)

// String returns the policy name.
func (p FailurePolicy) String() string {
	if p == SoftFail {
		return "soft-fail"
	}
	return "strict"
}

// Invocation describes the external program a task runs.
type Invocation struct {
	Program string
	Args    []string
}

// String renders the invocation for logs.
func (i Invocation) String() string {
	return strings.TrimSpace(i.Program + " " + strings.Join(i.Args, " "))
}

// Task is one unit of the pipeline: an external tool invocation with a
// file-based input/output contract.
type Task struct {
	ID string

	// Inputs are raw file paths or other tasks' declared outputs. Relative
	// paths are resolved against the run directory.
	Inputs []string

	// Outputs are the data files and directories the tool produces. They are
	// what downstream tasks reference as inputs.
	Outputs []string

	// OutputDirs are directories guaranteed to exist after the task
	// finishes, even under SoftFail with a crashed tool.
	OutputDirs []string

	// Marker is the sentinel whose existence records completion.
	Marker string

	// Params carries tool-specific parameter plumbing, for logs and reports.
	Params map[string]string

	// Threads is the task's share of the global thread budget.
	Threads int

	// Group tags tasks that may be dispatched as one coarse-grained unit.
	// Scheduling treats it as advisory; members run individually.
	Group string

	Policy     FailurePolicy
	Invocation Invocation

	// LogicalOutput marks the task as one of several mutually exclusive
	// variants producing the same logical artifact. Empty for unconditional
	// tasks. Variant names the read mode that selects this variant.
	LogicalOutput string
	Variant       config.ReadMode
}

// IsVariant reports whether the task is a branch-selected variant.
func (t *Task) IsVariant() bool { return t.LogicalOutput != "" }

// UnresolvedInputError is a graph-build error: a task input is neither
// another task's declared output nor an existing raw file.
type UnresolvedInputError struct {
	TaskID string
	Input  string
}

// Error implements the error interface.
func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("task '%s': input '%s' is neither a produced output nor an existing file", e.TaskID, e.Input)
}

// DuplicateOutputError is a graph-build error: two tasks declare the same
// output path outside of a mutually exclusive variant group.
type DuplicateOutputError struct {
	Output     string
	FirstTask  string
	SecondTask string
}

// Error implements the error interface.
func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output '%s' declared by both '%s' and '%s'", e.Output, e.FirstTask, e.SecondTask)
}

// AmbiguousBranchStateError reports markers left behind by more than one
// variant of the same logical output, typically from a differently-configured
// prior run. The run refuses to guess which artifact is current.
type AmbiguousBranchStateError struct {
	LogicalOutput string
	Variants      []string
}

// Error implements the error interface.
func (e *AmbiguousBranchStateError) Error() string {
	return fmt.Sprintf("ambiguous branch state for '%s': markers exist for variants %s; remove the stale ones and re-run",
		e.LogicalOutput, strings.Join(e.Variants, ", "))
}
