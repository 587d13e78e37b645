package executor

import "fmt"

// TaskState is the scheduler's view of one task.
type TaskState int

const (
	// Pending means one or more dependencies are not yet done.
	Pending TaskState = iota
	// Ready means every dependency is done and the task awaits dispatch.
	Ready
	// Running means the external invocation is in flight.
	Running
	// Done means the task finished and its markers exist.
	Done
	// Failed means a strict task's invocation failed; the run aborts.
	Failed
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Result is the typed outcome of one external invocation. Failure handling
// is the scheduler's job, decided by the task's policy, never the
// invocation's.
type Result struct {
	ExitCode   int
	StdoutPath string
	StderrPath string
	// Err is set when the process could not be run at all (missing
	// program, context canceled). ExitCode is -1 in that case.
	Err error
}

// Failed reports whether the invocation ended unsuccessfully.
func (r Result) Failed() bool { return r.ExitCode != 0 || r.Err != nil }

// ToolFailureError reports a strict task whose external tool failed.
type ToolFailureError struct {
	TaskID     string
	ExitCode   int
	StderrPath string
}

// Error implements the error interface.
func (e *ToolFailureError) Error() string {
	if e.StderrPath != "" {
		return fmt.Sprintf("task '%s' failed with exit code %d (stderr: %s)", e.TaskID, e.ExitCode, e.StderrPath)
	}
	return fmt.Sprintf("task '%s' failed with exit code %d", e.TaskID, e.ExitCode)
}
