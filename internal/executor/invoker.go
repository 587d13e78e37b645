package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/fsutil"
	"github.com/corvid-bio/rookery/internal/pipeline"
)

// Invoker launches a task's external program and reports its typed result.
// Tests substitute a fake; production uses OSInvoker.
type Invoker interface {
	Invoke(ctx context.Context, task *pipeline.Task) Result
}

// OSInvoker runs tasks as child processes with stdout/stderr captured to
// per-task log files.
type OSInvoker struct {
	// WorkDir is the working directory of every child process, normally the
	// run directory, so relative artifact paths resolve consistently.
	WorkDir string
	// LogDir receives <task>.stdout.log and <task>.stderr.log files.
	LogDir string
}

// Invoke implements the Invoker interface.
func (o *OSInvoker) Invoke(ctx context.Context, task *pipeline.Task) Result {
	logger := ctxlog.FromContext(ctx)

	if err := fsutil.EnsureDir(o.LogDir); err != nil {
		return Result{ExitCode: -1, Err: err}
	}
	stdoutPath := filepath.Join(o.LogDir, task.ID+".stdout.log")
	stderrPath := filepath.Join(o.LogDir, task.ID+".stderr.log")

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return Result{ExitCode: -1, Err: err}
	}
	defer stdout.Close()
	stderr, err := os.Create(stderrPath)
	if err != nil {
		return Result{ExitCode: -1, Err: err}
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, task.Invocation.Program, task.Invocation.Args...)
	cmd.Dir = o.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug("Launching external tool.", "task", task.ID, "command", task.Invocation.String())
	runErr := cmd.Run()

	result := Result{ExitCode: 0, StdoutPath: stdoutPath, StderrPath: stderrPath}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Err = runErr
		}
	}
	return result
}
