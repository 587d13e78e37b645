// Package testutil provides shared helpers for the pipeline's tests: a
// thread-safe log buffer, a scriptable fake invoker, and small filesystem
// shortcuts.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/executor"
	"github.com/corvid-bio/rookery/internal/pipeline"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug-level logger that writes into
// the returned buffer.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// TouchFile creates an empty file at path, creating parent directories.
func TouchFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// FakeInvoker is a scriptable executor.Invoker. By default every invocation
// succeeds instantly; individual tasks can be scripted to fail, and a delay
// can be added to observe concurrency.
type FakeInvoker struct {
	mu sync.Mutex

	// ExitCodes maps task IDs to nonzero exit codes.
	ExitCodes map[string]int
	// Delay is how long each invocation blocks, to make overlap observable.
	Delay time.Duration
	// OnInvoke, when set, runs for every invocation (e.g. to fabricate tool
	// output files).
	OnInvoke func(task *pipeline.Task)

	calls           []string
	inFlightThreads int
	maxThreads      int
}

// Invoke implements executor.Invoker.
func (f *FakeInvoker) Invoke(ctx context.Context, task *pipeline.Task) executor.Result {
	f.mu.Lock()
	f.calls = append(f.calls, task.ID)
	f.inFlightThreads += task.Threads
	if f.inFlightThreads > f.maxThreads {
		f.maxThreads = f.inFlightThreads
	}
	f.mu.Unlock()

	if f.OnInvoke != nil {
		f.OnInvoke(task)
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.inFlightThreads -= task.Threads
	code := f.ExitCodes[task.ID]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return executor.Result{ExitCode: -1, Err: err}
	}
	return executor.Result{ExitCode: code}
}

// Calls returns the task IDs in invocation order.
func (f *FakeInvoker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the total number of invocations.
func (f *FakeInvoker) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// MaxConcurrentThreads returns the peak sum of thread requests in flight.
func (f *FakeInvoker) MaxConcurrentThreads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxThreads
}
