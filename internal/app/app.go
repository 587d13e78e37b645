package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/corvid-bio/rookery/internal/config"
	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/executor"
	"github.com/corvid-bio/rookery/internal/marker"
)

// Options holds everything an App instance needs to run.
type Options struct {
	// Config carries the run parameters; CLI flags populate the overrides.
	Config config.Options
	// LogFormat selects "text" or "json" output.
	LogFormat string
	// LogLevel selects the minimum level: debug, info, warn, error.
	LogLevel string
}

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	cfg     *config.Config
	store   *marker.Store
	invoker executor.Invoker
}

// New resolves the configuration and returns a fully initialized App with
// its own isolated logger. Config errors are fatal and returned before any
// task executes.
func New(outW io.Writer, opts *Options) (*App, error) {
	logger := newLogger(opts.LogLevel, opts.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cfg, err := config.Resolve(ctx, opts.Config)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration resolved.", "output", cfg.OutputDir, "read_mode", cfg.ReadMode.String())

	store := marker.NewStore(cfg.OutputDir)
	return &App{
		outW:    outW,
		logger:  logger,
		cfg:     cfg,
		store:   store,
		invoker: &executor.OSInvoker{WorkDir: cfg.OutputDir, LogDir: store.Resolve("logs")},
	}, nil
}

// Config returns the resolved configuration. This is primarily for testing.
func (a *App) Config() *config.Config { return a.cfg }

// SetInvoker replaces the external tool invoker. This is primarily for
// testing.
func (a *App) SetInvoker(inv executor.Invoker) { a.invoker = inv }
