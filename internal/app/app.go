package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vk/omnibuild/internal/backend"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/descriptor"
	"github.com/vk/omnibuild/internal/hcl"
	"github.com/vk/omnibuild/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *config.Config
	backend backend.Backend

	// executor is the running build, published for the status server.
	executor   atomic.Pointer[scheduler.Executor]
	httpServer *http.Server
}

// Option customizes an App.
type Option func(*App)

// WithBackend replaces the shell build backend.
func WithBackend(b backend.Backend) Option {
	return func(a *App) { a.backend = b }
}

// NewApp is the constructor for the main application. Reports are written to
// outW and logs to logW. cfg must already be validated.
func NewApp(outW, logW io.Writer, cfg *config.Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		backend: backend.NewCommand(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// loadDescriptors reads every configured descriptor path.
func (a *App) loadDescriptors(ctx context.Context) ([]*descriptor.Descriptor, error) {
	overrides, err := a.config.VersionOverrides()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	descriptors, err := hcl.NewLoader(overrides).Load(ctx, a.config.Paths...)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if len(descriptors) == 0 {
		return nil, &ConfigError{Err: fmt.Errorf("no software descriptors found in %v", a.config.Paths)}
	}
	ctxlog.FromContext(ctx).Debug("Descriptors loaded.", "count", len(descriptors))
	return descriptors, nil
}

// ConfigError marks failures caused by user-supplied configuration or
// descriptor files rather than by the build itself.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }
