package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/orchestrator"
	"github.com/vk/omnibuild/internal/scheduler"
)

// Run executes a full build and writes the report. The returned report is
// nil when the build never started.
func (a *App) Run(ctx context.Context) (*orchestrator.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	descriptors, err := a.loadDescriptors(ctx)
	if err != nil {
		return nil, err
	}

	objects, err := newObjectStore(a.config.ObjectStore)
	if err != nil {
		return nil, err
	}
	store, closeCache, err := openCache(ctx, *a.config, objects)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	publisher, err := newPublisher(ctx, a.config.Events)
	if err != nil {
		return nil, err
	}
	defer publisher.Close()

	if a.config.StatusPort > 0 {
		if err := a.startStatusServer(ctx, a.config.StatusPort); err != nil {
			return nil, err
		}
		defer a.closeStatusServer(ctx)
	}

	orch := orchestrator.New(orchestrator.Options{
		Workers:    a.config.Workers,
		WorkDir:    a.config.WorkDir,
		InstallDir: a.config.InstallDir,
		Fetcher:    newFetcher(a.config.Fetch, objects),
		Backend:    a.backend,
		Cache:      store,
		Publisher:  publisher,
		OnStart:    func(e *scheduler.Executor) { a.executor.Store(e) },
	})

	report, err := orch.Run(ctx, descriptors)
	if err != nil {
		return nil, err
	}

	format, err := orchestrator.ParseFormat(a.config.ReportFormat)
	if err != nil {
		return report, err
	}
	if err := orchestrator.WriteReport(a.outW, report, format); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

// Plan validates the descriptors and prints the build order without
// fetching or building anything.
func (a *App) Plan(ctx context.Context) ([]string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	descriptors, err := a.loadDescriptors(ctx)
	if err != nil {
		return nil, err
	}
	order, err := orchestrator.New(orchestrator.Options{}).Plan(ctx, descriptors)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(descriptors))
	for _, d := range descriptors {
		deps[d.Name] = d.Dependencies
	}
	for i, name := range order {
		line := fmt.Sprintf("%3d. %s", i+1, name)
		if len(deps[name]) > 0 {
			line += " (after " + strings.Join(deps[name], ", ") + ")"
		}
		if _, err := io.WriteString(a.outW, line+"\n"); err != nil {
			return order, fmt.Errorf("write plan: %w", err)
		}
	}
	return order, nil
}
