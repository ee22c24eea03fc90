// Package orchestrator drives a whole build: it registers descriptors,
// builds and validates the dependency graph, executes it and aggregates the
// outcome into a Report.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vk/omnibuild/internal/backend"
	"github.com/vk/omnibuild/internal/cache"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/dag"
	"github.com/vk/omnibuild/internal/descriptor"
	"github.com/vk/omnibuild/internal/events"
	"github.com/vk/omnibuild/internal/pipeline"
	"github.com/vk/omnibuild/internal/scheduler"
)

// Options wires the collaborators of a run.
type Options struct {
	Workers    int
	WorkDir    string
	InstallDir string
	Fetcher    pipeline.Fetcher
	Backend    backend.Backend
	// Cache defaults to an in-memory store.
	Cache cache.Store
	// Publisher receives every status change. Optional.
	Publisher events.Publisher
	// Runner replaces the fetch/verify/extract/build pipeline. Optional.
	Runner scheduler.Runner
	// OnStart is called with the executor before any component starts, so
	// callers can observe progress through Snapshot.
	OnStart func(*scheduler.Executor)
}

// Orchestrator runs builds.
type Orchestrator struct {
	opts Options
	now  func() time.Time
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Runner == nil {
		opts.Runner = pipeline.New(opts.Fetcher, opts.Backend, opts.WorkDir, opts.InstallDir)
	}
	return &Orchestrator{opts: opts, now: time.Now}
}

// Plan validates the descriptors and returns the build order without
// building anything.
func (o *Orchestrator) Plan(ctx context.Context, descriptors []*descriptor.Descriptor) ([]string, error) {
	_, g, err := prepare(ctx, descriptors)
	if err != nil {
		return nil, err
	}
	return scheduler.Schedule(g)
}

// Run builds descriptors. A non-nil error means the run never started:
// duplicate names, invalid descriptors, unknown dependencies or cycles are
// all reported before anything is fetched. Component failures are reported
// through the Report.
func (o *Orchestrator) Run(ctx context.Context, descriptors []*descriptor.Descriptor) (*Report, error) {
	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	store, g, err := prepare(ctx, descriptors)
	if err != nil {
		return nil, err
	}
	order, err := scheduler.Schedule(g)
	if err != nil {
		return nil, err
	}
	logger.Info("Build plan ready.", "order", order)

	opts := scheduler.Options{
		Workers: o.opts.Workers,
		Cache:   o.opts.Cache,
		RunID:   runID,
	}
	if pub := o.opts.Publisher; pub != nil {
		// Terminal events of in-flight builds are published after cancellation.
		pubCtx := context.WithoutCancel(ctx)
		opts.Observer = func(r scheduler.Record) {
			pub.Publish(pubCtx, eventFor(runID, r, o.now()))
		}
	}

	exec, err := scheduler.New(g, store, o.opts.Runner, opts)
	if err != nil {
		return nil, err
	}
	if o.opts.OnStart != nil {
		o.opts.OnStart(exec)
	}

	report := &Report{RunID: runID, StartedAt: o.now()}
	records, err := exec.Execute(ctx, order)
	if err != nil {
		return nil, err
	}
	report.FinishedAt = o.now()
	for _, r := range records {
		report.Results = append(report.Results, resultFrom(r))
	}

	logger.Info("Run complete.", "succeeded", report.Succeeded(), "duration", report.Duration())
	return report, nil
}

// prepare registers descriptors and builds the validated graph.
func prepare(ctx context.Context, descriptors []*descriptor.Descriptor) (*descriptor.Store, *dag.Graph, error) {
	store := descriptor.NewStore()
	for _, d := range descriptors {
		if err := store.Register(d); err != nil {
			return nil, nil, err
		}
	}
	g, err := dag.Build(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	return store, g, nil
}

func eventFor(runID string, r scheduler.Record, at time.Time) events.Event {
	return events.Event{
		RunID:     runID,
		Component: r.Name,
		Version:   r.Version,
		Status:    r.Status.String(),
		CacheHit:  r.CacheHit,
		Error:     r.Error,
		Time:      at,
	}
}

// ErrorKind names the category of err for reports: the Kind of the first
// typed error in its chain.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Cancelled"
	}
	return "Error"
}
