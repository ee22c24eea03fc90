package scheduler

import (
	"context"
	"time"

	"github.com/vk/omnibuild/internal/cache"
	"github.com/vk/omnibuild/internal/ctxlog"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "component", n.desc.Name)

		if err := ctx.Err(); err != nil {
			if e.finish(n, Pending, Cancelled, err) {
				workerLogger.Debug("Run cancelled before component started.")
			}
			e.cancelDependents(ctx, n)
			continue
		}

		n.mu.Lock()
		if !n.transition(Pending, InProgress) {
			// Already skipped or cancelled through another branch.
			n.mu.Unlock()
			continue
		}
		n.started = time.Now()
		n.mu.Unlock()
		e.notify(n)

		workerLogger.Debug("Worker picked up component.")
		hit, err := e.build(ctxlog.WithLogger(ctx, workerLogger), n)
		if err != nil {
			workerLogger.Error("Component failed.", "error", err)
			e.skipDependents(ctx, n)
			e.finish(n, InProgress, Failed, err)
			continue
		}

		n.mu.Lock()
		n.cacheHit = hit
		n.mu.Unlock()
		e.settle(n, InProgress, Success, nil)
		workerLogger.Info("Component built.", "cache_hit", hit)

		dependents, _ := e.graph.Dependents(n.desc.Name)
		for _, id := range dependents {
			dependent := e.nodes[id]
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent component.", "dependent", id)
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// build serves n from the cache or runs the pipeline. Work that has started
// is not interrupted by cancellation of ctx.
func (e *Executor) build(ctx context.Context, n *node) (cacheHit bool, err error) {
	logger := ctxlog.FromContext(ctx)
	runCtx := context.WithoutCancel(ctx)

	if e.opts.Cache != nil {
		_, ok, err := e.opts.Cache.Get(runCtx, n.key)
		switch {
		case err != nil:
			logger.Warn("Cache lookup failed, building anyway.", "error", err)
		case ok:
			return true, nil
		}
	}

	if err := e.runner.Run(runCtx, n.desc); err != nil {
		return false, err
	}

	if e.opts.Cache != nil {
		entry := cache.Entry{
			Key:      n.key,
			Name:     n.desc.Name,
			Version:  n.desc.Version,
			Checksum: n.desc.Source.Checksum,
			BuiltAt:  time.Now().UTC(),
			RunID:    e.opts.RunID,
		}
		if err := e.opts.Cache.Put(runCtx, entry); err != nil {
			logger.Warn("Failed to record build in cache.", "error", err)
		}
	}
	return false, nil
}

// skipDependents marks every transitive dependent of a failed component as
// skipped.
func (e *Executor) skipDependents(ctx context.Context, failed *node) {
	logger := ctxlog.FromContext(ctx)
	dependents, _ := e.graph.TransitiveDependents(failed.desc.Name)
	for _, id := range dependents {
		err := &DependencyFailedError{Component: id, Dependency: failed.desc.Name}
		if e.finish(e.nodes[id], Pending, Skipped, err) {
			logger.Warn("Skipping component.", "component", id, "failed_dependency", failed.desc.Name)
		}
	}
}

// cancelDependents marks every pending transitive dependent as cancelled.
func (e *Executor) cancelDependents(ctx context.Context, n *node) {
	dependents, _ := e.graph.TransitiveDependents(n.desc.Name)
	for _, id := range dependents {
		e.finish(e.nodes[id], Pending, Cancelled, ctx.Err())
	}
}
