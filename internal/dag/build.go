package dag

import (
	"context"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/descriptor"
)

// Build constructs a complete, validated dependency graph from a descriptor
// store. It fails with an *UnknownDependencyError or a *CycleError before
// returning any graph.
func Build(ctx context.Context, store *descriptor.Store) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "descriptors", store.Len())

	descriptors := store.All()
	graph := New()

	// First pass: one node per component.
	for _, d := range descriptors {
		graph.AddNode(d.Name)
	}

	// Second pass: link dependencies in declared order.
	for _, d := range descriptors {
		for _, dep := range d.Dependencies {
			if dep == d.Name {
				return nil, &CycleError{Path: []string{d.Name, d.Name}}
			}
			if !graph.Has(dep) {
				return nil, &UnknownDependencyError{Component: d.Name, Dependency: dep}
			}
			if err := graph.AddEdge(dep, d.Name); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Build: Node linking complete.", "node_count", graph.Len())

	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: Cycle detection passed.")

	return graph, nil
}
