package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/vk/omnibuild/internal/cache"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/dag"
	"github.com/vk/omnibuild/internal/descriptor"
)

// Runner builds one component from source. pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, d *descriptor.Descriptor) error
}

// Options tunes an Executor.
type Options struct {
	// Workers is the size of the worker pool. Defaults to runtime.NumCPU().
	Workers int
	// Cache is consulted before and written after every build. A nil Cache
	// disables caching.
	Cache cache.Store
	// RunID is stamped on cache entries written by this run.
	RunID string
	// Observer, when set, receives a Record on every status change. It is
	// called from worker goroutines and must be safe for concurrent use.
	Observer func(Record)
}

// Schedule returns the build order for g: every component appears after all
// of its dependencies, ties broken by name.
func Schedule(g *dag.Graph) ([]string, error) {
	return g.TopologicalOrder()
}

// Executor runs one build of a graph.
type Executor struct {
	graph  *dag.Graph
	runner Runner
	opts   Options
	nodes  map[string]*node
	wg     sync.WaitGroup
	once   sync.Once
}

// New prepares an Executor for every component in g. Each graph node must
// have a descriptor in store.
func New(g *dag.Graph, store *descriptor.Store, runner Runner, opts Options) (*Executor, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	nodes := make(map[string]*node, g.Len())
	for _, name := range g.Nodes() {
		d, err := store.Get(name)
		if err != nil {
			return nil, err
		}
		nodes[name] = newNode(d)
	}
	return &Executor{graph: g, runner: runner, opts: opts, nodes: nodes}, nil
}

// Snapshot returns the current record of every component, sorted by name.
func (e *Executor) Snapshot() []Record {
	names := e.graph.Nodes()
	out := make([]Record, 0, len(names))
	for _, name := range names {
		out = append(out, e.nodes[name].record())
	}
	return out
}

// Execute builds the components in order, which must be a topological order
// of the graph covering each component exactly once. It blocks until every
// component reached a terminal status and returns the records in order.
// The returned error is reserved for invalid input; build failures are
// reported through the records.
func (e *Executor) Execute(ctx context.Context, order []string) ([]Record, error) {
	if err := e.checkOrder(order); err != nil {
		return nil, err
	}

	started := false
	e.once.Do(func() { started = true })
	if !started {
		return nil, fmt.Errorf("executor already ran")
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting build.", "components", len(order), "workers", e.opts.Workers)

	readyChan := make(chan *node, len(order))
	e.wg.Add(len(order))

	for _, name := range order {
		n := e.nodes[name]
		deps, _ := e.graph.Dependencies(name)
		n.depCount.Store(int32(len(deps)))
		if len(deps) == 0 {
			readyChan <- n
		}
	}

	var workers sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		workers.Add(1)
		go func(workerID int) {
			defer workers.Done()
			e.worker(ctx, readyChan, workerID)
		}(i + 1)
	}

	e.wg.Wait()
	close(readyChan)
	workers.Wait()

	records := make([]Record, 0, len(order))
	for _, name := range order {
		records = append(records, e.nodes[name].record())
	}
	logger.Info("Build finished.", "components", len(order))
	return records, nil
}

func (e *Executor) checkOrder(order []string) error {
	if len(order) != len(e.nodes) {
		return fmt.Errorf("order has %d components, graph has %d", len(order), len(e.nodes))
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		if _, ok := e.nodes[name]; !ok {
			return fmt.Errorf("order names unknown component %q", name)
		}
		if _, dup := pos[name]; dup {
			return fmt.Errorf("order lists %q twice", name)
		}
		pos[name] = i
	}
	for _, name := range order {
		deps, _ := e.graph.Dependencies(name)
		for _, dep := range deps {
			if pos[dep] > pos[name] {
				return fmt.Errorf("order places %q before its dependency %q", name, dep)
			}
		}
	}
	return nil
}

// finish moves n from one status to a terminal one, records the outcome and
// releases the WaitGroup. It reports whether the transition happened.
func (e *Executor) finish(n *node, from, to Status, err error) bool {
	if !e.settle(n, from, to, err) {
		return false
	}
	e.wg.Done()
	return true
}

// settle is finish without releasing the WaitGroup.
func (e *Executor) settle(n *node, from, to Status, err error) bool {
	n.mu.Lock()
	if !n.transition(from, to) {
		n.mu.Unlock()
		return false
	}
	n.err = err
	n.finished = time.Now()
	n.mu.Unlock()

	e.notify(n)
	return true
}

func (e *Executor) notify(n *node) {
	if e.opts.Observer != nil {
		e.opts.Observer(n.record())
	}
}
