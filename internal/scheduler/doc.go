// Package scheduler orders components and builds them concurrently.
//
// # Why Scheduler Exists
//
// Components form a dependency graph. Anything whose dependencies have all
// succeeded can be built right away, so independent subgraphs build in
// parallel while every dependent still waits for its dependencies.
//
// # How It Works
//
// Schedule produces a deterministic topological order. Execute then:
//  1. Seeds a buffered ready queue with every component that has no
//     dependencies.
//  2. Starts a fixed pool of workers reading from that queue.
//  3. A worker checks the cache for the component's key. A hit completes the
//     component without fetching anything; a miss runs the build pipeline
//     and caches the result on success.
//  4. On success, each dependent's atomic counter is decremented; the ones
//     that reach zero are pushed to the queue together.
//  5. On failure, every transitive dependent is marked skipped with a
//     DependencyFailedError naming the failed component. Unrelated branches
//     keep building.
//
// # Cancellation
//
// Once the run context is cancelled no new component starts: anything still
// pending becomes cancelled, together with its dependents. Builds already in
// progress run on a context detached from the cancellation and finish
// normally.
//
// # Thread-Safety
//
// Status changes go through compare-and-swap, so each component reaches
// exactly one terminal status no matter how many workers race on it.
// Snapshot may be called from any goroutine while Execute runs.
package scheduler
