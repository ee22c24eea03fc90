// Package descriptor defines the component descriptor record and the Store
// that holds a validated, immutable set of them for one orchestration run.
//
// # Why an explicit Store
//
// Manifest-driven build tools usually collect software definitions into a
// process-wide registry as files are evaluated. Here the set is an explicit
// value: callers construct a Store, register descriptors into it, and hand it
// to the graph builder. Two runs never share state unless they share a Store.
//
// # Immutability
//
// Register copies the descriptor it is given and Get returns a copy, so no
// caller can mutate a registered record. The dependency list is copied as
// well, preserving its declared order.
package descriptor
