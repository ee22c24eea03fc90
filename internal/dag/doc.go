// Package dag turns a descriptor set into a directed acyclic graph of
// components, where an edge from A to B means B depends on A.
//
// Build validates the set before any work starts: every dependency must name
// a registered component, and the graph must be acyclic. Cycle detection is
// an iterative depth-first search with three colours, visiting nodes and
// edges in name order so the reported cycle path is the same on every run.
package dag
