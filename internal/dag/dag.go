package dag

import (
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Has reports whether a node with the given ID exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Nodes returns every node ID in ascending order.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return sortedIDs(g.nodes)
}

// Dependencies returns the sorted IDs of the nodes the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Dependents returns the sorted IDs of the nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.dependents), nil
}

// TransitiveDependents returns every node that directly or indirectly
// depends on the given node, sorted by ID.
func (g *Graph) TransitiveDependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}

	seen := make(map[string]*node)
	queue := []*node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for depID, dependent := range n.dependents {
			if _, ok := seen[depID]; ok {
				continue
			}
			seen[depID] = dependent
			queue = append(queue, dependent)
		}
	}
	return sortedIDs(seen), nil
}

// DetectCycles checks the graph for any cycles. It returns a *CycleError
// holding the full cycle path when one is found.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	type frame struct {
		id   string
		deps []string
		next int
	}

	colors := make(map[string]color, len(g.nodes))
	for _, root := range sortedIDs(g.nodes) {
		if colors[root] != unvisited {
			continue
		}

		colors[root] = inProgress
		stack := []*frame{{id: root, deps: sortedIDs(g.nodes[root].deps)}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next == len(top.deps) {
				colors[top.id] = done
				stack = stack[:len(stack)-1]
				continue
			}

			dep := top.deps[top.next]
			top.next++

			switch colors[dep] {
			case inProgress:
				// Back-edge: the cycle is the stack suffix starting at dep.
				var path []string
				for i, f := range stack {
					if f.id == dep {
						for _, member := range stack[i:] {
							path = append(path, member.id)
						}
						break
					}
				}
				return &CycleError{Path: append(path, dep)}
			case unvisited:
				colors[dep] = inProgress
				stack = append(stack, &frame{id: dep, deps: sortedIDs(g.nodes[dep].deps)})
			}
		}
	}

	return nil
}

// TopologicalOrder returns the node IDs so that every dependency precedes
// its dependents. Among nodes that are ready at the same time, the
// lexicographically smallest ID comes first. The graph must be acyclic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	var ready []string
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, dependent := range sortedIDs(g.nodes[id].dependents) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				i := sort.SearchStrings(ready, dependent)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = dependent
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("graph is not acyclic: ordered %d of %d nodes", len(order), len(g.nodes))
	}
	return order, nil
}

func sortedIDs(nodes map[string]*node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
