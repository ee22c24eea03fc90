package dag

import (
	"fmt"
	"strings"
)

// UnknownDependencyError is returned when a component depends on a name that
// is not in the descriptor set.
type UnknownDependencyError struct {
	Component  string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("component %q depends on unknown component %q", e.Component, e.Dependency)
}

func (e *UnknownDependencyError) Kind() string { return "UnknownDependencyError" }

// CycleError is returned when the dependency graph contains a cycle. Path
// starts and ends with the same component, following dependency edges.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Kind() string { return "CycleError" }
