package scheduler

import "fmt"

// DependencyFailedError is recorded on a component that was skipped because
// Dependency, a component it depends on directly or transitively, failed.
type DependencyFailedError struct {
	Component  string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("%s skipped: dependency %s failed", e.Component, e.Dependency)
}

func (e *DependencyFailedError) Kind() string { return "DependencyFailedError" }
