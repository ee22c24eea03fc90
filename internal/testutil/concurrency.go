package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/omnibuild/internal/backend"
)

// SleeperBackend is a build backend for concurrency tests. Every build
// sleeps for a fixed duration and records when it ran.
type SleeperBackend struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleeperBackend creates a SleeperBackend. completionChan, when non-nil,
// receives each component name as its build finishes.
func NewSleeperBackend(completionChan chan<- string, sleep time.Duration) *SleeperBackend {
	return &SleeperBackend{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

func (m *SleeperBackend) Build(_ context.Context, job backend.Job) error {
	startTime := time.Now()
	time.Sleep(m.sleepDuration)
	endTime := time.Now()

	m.mu.Lock()
	m.ExecutionTimes[job.Descriptor.Name] = &ExecutionRecord{Start: startTime, End: endTime}
	m.mu.Unlock()

	if m.completionChan != nil {
		m.completionChan <- job.Descriptor.Name
	}
	return nil
}

// Record returns the execution record for name, or nil.
func (m *SleeperBackend) Record(name string) *ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecutionTimes[name]
}
