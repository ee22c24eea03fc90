package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/omnibuild/internal/descriptor"
)

// Record is a point-in-time view of one component build.
type Record struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	Checksum   string    `json:"checksum"`
	CacheKey   string    `json:"cache_key"`
	Status     Status    `json:"status"`
	CacheHit   bool      `json:"cache_hit"`
	Err        error     `json:"-"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Duration is the wall time between start and finish, zero when the build
// never started.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// node is the mutable execution state behind a Record.
type node struct {
	desc *descriptor.Descriptor
	key  string

	// depCount is the number of dependencies that have not succeeded yet.
	depCount atomic.Int32
	state    atomic.Int32

	mu       sync.Mutex
	cacheHit bool
	err      error
	started  time.Time
	finished time.Time
}

func newNode(d *descriptor.Descriptor) *node {
	return &node{desc: d, key: d.CacheKey()}
}

func (n *node) status() Status {
	return Status(n.state.Load())
}

// transition moves the node from one status to another and reports whether
// it won the race.
func (n *node) transition(from, to Status) bool {
	return n.state.CompareAndSwap(int32(from), int32(to))
}

func (n *node) record() Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := Record{
		Name:       n.desc.Name,
		Version:    n.desc.Version,
		Checksum:   n.desc.Source.Checksum,
		CacheKey:   n.key,
		Status:     n.status(),
		CacheHit:   n.cacheHit,
		Err:        n.err,
		StartedAt:  n.started,
		FinishedAt: n.finished,
	}
	if n.err != nil {
		r.Error = n.err.Error()
	}
	return r
}
