// Package events publishes build status changes to interested listeners.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/vk/omnibuild/internal/ctxlog"
)

// Event is one status change of one component.
type Event struct {
	RunID     string    `json:"run_id"`
	Component string    `json:"component"`
	Version   string    `json:"version"`
	Status    string    `json:"status"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Publisher delivers events. Publish must be safe for concurrent use and
// must not block the build for long.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// LogPublisher writes every event to the context logger.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	args := []any{"run_id", ev.RunID, "component", ev.Component, "status", ev.Status}
	if ev.CacheHit {
		args = append(args, "cache_hit", true)
	}
	if ev.Error != "" {
		logger.Warn("Component status changed.", append(args, "error", ev.Error)...)
		return
	}
	logger.Info("Component status changed.", args...)
}

func (LogPublisher) Close() error { return nil }

// Multi fans every event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		p.Publish(ctx, ev)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
