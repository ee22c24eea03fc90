package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/omnibuild/internal/ctxlog"
)

// DefaultEventName is the Socket.IO event that carries status changes.
const DefaultEventName = "build_status"

// SocketIOOptions configures the Socket.IO connection.
type SocketIOOptions struct {
	URL                string
	Namespace          string
	EventName          string
	InsecureSkipVerify bool
	// ConnectTimeout bounds the wait for the initial connection.
	ConnectTimeout time.Duration
}

// SocketIOPublisher emits events to a Socket.IO server.
type SocketIOPublisher struct {
	event string
	emit  func(event string, args ...any)
	close func()
}

// DialSocketIO connects to the server over WebSocket and waits for the
// connection to be established.
func DialSocketIO(ctx context.Context, opts SocketIOOptions) (*SocketIOPublisher, error) {
	logger := ctxlog.FromContext(ctx).With("publisher", "socketio", "url", opts.URL)
	logger.Info("Connecting event publisher...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	if opts.EventName == "" {
		opts.EventName = DefaultEventName
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}

	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		sockOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Event publisher connected", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(opts.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", opts.ConnectTimeout)
	}

	return &SocketIOPublisher{
		event: opts.EventName,
		emit:  func(event string, args ...any) { io.Emit(event, args...) },
		close: func() { io.Disconnect() },
	}, nil
}

// Publish emits ev as a JSON-shaped map.
func (p *SocketIOPublisher) Publish(ctx context.Context, ev Event) {
	payload := map[string]any{
		"run_id":    ev.RunID,
		"component": ev.Component,
		"version":   ev.Version,
		"status":    ev.Status,
		"cache_hit": ev.CacheHit,
		"time":      ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Error != "" {
		payload["error"] = ev.Error
	}
	ctxlog.FromContext(ctx).Debug("Emitting event", "event", p.event, "component", ev.Component, "status", ev.Status)
	p.emit(p.event, payload)
}

// Close disconnects from the server.
func (p *SocketIOPublisher) Close() error {
	p.close()
	return nil
}
