package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vk/omnibuild/internal/cache"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/events"
	"github.com/vk/omnibuild/internal/fetch"
	"github.com/vk/omnibuild/internal/objectstore"
)

// newObjectStore connects to the configured endpoint, or returns nil when
// none is configured.
func newObjectStore(cfg config.ObjectStoreConfig) (*objectstore.Store, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return objectstore.New(objectstore.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}

func newFetcher(cfg config.FetchConfig, objects *objectstore.Store) *fetch.Fetcher {
	opts := fetch.Options{
		Attempts:       cfg.Attempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Client:         &http.Client{Timeout: cfg.Timeout},
		IsNotFound:     objectstore.IsNotFound,
	}
	if objects != nil {
		opts.Objects = objects
	}
	return fetch.New(opts)
}

// closer releases a resource opened during wiring.
type closer func() error

// openCache builds the configured cache backend.
func openCache(ctx context.Context, cfg config.Config, objects *objectstore.Store) (cache.Store, closer, error) {
	noop := func() error { return nil }
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Opening build cache.", "backend", cfg.Cache.Backend)

	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, noop, nil
	case config.CacheMemory:
		return cache.NewMemory(), noop, nil
	case config.CacheFile:
		s, err := cache.NewFileStore(cfg.Cache.Dir)
		return s, noop, err
	case config.CacheS3:
		if objects == nil {
			return nil, nil, fmt.Errorf("s3 cache requires an object store endpoint")
		}
		if err := objects.EnsureBucket(ctx, cfg.Cache.Bucket, cfg.ObjectStore.Region); err != nil {
			return nil, nil, fmt.Errorf("prepare cache bucket: %w", err)
		}
		return cache.NewObjectStore(objects, cfg.Cache.Bucket, cfg.Cache.Prefix, objectstore.IsNotFound), noop, nil
	case config.CachePostgres:
		s, err := cache.OpenPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// newPublisher always logs status changes and, when configured, streams
// them to a Socket.IO server.
func newPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.SocketIOURL == "" {
		return events.LogPublisher{}, nil
	}
	sio, err := events.DialSocketIO(ctx, events.SocketIOOptions{
		URL:                cfg.SocketIOURL,
		Namespace:          cfg.Namespace,
		EventName:          cfg.EventName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return events.Multi{events.LogPublisher{}, sio}, nil
}
