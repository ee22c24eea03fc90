package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"
)

// ObjectAPI is the subset of objectstore.Store the cache needs.
type ObjectAPI interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

// ObjectStore keeps one JSON document per key in an S3-compatible bucket,
// so several build hosts can share a cache.
type ObjectStore struct {
	api        ObjectAPI
	bucket     string
	prefix     string
	isNotFound func(error) bool
	mu         sync.Mutex
}

// NewObjectStore returns a store writing under bucket/prefix. isNotFound
// classifies a Get error as a cache miss.
func NewObjectStore(api ObjectAPI, bucket, prefix string, isNotFound func(error) bool) *ObjectStore {
	if isNotFound == nil {
		isNotFound = func(error) bool { return false }
	}
	return &ObjectStore{api: api, bucket: bucket, prefix: prefix, isNotFound: isNotFound}
}

func (s *ObjectStore) objectKey(key string) string {
	return path.Join(s.prefix, key+".json")
}

func (s *ObjectStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	rc, err := s.api.Get(ctx, s.bucket, s.objectKey(key))
	if err != nil {
		if s.isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache object: %w", err)
	}
	defer rc.Close()

	var e Entry
	if err := json.NewDecoder(rc).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("decode cache object %s: %w", s.objectKey(key), err)
	}
	return &e, true, nil
}

func (s *ObjectStore) Put(ctx context.Context, entry Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}

	// Serializes writers in this process; other hosts may still race, and
	// the later write then replaces an equivalent record.
	s.mu.Lock()
	defer s.mu.Unlock()

	objKey := s.objectKey(entry.Key)
	exists, err := s.api.Exists(ctx, s.bucket, objKey)
	if err != nil {
		return fmt.Errorf("stat cache object: %w", err)
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.api.Put(ctx, s.bucket, objKey, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return fmt.Errorf("write cache object: %w", err)
	}
	return nil
}
