package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(key string) Entry {
	return Entry{
		Key:      key,
		Name:     "zlib",
		Version:  "1.3.1",
		Checksum: "9a93b2b7dfdac77ceba5a558a580e74667dd6fede4585b91eefb60f03b72df23",
		BuiltAt:  time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		RunID:    "run-1",
	}
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleEntry("k1")
	require.NoError(t, s.Put(ctx, want))

	got, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	second := sampleEntry("k1")
	second.RunID = "run-2"
	require.NoError(t, s.Put(ctx, second), "a repeated put is a no-op")
	got, _, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID, "first write wins")

	assert.ErrorIs(t, s.Put(ctx, Entry{}), ErrEmptyKey)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryConcurrentPut(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Put(context.Background(), sampleEntry("same")))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Len())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	exerciseStore(t, s)

	raw, err := os.ReadFile(filepath.Join(dir, "k1.hcl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `name     = "zlib"`)
	assert.Contains(t, string(raw), `built_at = "2026-10-19T08:00:00Z"`)

	t.Run("survives reopening", func(t *testing.T) {
		reopened, err := NewFileStore(dir)
		require.NoError(t, err)
		_, ok, err := reopened.Get(context.Background(), "k1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("corrupt record is an error", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.hcl"), []byte("name = "), 0o644))
		_, _, err := s.Get(context.Background(), "bad")
		require.Error(t, err)
	})
}

var errNoSuchKey = errors.New("NoSuchKey")

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errNoSuchKey
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeObjects) Exists(_ context.Context, bucket, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok, nil
}

func (f *fakeObjects) Put(_ context.Context, bucket, key string, body io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = b
	f.puts++
	return nil
}

func TestObjectStore(t *testing.T) {
	api := newFakeObjects()
	s := NewObjectStore(api, "builds", "cache", func(err error) bool { return errors.Is(err, errNoSuchKey) })
	exerciseStore(t, s)

	assert.Equal(t, 1, api.puts)
	assert.Contains(t, api.objects, "builds/cache/k1.json")

	t.Run("other read errors surface", func(t *testing.T) {
		s := NewObjectStore(api, "builds", "cache", nil)
		_, _, err := s.Get(context.Background(), "absent")
		require.ErrorIs(t, err, errNoSuchKey)
	})
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("OMNIBUILD_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OMNIBUILD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, `DELETE FROM omnibuild_cache WHERE key = 'k1'`)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "")
	require.Error(t, err)
}
