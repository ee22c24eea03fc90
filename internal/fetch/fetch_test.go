package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/omnibuild/internal/descriptor"
)

// newTestFetcher returns a Fetcher whose backoff waits are recorded instead
// of slept.
func newTestFetcher(opts Options) (*Fetcher, *[]time.Duration) {
	f := New(opts)
	var mu sync.Mutex
	var delays []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return ctx.Err()
	}
	return f, &delays
}

func TestFetchHTTP(t *testing.T) {
	t.Run("retries transient failures then succeeds", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			io.WriteString(w, "tarball")
		}))
		defer srv.Close()

		f, delays := newTestFetcher(Options{Attempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second})
		data, err := f.Fetch(context.Background(), descriptor.Source{URL: srv.URL + "/zlib.tar.gz"})
		require.NoError(t, err)
		assert.Equal(t, "tarball", string(data))
		assert.Equal(t, int32(3), hits.Load())
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
		assert.Equal(t, int64(3), f.Downloads())
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		f, _ := newTestFetcher(Options{Attempts: 3, InitialBackoff: time.Millisecond})
		_, err := f.Fetch(context.Background(), descriptor.Source{URL: srv.URL})

		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 3, netErr.Attempts)
		assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
		assert.Equal(t, int32(3), hits.Load())
		assert.Contains(t, netErr.Error(), "after 3 attempts")
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		f, delays := newTestFetcher(Options{Attempts: 4, InitialBackoff: time.Millisecond})
		_, err := f.Fetch(context.Background(), descriptor.Source{URL: srv.URL})

		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.False(t, netErr.Retryable)
		assert.Equal(t, 1, netErr.Attempts)
		assert.Equal(t, int32(1), hits.Load())
		assert.Empty(t, *delays)
	})

	t.Run("connection failures are network errors", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		f, _ := newTestFetcher(Options{Attempts: 2})
		_, err := f.Fetch(context.Background(), descriptor.Source{URL: addr})
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Retryable)
		assert.Equal(t, 2, netErr.Attempts)
	})

	t.Run("cancellation stops retrying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		f := New(Options{Attempts: 10, InitialBackoff: time.Hour})
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := f.Fetch(ctx, descriptor.Source{URL: srv.URL})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestBackoff(t *testing.T) {
	f := New(Options{Attempts: 10, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second})
	assert.Equal(t, time.Second, f.Backoff(1))
	assert.Equal(t, 2*time.Second, f.Backoff(2))
	assert.Equal(t, 4*time.Second, f.Backoff(3))
	assert.Equal(t, 5*time.Second, f.Backoff(4))
	assert.Equal(t, 5*time.Second, f.Backoff(9))
}

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.tar")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	f := New(Options{})
	data, err := f.Fetch(context.Background(), descriptor.Source{URL: "file://" + path})
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	_, err = f.Fetch(context.Background(), descriptor.Source{URL: "file://" + path + ".missing"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Retryable)
}

type fakeObjects struct {
	objects map[string]string
	calls   atomic.Int32
}

var errNoSuchKey = errors.New("NoSuchKey")

func (f *fakeObjects) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.calls.Add(1)
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errNoSuchKey
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestFetchObject(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{"mirror/src/zlib.tar.gz": "object"}}
	f, _ := newTestFetcher(Options{
		Attempts:   3,
		Objects:    objects,
		IsNotFound: func(err error) bool { return errors.Is(err, errNoSuchKey) },
	})

	data, err := f.Fetch(context.Background(), descriptor.Source{URL: "s3://mirror/src/zlib.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, "object", string(data))

	_, err = f.Fetch(context.Background(), descriptor.Source{URL: "s3://mirror/missing"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Retryable)
	assert.Equal(t, int32(2), objects.calls.Load())

	_, err = New(Options{}).Fetch(context.Background(), descriptor.Source{URL: "s3://mirror/src/zlib.tar.gz"})
	assert.ErrorContains(t, err, "no object store configured")
}

func TestFetchUnsupportedScheme(t *testing.T) {
	_, err := New(Options{}).Fetch(context.Background(), descriptor.Source{URL: "ftp://example.com/x"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "NetworkError", netErr.Kind())
}

func TestVerify(t *testing.T) {
	data := []byte("snowflake-connector-python source")
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	require.NoError(t, Verify(data, checksum))
	require.NoError(t, Verify(data, strings.ToUpper(checksum)))
	require.NoError(t, Verify(data, "sha256:"+checksum))

	t.Run("one flipped hex character fails", func(t *testing.T) {
		for i := range checksum {
			flipped := []byte(checksum)
			if flipped[i] == '0' {
				flipped[i] = '1'
			} else {
				flipped[i] = '0'
			}
			err := Verify(data, string(flipped))
			var mismatch *ChecksumMismatchError
			require.ErrorAs(t, err, &mismatch, "position %d", i)
			assert.Equal(t, checksum, mismatch.Actual)
		}
	})

	t.Run("other algorithm families", func(t *testing.T) {
		require.NoError(t, Verify([]byte(""), "d41d8cd98f00b204e9800998ecf8427e"))
		require.NoError(t, Verify([]byte(""), "da39a3ee5e6b4b0d3255bfef95601890afd80709"))
		var mismatch *ChecksumMismatchError
		require.ErrorAs(t, Verify([]byte("x"), "d41d8cd98f00b204e9800998ecf8427e"), &mismatch)
		assert.Equal(t, descriptor.MD5, mismatch.Algorithm)
	})

	t.Run("malformed checksum", func(t *testing.T) {
		require.Error(t, Verify(data, "not-hex"))
	})
}
