// Package fetch retrieves source artifacts and authenticates them against
// their declared checksum.
//
// Retries are explicit: a retryable NetworkError is attempted again after an
// exponential delay (the initial backoff doubled per attempt, capped at the
// maximum) until the attempt budget is spent. Cancellation of the context
// ends the wait immediately.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/descriptor"
)

// ObjectGetter reads objects from S3-compatible storage.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Options configures a Fetcher.
type Options struct {
	// Attempts is the total number of tries per artifact. Values below one
	// are treated as one.
	Attempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Client performs HTTP requests. http.DefaultClient when nil.
	Client *http.Client
	// Objects serves s3:// URLs. s3 sources fail when nil.
	Objects ObjectGetter
	// IsNotFound classifies object store errors as permanent.
	IsNotFound func(error) bool
}

// Fetcher downloads artifacts with bounded retry. Concurrent requests for the
// same URL share a single download.
type Fetcher struct {
	opts  Options
	group singleflight.Group
	count atomic.Int64
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.IsNotFound == nil {
		opts.IsNotFound = func(error) bool { return false }
	}
	return &Fetcher{opts: opts, sleep: sleepContext}
}

// Downloads returns how many transfer attempts the Fetcher has made.
func (f *Fetcher) Downloads() int64 {
	return f.count.Load()
}

// Fetch retrieves the bytes at src.URL.
func (f *Fetcher) Fetch(ctx context.Context, src descriptor.Source) ([]byte, error) {
	v, err, shared := f.group.Do(src.URL, func() (any, error) {
		return f.fetchWithRetry(ctx, src.URL)
	})
	if shared {
		ctxlog.FromContext(ctx).Debug("Shared in-flight download.", "url", src.URL)
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Backoff returns the delay before the given retry (1-based).
func (f *Fetcher) Backoff(retry int) time.Duration {
	d := f.opts.InitialBackoff
	for i := 1; i < retry; i++ {
		d *= 2
		if f.opts.MaxBackoff > 0 && d >= f.opts.MaxBackoff {
			return f.opts.MaxBackoff
		}
	}
	if f.opts.MaxBackoff > 0 && d > f.opts.MaxBackoff {
		return f.opts.MaxBackoff
	}
	return d
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx).With("url", rawURL)

	var last *NetworkError
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		if attempt > 1 {
			delay := f.Backoff(attempt - 1)
			logger.Warn("Retrying download.", "attempt", attempt, "delay", delay, "error", last.Err)
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		f.count.Add(1)
		data, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			logger.Debug("Download complete.", "attempt", attempt, "bytes", len(data))
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			return nil, err
		}
		last = netErr
		if !netErr.Retryable {
			netErr.Attempts = attempt
			return nil, netErr
		}
	}

	last.Attempts = f.opts.Attempts
	return nil, last
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("parse url: %w", err)}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL)
	case "file":
		return f.fetchFile(rawURL, u)
	case "s3":
		return f.fetchObject(ctx, rawURL, u)
	default:
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("unsupported url scheme %q", u.Scheme)}
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, &NetworkError{URL: rawURL, StatusCode: resp.StatusCode, Retryable: retryable}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Retryable: true, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

func (f *Fetcher) fetchFile(rawURL string, u *url.URL) ([]byte, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, rawURL string, u *url.URL) ([]byte, error) {
	if f.opts.Objects == nil {
		return nil, &NetworkError{URL: rawURL, Err: errors.New("no object store configured")}
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, &NetworkError{URL: rawURL, Err: errors.New("s3 url must be s3://bucket/key")}
	}

	rc, err := f.opts.Objects.Get(ctx, bucket, key)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Retryable: !f.opts.IsNotFound(err), Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Retryable: true, Err: err}
	}
	return data, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
