package fetch

import (
	"fmt"

	"github.com/vk/omnibuild/internal/descriptor"
)

// NetworkError is returned when a source artifact cannot be retrieved.
// Retryable errors are attempted again until the retry budget is spent.
type NetworkError struct {
	URL        string
	StatusCode int
	Attempts   int
	Retryable  bool
	Err        error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("fetch %s", e.URL)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Kind() string { return "NetworkError" }

// ChecksumMismatchError is returned when the computed digest of an artifact
// differs from the declared checksum.
type ChecksumMismatchError struct {
	Algorithm descriptor.Algorithm
	Expected  string
	Actual    string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s checksum mismatch: expected %s, got %s", e.Algorithm, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Kind() string { return "ChecksumMismatchError" }
