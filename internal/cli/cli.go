package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/omnibuild/internal/app"
	"github.com/vk/omnibuild/internal/dag"
	"github.com/vk/omnibuild/internal/descriptor"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitBuildFailed = 1
	ExitUsage       = 2
	ExitFatal       = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode classifies err. Descriptor and graph errors are fatal pre-build
// errors even when they surface while loading files.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		exitErr   *ExitError
		dupErr    *descriptor.DuplicateNameError
		invalid   *descriptor.InvalidDescriptorError
		unknown   *dag.UnknownDependencyError
		cycle     *dag.CycleError
		configErr *app.ConfigError
	)
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.As(err, &dupErr), errors.As(err, &invalid),
		errors.As(err, &unknown), errors.As(err, &cycle):
		return ExitFatal
	case errors.As(err, &configErr):
		return ExitUsage
	case errors.Is(err, context.Canceled):
		return ExitBuildFailed
	default:
		return ExitFatal
	}
}

// asExitError converts err into an *ExitError carrying its exit code.
func asExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitCode(err), Message: err.Error()}
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}
