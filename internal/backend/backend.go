// Package backend runs the build step for one component once its source is
// extracted. The orchestrator treats it as opaque: a nil error means the
// component built.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/descriptor"
)

// Job describes one component build.
type Job struct {
	Descriptor *descriptor.Descriptor
	// SourceDir holds the extracted source tree.
	SourceDir string
	// InstallDir is where the build is expected to place its output.
	InstallDir string
}

// Backend builds a single component.
type Backend interface {
	Build(ctx context.Context, job Job) error
}

// Func adapts a plain function to the Backend interface.
type Func func(ctx context.Context, job Job) error

func (f Func) Build(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// BuildError reports a failed build command.
type BuildError struct {
	Component string
	Command   string
	// Output is the tail of the combined stdout and stderr.
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("build of %s failed: %v", e.Component, e.Err)
	}
	return fmt.Sprintf("build of %s failed running %q: %v", e.Component, e.Command, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Kind names the error category in reports.
func (e *BuildError) Kind() string { return "BuildError" }

// outputTail is how many bytes of command output a BuildError keeps.
const outputTail = 4096

// Command runs a descriptor's build commands through a shell.
type Command struct {
	// Shell is the interpreter invoked as `Shell -c <command>`. Defaults to sh.
	Shell string
	// Env is appended to the inherited environment.
	Env []string
}

// NewCommand returns a Command backend using sh.
func NewCommand() *Command {
	return &Command{Shell: "sh"}
}

// Build runs every command in order inside job.SourceDir and stops at the
// first failure.
func (c *Command) Build(ctx context.Context, job Job) error {
	d := job.Descriptor
	logger := ctxlog.FromContext(ctx).With("component", d.Name)

	if err := os.MkdirAll(job.InstallDir, 0o755); err != nil {
		return &BuildError{Component: d.Name, Err: fmt.Errorf("create install dir: %w", err)}
	}

	shell := c.Shell
	if shell == "" {
		shell = "sh"
	}
	env := append(os.Environ(), c.Env...)
	env = append(env,
		"OMNIBUILD_NAME="+d.Name,
		"OMNIBUILD_VERSION="+d.Version,
		"OMNIBUILD_SOURCE_DIR="+job.SourceDir,
		"OMNIBUILD_INSTALL_DIR="+job.InstallDir,
	)

	for i, command := range d.Build {
		logger.Debug("Running build command.", "step", i+1, "command", command)

		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, shell, "-c", command)
		cmd.Dir = job.SourceDir
		cmd.Env = env
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			return &BuildError{Component: d.Name, Command: command, Output: tail(out.String()), Err: err}
		}
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimRight(s, "\n")
	if len(s) <= outputTail {
		return s
	}
	return s[len(s)-outputTail:]
}
