// Package runner executes host commands for the orchestrator.
//
// Every external tool invocation (compose CLI, docker exec sessions,
// host utilities) goes through the Runner interface so commands stay
// structured argument lists instead of interpolated shell strings, and
// so tests can substitute a recording implementation.
//
// Two execution modes exist. Run is strict: a non-zero exit is an
// error and the caller is expected to abort. Try is tolerant: the exit
// code is folded into the Result and only a failure to spawn the
// process at all is reported as an error. Probe-then-act sequences use
// Try for the probe and Run for the act.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Cmd describes a single external command as an argument vector.
type Cmd struct {
	// Name is the program to execute, resolved via PATH.
	Name string

	// Args are the program arguments, exec-style (no shell splitting).
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the current process environment.
	Env []string

	// Interactive attaches the command to the orchestrator's own
	// stdin/stdout/stderr instead of capturing output. Used for
	// attached container sessions and log following.
	Interactive bool
}

// String renders the command for diagnostics.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result holds the outcome of an executed command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout with surrounding whitespace trimmed.
func (r Result) Output() string {
	return strings.TrimSpace(r.Stdout)
}

// Runner executes external commands.
type Runner interface {
	// Run executes cmd and returns an error if it exits non-zero.
	Run(ctx context.Context, cmd Cmd) (Result, error)

	// Try executes cmd and reports a non-zero exit through the
	// Result only. An error is returned solely when the command
	// could not be started.
	Try(ctx context.Context, cmd Cmd) (Result, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

// NewExecRunner creates a Runner backed by the host OS.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (e *ExecRunner) Run(ctx context.Context, cmd Cmd) (Result, error) {
	res, err := e.Try(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s exited with code %d: %s",
			cmd.Name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

func (e *ExecRunner) Try(ctx context.Context, cmd Cmd) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	if cmd.Interactive {
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	} else {
		// Host tools like stty need the controlling terminal even
		// when output is captured.
		c.Stdin = os.Stdin
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	res := Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to execute %s: %w", cmd.Name, err)
	}

	return res, nil
}
