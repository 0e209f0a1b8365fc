// Package runner models external command-line tools (git, gh, gpg, make)
// as a narrow synchronous interface so pipeline logic can be exercised
// with fakes instead of real processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Cmd describes one command invocation.
type Cmd struct {
	// Name is the program to run (e.g. "git").
	Name string
	// Args are the program arguments.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds KEY=VALUE entries appended to the inherited environment.
	// Later entries win over inherited ones with the same key.
	Env []string
}

// String renders the command line for diagnostics.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes commands synchronously.
// A non-zero exit is reported through Result.ExitCode, not as an error;
// the error return is reserved for failures to launch or wait.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (*Result, error)
}

// ExitError reports a command that exited non-zero.
type ExitError struct {
	Cmd      Cmd
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Cmd.Dir != "" {
		return fmt.Sprintf("%s in %s: exit status %d (stderr: %s)", e.Cmd, e.Cmd.Dir, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d (stderr: %s)", e.Cmd, e.ExitCode, e.Stderr)
}

// Output runs cmd and returns its trimmed stdout.
// A non-zero exit becomes an *ExitError.
func Output(ctx context.Context, r Runner, cmd Cmd) (string, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &ExitError{
			Cmd:      cmd,
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(string(res.Stderr)),
		}
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Exec runs commands as real child processes.
type Exec struct{}

// Run starts the process, waits for it and captures stdout and stderr.
func (Exec) Run(ctx context.Context, cmd Cmd) (*Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = deduplicateEnv(append(os.Environ(), cmd.Env...))
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}

	return result, nil
}

// deduplicateEnv keeps the last occurrence of each env var key so values
// appended after os.Environ() win over inherited duplicates.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

var _ Runner = Exec{}
