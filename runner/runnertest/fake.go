// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/pithecene-io/zenodo-publisher/runner"
)

// Handler produces the result of a matched command.
type Handler func(cmd runner.Cmd) (*runner.Result, error)

type rule struct {
	prefix  string
	handler Handler
}

// Fake records every command and answers from scripted rules.
// Rules match on the command line prefix ("git rev-parse"); the most
// recently added matching rule wins. Unmatched commands succeed with
// empty output.
type Fake struct {
	mu    sync.Mutex
	rules []rule
	calls []runner.Cmd
}

// On registers a handler for commands whose line starts with prefix.
func (f *Fake) On(prefix string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, handler: h})
	return f
}

// Stdout registers a successful reply with the given stdout.
func (f *Fake) Stdout(prefix, stdout string) *Fake {
	return f.On(prefix, OK(stdout))
}

// Fail registers a non-zero reply.
func (f *Fake) Fail(prefix string, code int, stderr string) *Fake {
	return f.On(prefix, func(runner.Cmd) (*runner.Result, error) {
		return &runner.Result{ExitCode: code, Stderr: []byte(stderr)}, nil
	})
}

// Run implements runner.Runner.
func (f *Fake) Run(_ context.Context, cmd runner.Cmd) (*runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	line := cmd.String()
	var h Handler
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			h = f.rules[i].handler
			break
		}
	}
	f.mu.Unlock()

	if h == nil {
		return &runner.Result{}, nil
	}
	return h(cmd)
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []runner.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runner.Cmd, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether any recorded command line starts with prefix.
func (f *Fake) Called(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			return true
		}
	}
	return false
}

// OK returns a handler replying with exit 0 and stdout.
func OK(stdout string) Handler {
	return func(runner.Cmd) (*runner.Result, error) {
		return &runner.Result{Stdout: []byte(stdout)}, nil
	}
}

var _ runner.Runner = (*Fake)(nil)
