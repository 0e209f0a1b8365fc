// Package build runs the project's compile step.
package build

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

const step = "build"

// Target is the make target that produces the release files.
const Target = "deploy"

// Compiler invokes `make deploy` in the compile directory.
type Compiler struct {
	runner runner.Runner
	logger *log.Logger
}

// New creates a Compiler.
func New(r runner.Runner, logger *log.Logger) *Compiler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Compiler{runner: r, logger: logger}
}

// Compile runs the deploy target in dir with the given make arguments.
// env is exported to make on top of the inherited environment.
func (c *Compiler) Compile(ctx context.Context, dir string, makeArgs []string, env map[string]string) error {
	makefile := filepath.Join(dir, "Makefile")
	if _, err := os.Stat(makefile); err != nil {
		return types.Errorf(types.ErrConfiguration, step, "Makefile not found at %s", makefile)
	}

	c.logger.Info("building", map[string]any{"dir": dir, "args": makeArgs})

	args := append([]string{Target}, makeArgs...)
	res, err := c.runner.Run(ctx, runner.Cmd{Name: "make", Args: args, Dir: dir, Env: envList(env)})
	if err != nil {
		return types.NewError(types.ErrBuild, step, err)
	}
	if res.ExitCode != 0 {
		c.logger.Error("build failed", map[string]any{
			"exit_code": res.ExitCode,
			"stdout":    string(res.Stdout),
			"stderr":    string(res.Stderr),
		})
		return types.Errorf(types.ErrBuild, step, "make %s exited with %d", Target, res.ExitCode)
	}
	return nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
