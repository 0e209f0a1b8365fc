// Package main provides the zp CLI entrypoint.
//
// Usage:
//
//	zp <command> [options]
//
// Exit codes:
//   - 0: success, including a skipped publication
//   - 1: unexpected error
//   - 2: configuration error
//   - 3: source state error (unsynced branch, dirty tree, tag conflict)
//   - 4: build error
//   - 5: io error (hashing, archiving, filesystem)
//   - 6: remote error (deposit API, release host)
//   - 7: aborted at a confirmation prompt
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/cli/cmd"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// osExit is replaced in tests.
var osExit = os.Exit

func main() {
	app := &cli.App{
		Name:           "zp",
		Usage:          "Release a git project and publish it as a new deposit version",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ReleaseCommand(),
			cmd.ArchiveCommand(),
			cmd.HistoryCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		osExit(cmd.ExitCode(err))
	}
}

// exitErrHandler prints err and exits with its code. cli.ExitCoder codes
// are preserved; other errors are mapped by their kind.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	osExit(code)
}

// exitStatus returns the exit code and the message to print for err.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return cmd.ExitCode(err), "Error: " + err.Error()
}
