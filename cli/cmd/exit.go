package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Exit codes. A skipped publication exits with exitSuccess.
const (
	exitSuccess       = 0
	exitUnexpected    = 1
	exitConfiguration = 2
	exitSourceState   = 3
	exitBuild         = 4
	exitIO            = 5
	exitRemote        = 6
	exitAborted       = 7
)

var kindCodes = map[error]int{
	types.ErrConfiguration: exitConfiguration,
	types.ErrSourceState:   exitSourceState,
	types.ErrBuild:         exitBuild,
	types.ErrIO:            exitIO,
	types.ErrRemote:        exitRemote,
	types.ErrAborted:       exitAborted,
}

// ExitCode maps an error to the process exit code by its kind.
// Unclassified errors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if code, ok := kindCodes[types.KindOf(err)]; ok {
		return code
	}
	return exitUnexpected
}

// exitError converts err into a cli.ExitCoder carrying its exit code.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return err
	}
	return cli.Exit(err.Error(), ExitCode(err))
}
