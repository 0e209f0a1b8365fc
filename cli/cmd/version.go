package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/cli/render"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// VersionCommand returns the version command.
// It reads no configuration and needs no project.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", exitUnexpected)
		}

		return r.Render(map[string]string{
			"version": types.Version,
			"commit":  commit,
		})
	}
}
