// Package cmd provides CLI commands for the zp binary.
package cmd

import (
	"os"
	"slices"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/cli/config"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for history and inspect.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (history, inspect only)",
	}

	// WorkDirFlag selects the directory the project root is searched from.
	WorkDirFlag = &cli.StringFlag{
		Name:  "work-dir",
		Usage: "Directory to search for the project root (default: current directory)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ConfigFlags returns override flags for the given .zenodo.env keys, or
// for every overridable key when none are given.
func ConfigFlags(keys ...string) []cli.Flag {
	var flags []cli.Flag
	for _, f := range config.OverrideFlags() {
		if len(keys) > 0 && !slices.Contains(keys, f.Key) {
			continue
		}
		usage := "Override " + f.Key
		if f.Bool {
			flags = append(flags, &cli.BoolFlag{Name: f.Name, Usage: usage})
		} else {
			flags = append(flags, &cli.StringFlag{Name: f.Name, Usage: usage})
		}
	}
	return flags
}

// overrides collects the config flags set on the command line, keyed like
// the env file.
func overrides(c *cli.Context) map[string]string {
	out := map[string]string{}
	for _, f := range config.OverrideFlags() {
		if !c.IsSet(f.Name) {
			continue
		}
		if f.Bool {
			out[f.Key] = strconv.FormatBool(c.Bool(f.Name))
		} else {
			out[f.Key] = c.String(f.Name)
		}
	}
	return out
}

// workDir returns --work-dir or the current directory.
func workDir(c *cli.Context) (string, error) {
	if dir := c.String(WorkDirFlag.Name); dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// loadConfig finds the project root and resolves its configuration with
// the command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	dir, err := workDir(c)
	if err != nil {
		return nil, err
	}
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return nil, err
	}
	return config.Load(root, overrides(c))
}
