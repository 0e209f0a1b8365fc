package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/cli/config"
	"github.com/pithecene-io/zenodo-publisher/cli/render"
	"github.com/pithecene-io/zenodo-publisher/cli/tui"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// ledgerKeys are the .zenodo.env keys the read-only ledger commands honor.
var ledgerKeys = []string{
	"PROJECT_NAME",
	"LEDGER_BACKEND",
	"LEDGER_PATH",
	"LEDGER_REGION",
	"LEDGER_ENDPOINT",
	"LEDGER_S3_PATH_STYLE",
}

func ledgerFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(ReadOnlyFlags(), WorkDirFlag)
	flags = append(flags, extra...)
	return append(flags, ConfigFlags(ledgerKeys...)...)
}

// HistoryCommand returns the history command.
// History lists the ledger entries of the project, newest first.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded release and archive runs",
		Flags: ledgerFlags(&cli.IntFlag{
			Name:  "limit",
			Usage: "Show at most this many entries (0 for all)",
		}),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	l, cfg, err := readLedger(c)
	if err != nil {
		return exitError(err)
	}

	entries, err := l.List(c.Context, cfg.ProjectName)
	if err != nil {
		return exitError(types.NewError(types.ErrIO, "history", err))
	}
	slices.Reverse(entries)
	if n := c.Int("limit"); n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewHistory, entries)
	}
	return r.Render(entries)
}

// InspectCommand returns the inspect command.
// Inspect shows the latest ledger entry recorded for a tag.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the recorded run of a tag",
		Flags: ledgerFlags(&cli.StringFlag{
			Name:     "tag",
			Usage:    "Release tag",
			Required: true,
		}),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	l, cfg, err := readLedger(c)
	if err != nil {
		return exitError(err)
	}

	tag := c.String("tag")
	entry, err := l.Get(c.Context, cfg.ProjectName, tag)
	if errors.Is(err, ledger.ErrNoEntries) {
		return cli.Exit(fmt.Sprintf("no recorded run for %s %s", cfg.ProjectName, tag), exitUnexpected)
	}
	if err != nil {
		return exitError(types.NewError(types.ErrIO, "inspect", err))
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspect, entry)
	}
	return r.Render(entry)
}

// readLedger resolves the project configuration and opens its ledger.
// A disabled ledger is a configuration error for the read commands.
func readLedger(c *cli.Context) (*ledger.Ledger, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Ledger.Backend == ledger.BackendNone {
		return nil, nil, types.Errorf(types.ErrConfiguration, "ledger",
			"the ledger is disabled; set LEDGER_BACKEND in %s", config.EnvFileName)
	}
	l, err := openLedger(c.Context, cfg.Ledger, true, log.Nop(), nil)
	if err != nil {
		return nil, nil, err
	}
	return l, cfg, nil
}
