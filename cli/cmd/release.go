package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/assemble"
	"github.com/pithecene-io/zenodo-publisher/build"
	"github.com/pithecene-io/zenodo-publisher/cli/config"
	"github.com/pithecene-io/zenodo-publisher/cli/prompt"
	"github.com/pithecene-io/zenodo-publisher/cli/render"
	"github.com/pithecene-io/zenodo-publisher/gitx"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/pipeline"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// ReleaseCommand returns the release command.
// This is the only command that creates releases or publishes versions.
func ReleaseCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "tag",
			Usage: "Release tag to create when HEAD is not released yet",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Release title (default: the tag)",
		},
		&cli.StringFlag{
			Name:  "notes",
			Usage: "Release notes",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Skip confirmation prompts",
		},
		WorkDirFlag,
		FormatFlag,
		NoColorFlag,
	}
	return &cli.Command{
		Name:   "release",
		Usage:  "Release HEAD, build the artifacts and publish a new deposit version",
		Flags:  append(flags, ConfigFlags()...),
		Action: releaseAction,
	}
}

func releaseAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exitError(err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger(types.ReleaseMeta{Project: cfg.ProjectName, ConceptID: cfg.ConceptID}, cfg.Debug)
	defer func() { _ = logger.Sync() }()
	logger.Debug("configuration loaded", map[string]any{"config": cfg.String()})

	m := metrics.NewCollector("release", cfg.PublisherType, cfg.Ledger.Backend, cfg.ProjectName, c.String("tag"))

	p, closeFn, err := newRelease(ctx, c, cfg, runner.Exec{}, logger, m)
	if err != nil {
		return exitError(err)
	}
	defer closeFn()

	opts, err := releaseOptions(c, cfg)
	if err != nil {
		return exitError(err)
	}

	report, err := p.Run(ctx, opts)
	if err != nil {
		logger.Error("release failed", map[string]any{
			"error": err.Error(),
			"kind":  errorKind(err),
		})
		return exitError(err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(report)
}

// newRelease wires the release pipeline from cfg. The returned func
// releases the notifier.
func newRelease(ctx context.Context, c *cli.Context, cfg *config.Config, r runner.Runner, logger *log.Logger, m *metrics.Collector) (*pipeline.Release, func(), error) {
	deposits, err := newDeposits(cfg, logger, m)
	if err != nil {
		return nil, nil, err
	}
	notifier, err := newNotifier(cfg.Notify)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if notifier != nil {
			_ = notifier.Close()
		}
	}
	l, err := openLedger(ctx, cfg.Ledger, false, logger, m)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	var prompter pipeline.Prompter = prompt.New(cfg.PromptLevel, cfg.ProjectName, c.App.Reader, c.App.ErrWriter)
	if c.Bool("yes") {
		prompter = prompt.Yes{}
	}

	return &pipeline.Release{
		Repo:     gitx.NewRepository(cfg.ProjectRoot, r, logger),
		Compiler: build.New(r, logger),
		Archiver: archive.NewBuilder(r, logger, m),
		Signer:   newSigner(cfg, r, logger, m),
		Deposits: deposits,
		Ledger:   l,
		Notifier: notifier,
		Prompter: prompter,
		Logger:   logger,
		Metrics:  m,
	}, closeFn, nil
}

func releaseOptions(c *cli.Context, cfg *config.Config) (pipeline.ReleaseOptions, error) {
	opts := pipeline.ReleaseOptions{
		MainBranch: cfg.MainBranch,
		Tag:        c.String("tag"),
		Title:      c.String("title"),
		Notes:      c.String("notes"),
		Compile:    cfg.Compile,
		CompileDir: cfg.CompileDir,
		MakeArgs:   cfg.MakeArgs,
		Assemble: assemble.Options{
			ProjectRoot:     cfg.ProjectRoot,
			ProjectName:     cfg.ProjectName,
			Types:           cfg.ArchiveTypes,
			Persist:         cfg.PersistTypes,
			ArchiveDir:      cfg.ArchiveDir,
			MainFile:        cfg.MainFile,
			Format:          cfg.ArchiveFormat,
			TarExtraArgs:    cfg.ArchiveTarExtraArgs,
			GzipExtraArgs:   cfg.ArchiveGzipExtraArgs,
			HashAlgorithms:  cfg.HashAlgorithms(),
			IdentifierTypes: cfg.IdentifierArtifactTypes(),
		},
	}
	if !cfg.HasPublisher() {
		return opts, nil
	}

	override, err := config.LoadOverride(cfg.ProjectRoot)
	if err != nil {
		return opts, err
	}
	opts.Deposit = &pipeline.DepositOptions{
		ConceptID:       cfg.ConceptID,
		Force:           cfg.ForceUpdate,
		PublicationDate: cfg.PublicationDate,
		Override:        override,
		InfoToRelease:   cfg.InfoToRelease,
	}
	return opts, nil
}

func errorKind(err error) string {
	if kind := types.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "unexpected"
}
