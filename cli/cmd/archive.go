package cmd

import (
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/cli/config"
	"github.com/pithecene-io/zenodo-publisher/cli/render"
	"github.com/pithecene-io/zenodo-publisher/gitx"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/pipeline"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// archiveKeys are the .zenodo.env keys the archive command honors.
var archiveKeys = []string{
	"PROJECT_NAME",
	"DEBUG",
	"ARCHIVE_FORMAT",
	"ARCHIVE_TAR_EXTRA_ARGS",
	"ARCHIVE_GZIP_EXTRA_ARGS",
	"LEDGER_BACKEND",
	"LEDGER_PATH",
	"LEDGER_REGION",
	"LEDGER_ENDPOINT",
	"LEDGER_S3_PATH_STYLE",
}

// ArchiveCommand returns the archive command. It builds and hashes the
// archive of a tag without touching any release or deposit.
func ArchiveCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "tag",
			Usage:    "Tag to archive",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory receiving the archive (default: a new temporary directory)",
		},
		&cli.StringFlag{
			Name:  "remote",
			Usage: "Archive the tag from this repository URL via a shallow fetch",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Archive from a shallow fetch of origin instead of the local clone",
		},
		&cli.StringSliceFlag{
			Name:  "hash",
			Usage: "Hash algorithm to compute (repeatable; md5 and sha256 are always computed)",
		},
		WorkDirFlag,
		FormatFlag,
		NoColorFlag,
	}
	return &cli.Command{
		Name:   "archive",
		Usage:  "Build and hash the source archive of a tag",
		Flags:  append(flags, ConfigFlags(archiveKeys...)...),
		Action: archiveAction,
	}
}

func archiveAction(c *cli.Context) error {
	remote := c.String("remote")

	dir, err := workDir(c)
	if err != nil {
		return exitError(err)
	}
	root, rootErr := config.FindProjectRoot(dir)
	if rootErr != nil {
		if remote == "" {
			return exitError(rootErr)
		}
		root = ""
	}

	cfg, err := archiveConfig(c, root)
	if err != nil {
		return exitError(err)
	}
	name := cfg.ProjectName
	if root == "" && !c.IsSet(config.FlagName("PROJECT_NAME")) {
		name = repoName(remote)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger(types.ReleaseMeta{Project: name, Tag: c.String("tag")}, cfg.Debug)
	defer func() { _ = logger.Sync() }()
	m := metrics.NewCollector("archive", "", cfg.Ledger.Backend, name, c.String("tag"))

	l, err := openLedger(ctx, cfg.Ledger, false, logger, m)
	if err != nil {
		return exitError(err)
	}

	r := runner.Exec{}
	p := &pipeline.Archive{
		Archiver: archive.NewBuilder(r, logger, m),
		Ledger:   l,
		Logger:   logger,
		Metrics:  m,
	}
	if root != "" {
		p.Repo = gitx.NewRepository(root, r, logger)
	}

	rep, err := p.Run(ctx, pipeline.ArchiveOptions{
		ProjectName:    name,
		Tag:            c.String("tag"),
		OutputDir:      c.String("output-dir"),
		RemoteURL:      remote,
		NoCache:        c.Bool("no-cache"),
		Format:         cfg.ArchiveFormat,
		TarExtraArgs:   cfg.ArchiveTarExtraArgs,
		GzipExtraArgs:  cfg.ArchiveGzipExtraArgs,
		HashAlgorithms: c.StringSlice("hash"),
	})
	if err != nil {
		logger.Error("archive failed", map[string]any{"error": err.Error(), "kind": errorKind(err)})
		return exitError(err)
	}

	rend, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return rend.Render(rep)
}

// archiveConfig resolves the archive settings. An uninitialized project
// (or no project at all with --remote) runs on defaults; the archive
// command never compiles.
func archiveConfig(c *cli.Context, root string) (*config.Config, error) {
	env := map[string]string{}
	if root != "" {
		if _, err := os.Stat(filepath.Join(root, config.EnvFileName)); err == nil {
			if env, err = config.ReadEnvFile(root); err != nil {
				return nil, err
			}
		}
	}
	env["COMPILE"] = "false"
	return config.New(root, env, overrides(c))
}

// repoName derives a project name from a repository URL.
func repoName(url string) string {
	name := path.Base(strings.TrimRight(url, "/"))
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
