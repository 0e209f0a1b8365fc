package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/gitx"
	"github.com/pithecene-io/zenodo-publisher/hasher"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// ArchiveOptions configures a standalone archive build.
type ArchiveOptions struct {
	ProjectName string
	Tag         string
	// OutputDir receives the archive. Empty means a fresh temporary
	// directory that is kept after the run.
	OutputDir string
	// RemoteURL archives the tag from a shallow fetch of that repository.
	RemoteURL string
	// NoCache archives from a shallow fetch of origin.
	NoCache bool

	Format         archive.Format
	TarExtraArgs   []string
	GzipExtraArgs  []string
	HashAlgorithms []string
}

// ArchiveReport describes a built archive.
type ArchiveReport struct {
	Path     string            `json:"path"`
	Format   archive.Format    `json:"format"`
	Prefix   string            `json:"prefix"`
	Hashes   map[string]string `json:"hashes"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Archive runs the archive command.
type Archive struct {
	Repo     *gitx.Repository
	Archiver *archive.Builder
	Ledger   *ledger.Ledger
	Logger   *log.Logger
	Metrics  *metrics.Collector
	Now      func() time.Time
}

// Run builds and hashes the archive of opts.Tag.
func (p *Archive) Run(ctx context.Context, opts ArchiveOptions) (*ArchiveReport, error) {
	p.Metrics.IncRunStarted()
	rep, err := p.run(ctx, opts)
	if err != nil {
		p.Metrics.IncRunFailed()
		return nil, err
	}
	p.Metrics.IncRunCompleted()

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	report := &Report{
		Project:  opts.ProjectName,
		Tag:      opts.Tag,
		Outcome:  OutcomeArchived,
		Warnings: rep.Warnings,
		Artifacts: []types.Artifact{{
			Type:      types.ArtifactProject,
			Path:      rep.Path,
			Extension: rep.Format.Extension(),
			Persisted: true,
			Hashes:    rep.Hashes,
		}},
	}
	if err := p.Ledger.Append(ctx, report.ledgerEntry("archive", ledger.MetricsFrom(p.Metrics.Snapshot()), now())); err != nil {
		p.Logger.Warn("ledger write failed", map[string]any{"error": err.Error()})
	}
	return rep, nil
}

func (p *Archive) run(ctx context.Context, opts ArchiveOptions) (*ArchiveReport, error) {
	if opts.Tag == "" {
		return nil, types.Errorf(types.ErrConfiguration, "archive", "--tag is required")
	}
	if err := hasher.Validate(opts.HashAlgorithms); err != nil {
		return nil, err
	}

	remote := opts.RemoteURL
	if remote == "" && p.Repo == nil {
		return nil, types.Errorf(types.ErrConfiguration, "archive", "--remote is required outside a repository")
	}
	if remote == "" && opts.NoCache {
		url, err := p.Repo.RemoteURL(ctx)
		if err != nil {
			return nil, err
		}
		remote = url
	}

	out := opts.OutputDir
	if out == "" {
		dir, err := os.MkdirTemp("", "zp-archive-*")
		if err != nil {
			return nil, types.NewError(types.ErrIO, "archive", err)
		}
		out = dir
	} else if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, types.NewError(types.ErrIO, "archive", err)
	}

	var treeAlgos, byteAlgos []string
	for _, a := range hasher.WithRequired(opts.HashAlgorithms) {
		if hasher.IsTree(a) {
			treeAlgos = append(treeAlgos, a)
		} else {
			byteAlgos = append(byteAlgos, a)
		}
	}

	var repoDir string
	if p.Repo != nil {
		repoDir = p.Repo.Dir()
	}
	res, err := p.Archiver.Build(ctx, archive.Request{
		RepoDir:        repoDir,
		RemoteURL:      remote,
		Ref:            opts.Tag,
		Name:           opts.ProjectName,
		Format:         opts.Format,
		TarExtraArgs:   opts.TarExtraArgs,
		GzipExtraArgs:  opts.GzipExtraArgs,
		TreeAlgorithms: treeAlgos,
		OutputDir:      out,
	})
	if err != nil {
		return nil, err
	}

	hashes, err := hasher.HashFile(res.Path, byteAlgos)
	if err != nil {
		return nil, err
	}
	for a, d := range res.TreeHashes {
		hashes[a] = d
	}
	p.Metrics.AddFilesHashed(1)

	for algo, digest := range hashes {
		p.Logger.Info("archive hash", map[string]any{"algorithm": algo, "digest": digest})
	}
	return &ArchiveReport{
		Path:     res.Path,
		Format:   res.Format,
		Prefix:   res.Prefix,
		Hashes:   hashes,
		Warnings: res.Warnings,
	}, nil
}
