package archive

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/pithecene-io/zenodo-publisher/hasher"
	"github.com/pithecene-io/zenodo-publisher/iox"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

const step = "archive"

// Request describes one archive build.
type Request struct {
	// RepoDir is the local repository. Ignored when RemoteURL is set.
	RepoDir string
	// RemoteURL, when set, shallow-fetches Ref from that repository
	// instead of reading RepoDir.
	RemoteURL string
	// Ref is the tag (or commit, local mode only) to export.
	Ref string
	// Name is the project name; the content prefix is "<Name>-<Ref>/".
	Name   string
	Format Format
	// TarExtraArgs and GzipExtraArgs are merged over the defaults.
	TarExtraArgs  []string
	GzipExtraArgs []string
	// TreeAlgorithms are tree hashes computed on the exported tree.
	TreeAlgorithms []string
	// OutputDir receives the final archive.
	OutputDir string
}

// Prefix returns the content prefix without trailing slash.
func (r Request) Prefix() string {
	return r.Name + "-" + r.Ref
}

// Result is a built archive.
type Result struct {
	Path       string
	Format     Format
	Prefix     string
	TreeHashes map[string]string
	TarArgs    []string
	GzipArgs   []string
	// Warnings lists reproducibility warnings raised by the build.
	Warnings []string
}

// Builder exports and repacks archives.
type Builder struct {
	runner  runner.Runner
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewBuilder creates a Builder. logger and m may be nil.
func NewBuilder(r runner.Runner, logger *log.Logger, m *metrics.Collector) *Builder {
	if logger == nil {
		logger = log.Nop()
	}
	return &Builder{runner: r, logger: logger, metrics: m}
}

// Build produces the archive described by req.
// Scratch space is removed on every path; only the final archive in
// req.OutputDir survives.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if req.Ref == "" {
		return nil, types.Errorf(types.ErrConfiguration, step, "archive reference is required")
	}
	if req.Name == "" {
		return nil, types.Errorf(types.ErrConfiguration, step, "project name is required")
	}
	if req.OutputDir == "" {
		return nil, types.Errorf(types.ErrConfiguration, step, "output directory is required")
	}
	if req.Format == "" {
		req.Format = FormatZip
	}
	for _, a := range req.TreeAlgorithms {
		if !hasher.IsTree(a) {
			return nil, types.Errorf(types.ErrConfiguration, step, "%q is not a tree hash algorithm", a)
		}
	}

	tarArgs := MergeArgs(TarDefaultArgs, req.TarExtraArgs)
	gzipArgs := MergeArgs(GzipDefaultArgs, req.GzipExtraArgs)
	tarOpts, err := ParseTarArgs(tarArgs.Args)
	if err != nil {
		return nil, err
	}
	gzOpts, err := ParseGzipArgs(gzipArgs.Args)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Format:   req.Format,
		Prefix:   req.Prefix(),
		TarArgs:  tarArgs.Args,
		GzipArgs: gzipArgs.Args,
	}
	if req.Format.IsTar() && tarArgs.Overridden {
		res.Warnings = append(res.Warnings, "tar arguments differ from defaults; archive may not be reproducible")
		b.logger.Warn("tar arguments overridden", map[string]any{"args": tarArgs.Args})
	}
	if req.Format == FormatTarGz && gzipArgs.Overridden {
		res.Warnings = append(res.Warnings, "gzip arguments differ from defaults; archive may not be reproducible")
		b.logger.Warn("gzip arguments overridden", map[string]any{"args": gzipArgs.Args})
	}

	scratch, cleanup, err := iox.ScratchDir("", "zp-archive-*")
	if err != nil {
		return nil, types.NewError(types.ErrIO, step, err)
	}
	defer cleanup()

	zipPath := filepath.Join(scratch, FormatZip.FileName(res.Prefix))
	if !req.Format.IsTar() {
		zipPath = filepath.Join(req.OutputDir, FormatZip.FileName(res.Prefix))
	}
	if err := b.export(ctx, req, res.Prefix, zipPath, scratch); err != nil {
		return nil, err
	}

	if req.Format.IsTar() || len(req.TreeAlgorithms) > 0 {
		contentDir, err := ExtractZip(zipPath, filepath.Join(scratch, "tree"))
		if err != nil {
			return nil, types.NewError(types.ErrIO, step, err)
		}

		if len(req.TreeAlgorithms) > 0 {
			res.TreeHashes, err = hasher.Hash(contentDir, req.TreeAlgorithms)
			if err != nil {
				return nil, err
			}
			b.metrics.AddFilesHashed(len(req.TreeAlgorithms))
		}

		if req.Format.IsTar() {
			dst := filepath.Join(req.OutputDir, req.Format.FileName(res.Prefix))
			if err := writeTarball(dst, contentDir, req.Format, tarOpts, gzOpts); err != nil {
				return nil, types.NewError(types.ErrIO, step, err)
			}
			zipPath = dst
		}
	}

	res.Path = zipPath
	b.metrics.IncArchivesBuilt()
	b.logger.Info("archive built", map[string]any{
		"path":   res.Path,
		"format": string(res.Format),
		"prefix": res.Prefix,
	})
	return res, nil
}

// export writes the prefix-qualified zip of req.Ref to zipPath.
func (b *Builder) export(ctx context.Context, req Request, prefix, zipPath, scratch string) error {
	repo := req.RepoDir
	if req.RemoteURL != "" {
		repo = filepath.Join(scratch, "repo")
		if err := b.fetchRemote(ctx, req.RemoteURL, req.Ref, scratch, repo); err != nil {
			return err
		}
	}

	_, err := runner.Output(ctx, b.runner, runner.Cmd{
		Name: "git",
		Args: []string{"archive", "--format=zip", "--prefix=" + prefix + "/", "-o", zipPath, req.Ref},
		Dir:  repo,
	})
	if err != nil {
		return classify(types.ErrSourceState, err)
	}
	return nil
}

func (b *Builder) fetchRemote(ctx context.Context, url, ref, scratch, repo string) error {
	b.logger.Info("fetching remote tag", map[string]any{"remote": url, "ref": ref})

	steps := []runner.Cmd{
		{Name: "git", Args: []string{"init", "-q", repo}, Dir: scratch},
		{Name: "git", Args: []string{"remote", "add", "origin", url}, Dir: repo},
		{Name: "git", Args: []string{"fetch", "--depth=1", "origin", "refs/tags/" + ref + ":refs/tags/" + ref}, Dir: repo},
	}
	for _, cmd := range steps {
		if _, err := runner.Output(ctx, b.runner, cmd); err != nil {
			return classify(types.ErrRemote, err)
		}
	}
	return nil
}

// classify tags a command failure with kind, keeping an already
// classified error as is.
func classify(kind error, err error) error {
	var te *types.Error
	if errors.As(err, &te) {
		return err
	}
	return types.NewError(kind, step, err)
}
