// Package assemble decides which artifacts belong to a release, produces
// them, hashes them, and optionally signs them.
//
// Two artifact sources exist: the compiled main file (tagged with its
// extension, e.g. "pdf") and the project archive ("project"). Each
// resolves to exactly one file, written either to the persisted archive
// directory or to a scratch directory owned by the returned Set.
package assemble

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/hasher"
	"github.com/pithecene-io/zenodo-publisher/iox"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

const step = "assemble"

// Compiler produces the main file.
type Compiler interface {
	Compile(ctx context.Context) error
}

// CompileFunc adapts a function to Compiler.
type CompileFunc func(ctx context.Context) error

// Compile calls f.
func (f CompileFunc) Compile(ctx context.Context) error { return f(ctx) }

// Signer writes a detached signature next to a file.
type Signer interface {
	Sign(ctx context.Context, path string) (string, error)
}

// Options selects and places the release artifacts.
type Options struct {
	ProjectRoot string
	ProjectName string
	Tag         string

	// Types lists the artifact types to produce.
	Types []types.ArtifactType
	// Persist lists the types written to ArchiveDir; others go to scratch.
	Persist    []types.ArtifactType
	ArchiveDir string

	// MainFile is the compiled file, e.g. <compile dir>/main.pdf.
	MainFile string
	// Compile enables the compile step before the main file is read.
	Compile bool

	// Archive settings for the project type.
	Format        archive.Format
	TarExtraArgs  []string
	GzipExtraArgs []string
	RemoteURL     string

	// HashAlgorithms are computed on every artifact on top of md5 and sha256.
	HashAlgorithms []string
	// IdentifierTypes selects artifacts (by type or extension) composed into
	// identifiers. Empty disables identifiers.
	IdentifierTypes []string
}

// MainType returns the artifact type of the main file (its extension).
func (o Options) MainType() types.ArtifactType {
	return types.ArtifactType(MainExtension(o.MainFile))
}

// MainExtension returns everything after the first dot of the file name,
// so "main.pdf" is "pdf".
func MainExtension(path string) string {
	_, ext, _ := strings.Cut(filepath.Base(path), ".")
	return ext
}

// Validate checks that every requested type is known.
func (o Options) Validate() error {
	main := o.MainType()
	for _, t := range o.Types {
		if t != types.ArtifactProject && t != main {
			return types.Errorf(types.ErrConfiguration, step,
				"unknown artifact type %q (known: %s, %s)", t, types.ArtifactProject, main)
		}
	}
	for _, t := range o.Persist {
		if t != types.ArtifactProject && t != main {
			return types.Errorf(types.ErrConfiguration, step, "unknown persist type %q", t)
		}
	}
	if slices.Contains(o.Persist, types.ArtifactProject) || slices.Contains(o.Persist, main) {
		if o.ArchiveDir == "" {
			return types.Errorf(types.ErrConfiguration, step, "persisted types require an archive directory")
		}
	}
	return hasher.Validate(o.HashAlgorithms)
}

// Set is an assembled release. Close removes its scratch files.
type Set struct {
	Artifacts   []types.Artifact
	Identifiers []types.Identifier
	Warnings    []string

	cleanup func()
}

// Close removes non-persisted files. Safe to call more than once.
func (s *Set) Close() {
	if s != nil && s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Assembler produces release artifacts.
type Assembler struct {
	archiver *archive.Builder
	compiler Compiler
	signer   Signer
	logger   *log.Logger
	metrics  *metrics.Collector
}

// New creates an Assembler. compiler and signer may be nil; a nil signer
// disables signing.
func New(archiver *archive.Builder, compiler Compiler, signer Signer, logger *log.Logger, m *metrics.Collector) *Assembler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Assembler{archiver: archiver, compiler: compiler, signer: signer, logger: logger, metrics: m}
}

// Assemble produces, hashes and signs every requested artifact. On error
// the scratch directory is already removed.
func (a *Assembler) Assemble(ctx context.Context, opts Options) (*Set, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	scratch, cleanup, err := iox.ScratchDir("", "zp-release-*")
	if err != nil {
		return nil, types.NewError(types.ErrIO, step, err)
	}
	set := &Set{cleanup: cleanup}
	fail := func(err error) (*Set, error) {
		set.Close()
		return nil, err
	}

	if opts.ArchiveDir != "" {
		if err := os.MkdirAll(opts.ArchiveDir, 0o755); err != nil {
			return fail(types.NewError(types.ErrIO, step, err))
		}
	}
	dirFor := func(t types.ArtifactType) (string, bool) {
		if slices.Contains(opts.Persist, t) {
			return opts.ArchiveDir, true
		}
		return scratch, false
	}

	algos := hasher.WithRequired(opts.HashAlgorithms)
	var treeAlgos []string
	for _, algo := range algos {
		if hasher.IsTree(algo) {
			treeAlgos = append(treeAlgos, algo)
		}
	}

	if main := opts.MainType(); slices.Contains(opts.Types, main) {
		dir, persisted := dirFor(main)
		art, err := a.mainArtifact(ctx, opts, dir)
		if err != nil {
			return fail(err)
		}
		art.Persisted = persisted
		set.Artifacts = append(set.Artifacts, art)
	}

	if slices.Contains(opts.Types, types.ArtifactProject) {
		dir, persisted := dirFor(types.ArtifactProject)
		res, err := a.archiver.Build(ctx, archive.Request{
			RepoDir:        opts.ProjectRoot,
			RemoteURL:      opts.RemoteURL,
			Ref:            opts.Tag,
			Name:           opts.ProjectName,
			Format:         opts.Format,
			TarExtraArgs:   opts.TarExtraArgs,
			GzipExtraArgs:  opts.GzipExtraArgs,
			TreeAlgorithms: treeAlgos,
			OutputDir:      dir,
		})
		if err != nil {
			return fail(err)
		}
		set.Warnings = append(set.Warnings, res.Warnings...)
		set.Artifacts = append(set.Artifacts, types.Artifact{
			Type:      types.ArtifactProject,
			Path:      res.Path,
			Extension: res.Format.Extension(),
			Persisted: persisted,
			Hashes:    res.TreeHashes,
		})
	}

	for i := range set.Artifacts {
		art := &set.Artifacts[i]
		hashes, err := hasher.Hash(art.Path, fileAlgorithms(algos, art))
		if err != nil {
			return fail(err)
		}
		if art.Hashes == nil {
			art.Hashes = hashes
		} else {
			for k, v := range hashes {
				art.Hashes[k] = v
			}
		}
		a.metrics.AddFilesHashed(1)
		a.logger.Info("artifact hashed", map[string]any{
			"file":   art.Name(),
			"type":   string(art.Type),
			"md5":    art.Hashes[types.AlgoMD5],
			"sha256": art.Hashes[types.AlgoSHA256],
		})
	}

	if a.signer != nil {
		for i := range set.Artifacts {
			art := &set.Artifacts[i]
			sig, err := a.signer.Sign(ctx, art.Path)
			if err != nil {
				return fail(err)
			}
			sigHashes, err := hasher.Hash(sig, []string{types.AlgoMD5, types.AlgoSHA256})
			if err != nil {
				return fail(err)
			}
			art.SignaturePath = sig
			art.SignatureHashes = sigHashes
		}
	}

	if len(opts.IdentifierTypes) > 0 && len(opts.HashAlgorithms) > 0 {
		ids, err := Identifiers(set.Artifacts, opts.IdentifierTypes, opts.HashAlgorithms)
		if err != nil {
			return fail(err)
		}
		set.Identifiers = ids
	}

	return set, nil
}

// fileAlgorithms drops tree algorithms already computed on the tree.
func fileAlgorithms(algos []string, art *types.Artifact) []string {
	out := make([]string, 0, len(algos))
	for _, algo := range algos {
		if _, done := art.Hashes[algo]; done {
			continue
		}
		out = append(out, algo)
	}
	return out
}

func (a *Assembler) mainArtifact(ctx context.Context, opts Options, dir string) (types.Artifact, error) {
	ext := MainExtension(opts.MainFile)

	if opts.Compile && a.compiler != nil {
		if err := a.compiler.Compile(ctx); err != nil {
			return types.Artifact{}, err
		}
	}
	if _, err := os.Stat(opts.MainFile); err != nil {
		if !opts.Compile {
			return types.Artifact{}, types.Errorf(types.ErrConfiguration, step,
				"main file not found at %s and compilation is disabled", opts.MainFile)
		}
		return types.Artifact{}, types.Errorf(types.ErrBuild, step,
			"main file not found at %s after compilation", opts.MainFile)
	}

	dst := filepath.Join(dir, opts.ProjectName+"-"+opts.Tag+"."+ext)
	if err := iox.CopyFile(opts.MainFile, dst, 0o644); err != nil {
		return types.Artifact{}, types.NewError(types.ErrIO, step, err)
	}
	a.logger.Info("main file copied", map[string]any{"from": opts.MainFile, "to": dst})

	return types.Artifact{
		Type:      types.ArtifactType(ext),
		Path:      dst,
		Extension: ext,
		Preview:   true,
	}, nil
}

// Identifiers composes one identifier per algorithm over the artifacts
// whose type or extension is listed in idTypes. It returns nil when no
// artifact matches.
func Identifiers(artifacts []types.Artifact, idTypes, algos []string) ([]types.Identifier, error) {
	var matching []types.Artifact
	for _, art := range artifacts {
		if slices.Contains(idTypes, string(art.Type)) || slices.Contains(idTypes, art.Extension) {
			matching = append(matching, art)
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}

	ids := make([]types.Identifier, 0, len(algos))
	for _, algo := range algos {
		id, err := hasher.Identifier(algo, matching)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
