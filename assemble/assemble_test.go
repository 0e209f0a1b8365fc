package assemble

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/runner/runnertest"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// archiveFake answers `git archive` with a one-file zip.
func archiveFake(t *testing.T) *runnertest.Fake {
	t.Helper()
	f := &runnertest.Fake{}
	f.On("git archive", func(cmd runner.Cmd) (*runner.Result, error) {
		var out, prefix string
		for i, a := range cmd.Args {
			if a == "-o" {
				out = cmd.Args[i+1]
			}
			if p, ok := strings.CutPrefix(a, "--prefix="); ok {
				prefix = p
			}
		}
		fh, err := os.Create(out)
		if err != nil {
			t.Fatal(err)
		}
		zw := zip.NewWriter(fh)
		w, _ := zw.Create(prefix + "main.tex")
		_, _ = w.Write([]byte("\\begin{document}\n"))
		_ = zw.Close()
		_ = fh.Close()
		return &runner.Result{}, nil
	})
	return f
}

type fakeSigner struct{ signed []string }

func (s *fakeSigner) Sign(_ context.Context, path string) (string, error) {
	s.signed = append(s.signed, path)
	sig := path + ".asc"
	return sig, os.WriteFile(sig, []byte("-----BEGIN PGP SIGNATURE-----\n"), 0o644)
}

func setup(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	main := filepath.Join(root, "main.pdf")
	if err := os.WriteFile(main, []byte("%PDF-1.7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Options{
		ProjectRoot: root,
		ProjectName: "thesis",
		Tag:         "v1.0.0",
		Types:       []types.ArtifactType{"pdf", types.ArtifactProject},
		Persist:     []types.ArtifactType{"pdf"},
		ArchiveDir:  filepath.Join(root, "archives"),
		MainFile:    main,
		Format:      archive.FormatZip,
	}
}

func TestAssemble(t *testing.T) {
	opts := setup(t)
	a := New(archive.NewBuilder(archiveFake(t), nil, nil), nil, nil, nil, nil)

	set, err := a.Assemble(t.Context(), opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(set.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(set.Artifacts))
	}
	pdf, proj := set.Artifacts[0], set.Artifacts[1]

	if pdf.Path != filepath.Join(opts.ArchiveDir, "thesis-v1.0.0.pdf") || !pdf.Persisted || !pdf.Preview {
		t.Errorf("pdf = %+v", pdf)
	}
	if pdf.Hashes["md5"] == "" || pdf.Hashes["sha256"] == "" {
		t.Errorf("pdf hashes = %v, want md5 and sha256", pdf.Hashes)
	}
	if proj.Type != types.ArtifactProject || proj.Persisted || proj.Extension != "zip" {
		t.Errorf("project = %+v", proj)
	}
	if filepath.Dir(proj.Path) == opts.ArchiveDir {
		t.Error("non-persisted project archive written to the archive dir")
	}

	set.Close()
	if _, err := os.Stat(proj.Path); !os.IsNotExist(err) {
		t.Error("scratch archive survived Close")
	}
	if _, err := os.Stat(pdf.Path); err != nil {
		t.Error("persisted pdf removed by Close")
	}
}

func TestAssemble_SignsEveryArtifact(t *testing.T) {
	opts := setup(t)
	signer := &fakeSigner{}
	a := New(archive.NewBuilder(archiveFake(t), nil, nil), nil, signer, nil, nil)

	set, err := a.Assemble(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()

	if len(signer.signed) != 2 {
		t.Fatalf("signed %v, want both artifacts", signer.signed)
	}
	for _, art := range set.Artifacts {
		if art.SignaturePath != art.Path+".asc" {
			t.Errorf("%s signature = %s", art.Name(), art.SignaturePath)
		}
		if art.SignatureHashes["md5"] == "" {
			t.Errorf("%s signature not hashed", art.Name())
		}
		if filepath.Dir(art.SignaturePath) != filepath.Dir(art.Path) {
			t.Errorf("%s signature not next to the signed file", art.Name())
		}
	}
}

func TestAssemble_Identifiers(t *testing.T) {
	opts := setup(t)
	opts.HashAlgorithms = []string{"sha256", "tree"}
	opts.IdentifierTypes = []string{"pdf", "project"}
	a := New(archive.NewBuilder(archiveFake(t), nil, nil), nil, nil, nil, nil)

	set, err := a.Assemble(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()

	if len(set.Identifiers) != 2 {
		t.Fatalf("identifiers = %+v, want sha256 and tree", set.Identifiers)
	}
	tree := set.Identifiers[1]
	if tree.Algorithm != "tree" || !strings.HasPrefix(tree.Formatted, "tree:") || len(tree.Components) != 2 {
		t.Errorf("tree identifier = %+v", tree)
	}

	proj := set.Artifacts[1]
	pdf := set.Artifacts[0]
	if len(pdf.Hashes["tree"]) != 40 {
		t.Errorf("pdf tree fallback = %q, want sha1 hex", pdf.Hashes["tree"])
	}
	if !slices.Contains(tree.Components, proj.Hashes["tree"]) {
		t.Error("project tree hash missing from identifier components")
	}
}

func TestAssemble_MissingMainFile(t *testing.T) {
	opts := setup(t)
	_ = os.Remove(opts.MainFile)
	a := New(archive.NewBuilder(archiveFake(t), nil, nil), nil, nil, nil, nil)

	_, err := a.Assemble(t.Context(), opts)
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("compile disabled: err = %v, want configuration error", err)
	}

	opts.Compile = true
	compiled := false
	a = New(archive.NewBuilder(archiveFake(t), nil, nil), CompileFunc(func(context.Context) error {
		compiled = true
		return nil
	}), nil, nil, nil)
	_, err = a.Assemble(t.Context(), opts)
	if !compiled {
		t.Error("compiler not invoked")
	}
	if !errors.Is(err, types.ErrBuild) {
		t.Fatalf("compile enabled: err = %v, want build error", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := setup(t)
	opts.Types = append(opts.Types, "docx")
	if err := opts.Validate(); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("unknown type: err = %v", err)
	}

	opts = setup(t)
	opts.HashAlgorithms = []string{"crc32"}
	if err := opts.Validate(); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("unknown algorithm: err = %v", err)
	}
}

func TestIdentifiers_NoMatch(t *testing.T) {
	ids, err := Identifiers([]types.Artifact{{Type: "pdf", Extension: "pdf"}}, []string{"project"}, []string{"sha256"})
	if err != nil || ids != nil {
		t.Errorf("Identifiers = %v, %v; want nil, nil", ids, err)
	}
}
