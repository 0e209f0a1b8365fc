package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/types"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "thesis")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, EnvFileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoad_Defaults(t *testing.T) {
	root := writeEnv(t, "")
	cfg, err := Load(root, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertEqual(t, "project name", cfg.ProjectName, "thesis")
	assertEqual(t, "main branch", cfg.MainBranch, "main")
	assertEqual(t, "archive format", string(cfg.ArchiveFormat), string(archive.FormatZip))
	assertEqual(t, "archive dir", cfg.ArchiveDir, filepath.Join(root, "archives"))
	assertEqual(t, "main file", cfg.MainFile, filepath.Join(root, "main.pdf"))
	assertEqual(t, "api url", cfg.ZenodoAPIURL, "https://zenodo.org/api")
	assertEqual(t, "prompt", cfg.PromptLevel, PromptStrict)
	assertEqual(t, "ledger", cfg.Ledger.Backend, "none")
	assertEqual(t, "notify", cfg.Notify.Adapter, NotifyNone)

	if !cfg.Compile || cfg.Debug || cfg.GPGSign || cfg.HasPublisher() {
		t.Errorf("bool defaults wrong: %+v", cfg)
	}
	if !slices.Equal(cfg.ArchiveTypes, []types.ArtifactType{types.ArtifactProject}) {
		t.Errorf("archive types = %v", cfg.ArchiveTypes)
	}
	if !slices.Equal(cfg.GPGExtraArgs, []string{"--armor"}) {
		t.Errorf("gpg args = %v", cfg.GPGExtraArgs)
	}
	if cfg.Notify.Retries != 3 {
		t.Errorf("retries = %d", cfg.Notify.Retries)
	}
	if cfg.HashAlgorithms() != nil || cfg.IdentifierArtifactTypes() != nil {
		t.Error("identifiers enabled by default")
	}
}

func TestLoad_FullEnvFile(t *testing.T) {
	root := writeEnv(t, `# release settings
PROJECT_NAME=MyThesis
MAIN_BRANCH=release
ARCHIVE_FORMAT=tar.gz
ARCHIVE_TYPES=pdf,project
PERSIST_TYPES=pdf
ARCHIVE_DIR=out
COMPILE=false
MAIN_FILE=build/thesis.pdf
MAKE_ARGS=LATEX=lualatex, -j2
PUBLISHER_TYPE=zenodo
ZENODO_TOKEN="abc123"
ZENODO_CONCEPT_DOI=10.5281/zenodo.123456
ZENODO_IDENTIFIER_HASH=true
ZENODO_IDENTIFIER_HASH_ALGORITHMS=sha256,tree
LEDGER_BACKEND=fs
LEDGER_PATH=.zp/ledger
NOTIFY_ADAPTER=redis
NOTIFY_URL=redis://localhost:6379/0
NOTIFY_RETRIES=5
`)
	cfg, err := Load(root, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertEqual(t, "project", cfg.ProjectName, "MyThesis")
	assertEqual(t, "branch", cfg.MainBranch, "release")
	assertEqual(t, "format", string(cfg.ArchiveFormat), "tar.gz")
	assertEqual(t, "archive dir", cfg.ArchiveDir, filepath.Join(root, "out"))
	assertEqual(t, "main file", cfg.MainFile, filepath.Join(root, "build", "thesis.pdf"))
	assertEqual(t, "token", cfg.ZenodoToken, "abc123")
	assertEqual(t, "concept", cfg.ConceptID, "123456")
	assertEqual(t, "ledger path", cfg.Ledger.Path, filepath.Join(root, ".zp", "ledger"))

	if !slices.Equal(cfg.MakeArgs, []string{"LATEX=lualatex", "-j2"}) {
		t.Errorf("make args = %q", cfg.MakeArgs)
	}
	if !slices.Equal(cfg.HashAlgorithms(), []string{"sha256", "tree"}) {
		t.Errorf("hash algorithms = %v", cfg.HashAlgorithms())
	}
	if !slices.Equal(cfg.IdentifierArtifactTypes(), []string{"pdf", "project"}) {
		t.Errorf("identifier types = %v, want the archive types", cfg.IdentifierArtifactTypes())
	}
	if cfg.Notify.Retries != 5 {
		t.Errorf("retries = %d", cfg.Notify.Retries)
	}
	if strings.Contains(cfg.String(), "abc123") {
		t.Error("String leaks the token")
	}
}

func TestLoad_OverridesWin(t *testing.T) {
	root := writeEnv(t, "MAIN_BRANCH=release\nDEBUG=false\n")
	cfg, err := Load(root, map[string]string{"MAIN_BRANCH": "main", "DEBUG": "true"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertEqual(t, "branch", cfg.MainBranch, "main")
	if !cfg.Debug {
		t.Error("override DEBUG=true ignored")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		overrides map[string]string
		contains  string
	}{
		{"unknown key", "PROJECT_NAME=x\nZENODO_TOKN=abc\nFOO=1\n", nil, "FOO, ZENODO_TOKN"},
		{"bad bool", "COMPILE=yes\n", nil, "COMPILE must be true or false"},
		{"bad choice", "ARCHIVE_FORMAT=rar\n", nil, "ARCHIVE_FORMAT must be one of"},
		{"bad algorithm", "ZENODO_IDENTIFIER_HASH_ALGORITHMS=crc32\n", nil, "crc32"},
		{"publisher without token", "PUBLISHER_TYPE=zenodo\nZENODO_CONCEPT_DOI=10.5281/zenodo.1\n", nil, "ZENODO_TOKEN"},
		{"publisher without doi", "PUBLISHER_TYPE=zenodo\nZENODO_TOKEN=t\n", nil, "ZENODO_CONCEPT_DOI"},
		{"bad doi", "PUBLISHER_TYPE=zenodo\nZENODO_TOKEN=t\nZENODO_CONCEPT_DOI=nonsense\n", nil, "concept id"},
		{"ledger without path", "LEDGER_BACKEND=s3\n", nil, "LEDGER_PATH"},
		{"notify without url", "NOTIFY_ADAPTER=webhook\n", nil, "NOTIFY_URL"},
		{"bad retries", "NOTIFY_RETRIES=-1\n", nil, "NOTIFY_RETRIES"},
		{"missing compile dir", "COMPILE_DIR=nowhere\n", nil, "COMPILE_DIR"},
		{"token on command line", "", map[string]string{"ZENODO_TOKEN": "t"}, "can only be set"},
		{"unknown override", "", map[string]string{"NOPE": "1"}, "NOPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeEnv(t, tt.env)
			_, err := Load(root, tt.overrides)
			if !errors.Is(err, types.ErrConfiguration) {
				t.Fatalf("err = %v, want configuration error", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("err = %v, want it to mention %q", err, tt.contains)
			}
		})
	}
}

func TestLoad_NotInitialized(t *testing.T) {
	_, err := Load(t.TempDir(), nil)
	if !errors.Is(err, types.ErrConfiguration) || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("err = %v", err)
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "chapters", "intro")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindProjectRoot(sub)
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, "root", got, root)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	for _, k := range []string{"ZENODO_TOKEN", "LEDGER_BACKEND", "NOTIFY_ADAPTER", "GPG_EXTRA_ARGS"} {
		if !slices.Contains(keys, k) {
			t.Errorf("missing key %s", k)
		}
	}
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
