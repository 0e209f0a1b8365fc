// Package config builds the zp configuration from the .zenodo.env file at
// the project root, command-line overrides, and built-in defaults, in
// that priority order. It also loads the deposit metadata override file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/deposit"
	"github.com/pithecene-io/zenodo-publisher/gitx"
	"github.com/pithecene-io/zenodo-publisher/hasher"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// EnvFileName is the per-project settings file.
const EnvFileName = ".zenodo.env"

const step = "config"

// Publisher types.
const PublisherZenodo = "zenodo"

// Prompt validation levels.
const (
	PromptStrict = "strict"
	PromptLight  = "light"
)

// Notification adapters.
const (
	NotifyNone    = "none"
	NotifyWebhook = "webhook"
	NotifyRedis   = "redis"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	ProjectRoot string
	ProjectName string
	MainBranch  string
	Debug       bool

	ArchiveFormat        archive.Format
	ArchiveTarExtraArgs  []string
	ArchiveGzipExtraArgs []string
	// ArchiveDir is absolute; it defaults to <root>/archives.
	ArchiveDir   string
	ArchiveTypes []types.ArtifactType
	PersistTypes []types.ArtifactType

	Compile    bool
	CompileDir string
	// MainFile is CompileDir joined with MAIN_FILE.
	MainFile string
	MakeArgs []string

	// PublisherType is empty when no deposit is configured.
	PublisherType   string
	ZenodoToken     string
	ConceptDOI      string
	ConceptID       string
	ZenodoAPIURL    string
	PublicationDate string
	ForceUpdate     bool
	InfoToRelease   bool

	IdentifierHash       bool
	IdentifierTypes      []string
	IdentifierAlgorithms []string

	GPGSign      bool
	GPGUID       string
	GPGOverwrite bool
	GPGExtraArgs []string

	PromptLevel string

	Ledger ledger.Config
	Notify NotifyConfig
}

// NotifyConfig selects the release-completed notifier.
type NotifyConfig struct {
	Adapter string
	URL     string
	Channel string
	Retries int
}

// HasPublisher reports whether a deposit is configured.
func (c *Config) HasPublisher() bool {
	return c.PublisherType != ""
}

// HashAlgorithms returns the algorithms computed on every artifact on
// top of md5 and sha256.
func (c *Config) HashAlgorithms() []string {
	if !c.IdentifierHash {
		return nil
	}
	return c.IdentifierAlgorithms
}

// IdentifierArtifactTypes returns the artifact types composed into
// identifiers, or nil when identifiers are disabled.
func (c *Config) IdentifierArtifactTypes() []string {
	if !c.IdentifierHash {
		return nil
	}
	if len(c.IdentifierTypes) == 0 {
		out := make([]string, len(c.ArchiveTypes))
		for i, t := range c.ArchiveTypes {
			out[i] = string(t)
		}
		return out
	}
	return c.IdentifierTypes
}

// FindProjectRoot walks up from start to the git root.
func FindProjectRoot(start string) (string, error) {
	return gitx.FindRoot(start)
}

// ReadEnvFile parses <root>/.zenodo.env.
func ReadEnvFile(root string) (map[string]string, error) {
	path := filepath.Join(root, EnvFileName)
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.Errorf(types.ErrConfiguration, step,
			"%s not found in %s; the project is not initialized", EnvFileName, root)
	}
	if err != nil {
		return nil, types.Errorf(types.ErrConfiguration, step, "reading %s: %v", path, err)
	}
	return env, nil
}

// Load reads the env file under root and resolves it with overrides,
// keyed like the env file.
func Load(root string, overrides map[string]string) (*Config, error) {
	env, err := ReadEnvFile(root)
	if err != nil {
		return nil, err
	}
	return New(root, env, overrides)
}

// New resolves a Config from parsed env file values and overrides.
func New(root string, env, overrides map[string]string) (*Config, error) {
	if err := checkKeys(env, overrides); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(options))
	for _, o := range options {
		v, ok := overrides[o.Key]
		if !ok {
			v, ok = env[o.Key]
		}
		if !ok {
			v = o.Default
		}
		v = strings.TrimSpace(v)
		if err := validate(o, v); err != nil {
			return nil, err
		}
		values[o.Key] = v
	}

	r := resolver{root: root, values: values}
	cfg := r.build()
	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkKeys(env, overrides map[string]string) error {
	var unknown []string
	for k := range env {
		if _, ok := lookupOption(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return types.Errorf(types.ErrConfiguration, step,
			"unknown keys in %s: %s", EnvFileName, strings.Join(unknown, ", "))
	}
	for k := range overrides {
		o, ok := lookupOption(k)
		if !ok {
			return types.Errorf(types.ErrConfiguration, step, "unknown override %s", k)
		}
		if o.Secret {
			return types.Errorf(types.ErrConfiguration, step,
				"%s can only be set in %s", k, EnvFileName)
		}
	}
	return nil
}

func validate(o option, v string) error {
	switch o.Kind {
	case kindBool:
		if v != "true" && v != "false" {
			return types.Errorf(types.ErrConfiguration, step,
				"%s must be true or false, got %q", o.Key, v)
		}
	case kindChoice:
		if !slices.Contains(o.Choices, v) {
			return types.Errorf(types.ErrConfiguration, step,
				"%s must be one of %s, got %q", o.Key, strings.Join(o.Choices, ", "), v)
		}
	}
	return nil
}

// resolver converts validated strings to typed fields, keeping the first
// error.
type resolver struct {
	root   string
	values map[string]string
	err    error
}

func (r *resolver) str(key string) string { return r.values[key] }

func (r *resolver) flag(key string) bool { return r.values[key] == "true" }

func (r *resolver) list(key string) []string { return splitList(r.values[key]) }

func (r *resolver) artifactTypes(key string) []types.ArtifactType {
	var out []types.ArtifactType
	for _, v := range r.list(key) {
		out = append(out, types.ArtifactType(v))
	}
	return out
}

func (r *resolver) path(key, def string) string {
	v := r.values[key]
	if v == "" {
		return def
	}
	if !filepath.IsAbs(v) {
		v = filepath.Join(r.root, v)
	}
	return filepath.Clean(v)
}

func (r *resolver) number(key string) int {
	n, err := strconv.Atoi(r.values[key])
	if err != nil || n < 0 {
		if r.err == nil {
			r.err = types.Errorf(types.ErrConfiguration, step,
				"%s must be a non-negative integer, got %q", key, r.values[key])
		}
	}
	return n
}

func (r *resolver) build() *Config {
	cfg := &Config{
		ProjectRoot: r.root,
		ProjectName: r.str("PROJECT_NAME"),
		MainBranch:  r.str("MAIN_BRANCH"),
		Debug:       r.flag("DEBUG"),

		ArchiveFormat:        archive.Format(r.str("ARCHIVE_FORMAT")),
		ArchiveTarExtraArgs:  r.list("ARCHIVE_TAR_EXTRA_ARGS"),
		ArchiveGzipExtraArgs: r.list("ARCHIVE_GZIP_EXTRA_ARGS"),
		ArchiveDir:           r.path("ARCHIVE_DIR", filepath.Join(r.root, "archives")),
		ArchiveTypes:         r.artifactTypes("ARCHIVE_TYPES"),
		PersistTypes:         r.artifactTypes("PERSIST_TYPES"),

		Compile:    r.flag("COMPILE"),
		CompileDir: r.path("COMPILE_DIR", r.root),
		MakeArgs:   r.list("MAKE_ARGS"),

		PublisherType:   r.str("PUBLISHER_TYPE"),
		ZenodoToken:     r.str("ZENODO_TOKEN"),
		ConceptDOI:      r.str("ZENODO_CONCEPT_DOI"),
		ZenodoAPIURL:    r.str("ZENODO_API_URL"),
		PublicationDate: r.str("PUBLICATION_DATE"),
		ForceUpdate:     r.flag("ZENODO_FORCE_UPDATE"),
		InfoToRelease:   r.flag("ZENODO_INFO_TO_RELEASE"),

		IdentifierHash:       r.flag("ZENODO_IDENTIFIER_HASH"),
		IdentifierTypes:      r.list("ZENODO_IDENTIFIER_TYPES"),
		IdentifierAlgorithms: r.list("ZENODO_IDENTIFIER_HASH_ALGORITHMS"),

		GPGSign:      r.flag("GPG_SIGN"),
		GPGUID:       r.str("GPG_UID"),
		GPGOverwrite: r.flag("GPG_OVERWRITE"),
		GPGExtraArgs: r.list("GPG_EXTRA_ARGS"),

		PromptLevel: r.str("PROMPT_VALIDATION_LEVEL"),

		Ledger: ledger.Config{
			Backend:   r.str("LEDGER_BACKEND"),
			Path:      r.str("LEDGER_PATH"),
			Region:    r.str("LEDGER_REGION"),
			Endpoint:  r.str("LEDGER_ENDPOINT"),
			PathStyle: r.flag("LEDGER_S3_PATH_STYLE"),
		},
		Notify: NotifyConfig{
			Adapter: r.str("NOTIFY_ADAPTER"),
			URL:     r.str("NOTIFY_URL"),
			Channel: r.str("NOTIFY_CHANNEL"),
			Retries: r.number("NOTIFY_RETRIES"),
		},
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(r.root)
	}
	cfg.MainFile = filepath.Join(cfg.CompileDir, r.str("MAIN_FILE"))
	if cfg.Ledger.Backend == ledger.BackendFS && cfg.Ledger.Path != "" {
		cfg.Ledger.Path = r.path("LEDGER_PATH", "")
	}
	return cfg
}

// check enforces cross-key requirements.
func (c *Config) check() error {
	if err := hasher.Validate(c.IdentifierAlgorithms); err != nil {
		return err
	}
	if c.Compile {
		if info, err := os.Stat(c.CompileDir); err != nil || !info.IsDir() {
			return types.Errorf(types.ErrConfiguration, step,
				"compile directory %s does not exist; check COMPILE_DIR in %s", c.CompileDir, EnvFileName)
		}
	}

	if c.HasPublisher() {
		if c.ZenodoToken == "" {
			return types.Errorf(types.ErrConfiguration, step, "ZENODO_TOKEN is required when PUBLISHER_TYPE=%s", c.PublisherType)
		}
		if c.ConceptDOI == "" {
			return types.Errorf(types.ErrConfiguration, step, "ZENODO_CONCEPT_DOI is required when PUBLISHER_TYPE=%s", c.PublisherType)
		}
		c.ConceptID = deposit.ConceptID(c.ConceptDOI)
		if _, err := strconv.ParseUint(c.ConceptID, 10, 64); err != nil {
			return types.Errorf(types.ErrConfiguration, step, "cannot derive a concept id from ZENODO_CONCEPT_DOI %q", c.ConceptDOI)
		}
	}

	if c.Ledger.Backend != ledger.BackendNone && c.Ledger.Path == "" {
		return types.Errorf(types.ErrConfiguration, step, "LEDGER_PATH is required when LEDGER_BACKEND=%s", c.Ledger.Backend)
	}
	if c.Notify.Adapter != NotifyNone && c.Notify.URL == "" {
		return types.Errorf(types.ErrConfiguration, step, "NOTIFY_URL is required when NOTIFY_ADAPTER=%s", c.Notify.Adapter)
	}
	return nil
}

// String renders the resolved values with the token masked.
func (c *Config) String() string {
	token := ""
	if c.ZenodoToken != "" {
		token = "****"
	}
	return fmt.Sprintf("project=%s root=%s branch=%s publisher=%q concept=%s token=%s ledger=%s notify=%s",
		c.ProjectName, c.ProjectRoot, c.MainBranch, c.PublisherType, c.ConceptID, token, c.Ledger.Backend, c.Notify.Adapter)
}
