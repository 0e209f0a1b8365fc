package config

import (
	"slices"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/ledger"
)

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindList
	kindChoice
)

// option describes one .zenodo.env key.
type option struct {
	Key     string
	Kind    valueKind
	Default string
	Choices []string
	// Secret keys are never accepted from the command line.
	Secret bool
}

func formatChoices() []string {
	out := make([]string, 0, len(archive.Formats()))
	for _, f := range archive.Formats() {
		out = append(out, string(f))
	}
	return out
}

var options = []option{
	{Key: "PROJECT_NAME", Kind: kindString},
	{Key: "MAIN_BRANCH", Kind: kindString, Default: "main"},
	{Key: "DEBUG", Kind: kindBool, Default: "false"},

	{Key: "ARCHIVE_FORMAT", Kind: kindChoice, Default: string(archive.FormatZip), Choices: formatChoices()},
	{Key: "ARCHIVE_TAR_EXTRA_ARGS", Kind: kindList},
	{Key: "ARCHIVE_GZIP_EXTRA_ARGS", Kind: kindList},
	{Key: "ARCHIVE_DIR", Kind: kindString},
	{Key: "ARCHIVE_TYPES", Kind: kindList, Default: "project"},
	{Key: "PERSIST_TYPES", Kind: kindList},

	{Key: "COMPILE", Kind: kindBool, Default: "true"},
	{Key: "COMPILE_DIR", Kind: kindString},
	{Key: "MAIN_FILE", Kind: kindString, Default: "main.pdf"},
	{Key: "MAKE_ARGS", Kind: kindList},

	{Key: "PUBLISHER_TYPE", Kind: kindChoice, Choices: []string{"", PublisherZenodo}},
	{Key: "ZENODO_TOKEN", Kind: kindString, Secret: true},
	{Key: "ZENODO_CONCEPT_DOI", Kind: kindString},
	{Key: "ZENODO_API_URL", Kind: kindString, Default: "https://zenodo.org/api"},
	{Key: "PUBLICATION_DATE", Kind: kindString},
	{Key: "ZENODO_FORCE_UPDATE", Kind: kindBool, Default: "false"},
	{Key: "ZENODO_INFO_TO_RELEASE", Kind: kindBool, Default: "false"},
	{Key: "ZENODO_IDENTIFIER_HASH", Kind: kindBool, Default: "false"},
	{Key: "ZENODO_IDENTIFIER_TYPES", Kind: kindList},
	{Key: "ZENODO_IDENTIFIER_HASH_ALGORITHMS", Kind: kindList, Default: "sha256"},

	{Key: "GPG_SIGN", Kind: kindBool, Default: "false"},
	{Key: "GPG_UID", Kind: kindString},
	{Key: "GPG_OVERWRITE", Kind: kindBool, Default: "false"},
	{Key: "GPG_EXTRA_ARGS", Kind: kindList, Default: "--armor"},

	{Key: "PROMPT_VALIDATION_LEVEL", Kind: kindChoice, Default: PromptStrict, Choices: []string{PromptStrict, PromptLight}},

	{Key: "LEDGER_BACKEND", Kind: kindChoice, Default: ledger.BackendNone,
		Choices: []string{ledger.BackendNone, ledger.BackendFS, ledger.BackendS3}},
	{Key: "LEDGER_PATH", Kind: kindString},
	{Key: "LEDGER_REGION", Kind: kindString},
	{Key: "LEDGER_ENDPOINT", Kind: kindString},
	{Key: "LEDGER_S3_PATH_STYLE", Kind: kindBool, Default: "false"},

	{Key: "NOTIFY_ADAPTER", Kind: kindChoice, Default: NotifyNone,
		Choices: []string{NotifyNone, NotifyWebhook, NotifyRedis}},
	{Key: "NOTIFY_URL", Kind: kindString},
	{Key: "NOTIFY_CHANNEL", Kind: kindString},
	{Key: "NOTIFY_RETRIES", Kind: kindString, Default: "3"},
}

func lookupOption(key string) (option, bool) {
	i := slices.IndexFunc(options, func(o option) bool { return o.Key == key })
	if i < 0 {
		return option{}, false
	}
	return options[i], true
}

// Keys returns every recognized .zenodo.env key in declaration order.
func Keys() []string {
	keys := make([]string, len(options))
	for i, o := range options {
		keys[i] = o.Key
	}
	return keys
}

// Flag is the command-line override of one key.
type Flag struct {
	Key  string
	Name string
	Bool bool
}

// FlagName maps a key to its flag name: MAIN_BRANCH becomes main-branch.
func FlagName(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// OverrideFlags lists the keys accepted as command-line overrides.
// Secret keys are excluded.
func OverrideFlags() []Flag {
	var out []Flag
	for _, o := range options {
		if o.Secret {
			continue
		}
		out = append(out, Flag{Key: o.Key, Name: FlagName(o.Key), Bool: o.Kind == kindBool})
	}
	return out
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
