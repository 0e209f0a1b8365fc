package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/zenodo-publisher/deposit"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// OverrideFileNames are the metadata override files, in lookup order.
// YAML is a superset of JSON, so both parse the same way.
var OverrideFileNames = []string{".zenodo.yaml", ".zenodo.json"}

// LoadOverride reads the first override file present under root after
// ${VAR} expansion. It returns nil when there is none.
func LoadOverride(root string) (*deposit.Override, error) {
	for _, name := range OverrideFileNames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, types.Errorf(types.ErrConfiguration, step, "cannot read %s: %v", path, err)
		}
		return ParseOverride(path, []byte(ExpandEnv(string(data))))
	}
	return nil, nil
}

// ParseOverride decodes an override document. Only the metadata and
// custom_fields top-level keys are accepted.
func ParseOverride(name string, data []byte) (*deposit.Override, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.Errorf(types.ErrConfiguration, step, "invalid override file %s: %v", name, err)
	}
	for k := range raw {
		if k != "metadata" && k != "custom_fields" {
			return nil, types.Errorf(types.ErrConfiguration, step,
				"unknown top-level key %q in %s (allowed: metadata, custom_fields)", k, name)
		}
	}

	var ov deposit.Override
	if len(raw) == 0 {
		return &ov, nil
	}
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, types.Errorf(types.ErrConfiguration, step, "invalid override file %s: %v", name, err)
	}
	return &ov, nil
}
