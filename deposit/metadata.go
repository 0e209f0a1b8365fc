package deposit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Override is the operator-supplied overlay on inherited record fields.
type Override struct {
	// Metadata overlays the record's metadata block, field by field.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// CustomFields overlays the record's custom_fields block.
	CustomFields map[string]any `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
}

// Empty reports whether the override changes nothing.
func (o *Override) Empty() bool {
	return o == nil || (len(o.Metadata) == 0 && len(o.CustomFields) == 0)
}

// MergeInput is everything merged into a draft's metadata.
type MergeInput struct {
	Tag             string
	PublicationDate string
	Override        *Override
	// Identifiers are the engine's hash-derived identifiers.
	Identifiers []types.Identifier
}

// MergeResult is the merged metadata and any warnings raised.
type MergeResult struct {
	Metadata     map[string]any
	CustomFields map[string]any
	Warnings     []string
}

const identifierScheme = "other"

// CheckOverride validates an override independently of any record.
func CheckOverride(ov *Override, ids []types.Identifier) error {
	if ov == nil {
		return nil
	}
	if _, ok := ov.Metadata["version"]; ok {
		return types.Errorf(types.ErrConfiguration, "metadata",
			"metadata.version cannot be overridden; it is always the release tag")
	}
	raw, ok := ov.Metadata["identifiers"]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return types.Errorf(types.ErrConfiguration, "metadata", "metadata.identifiers must be a list")
	}
	for _, e := range entries {
		value := identifierValue(e)
		if algo := engineAlgorithm(value, ids); algo != "" {
			return types.Errorf(types.ErrConfiguration, "metadata",
				"identifier %q collides with the generated %s identifier; remove it from the override file", value, algo)
		}
	}
	return nil
}

// Merge overlays the override onto inherited metadata and custom fields.
// Fields the override does not name keep their inherited value.
func Merge(inherited, inheritedCustom map[string]any, in MergeInput) (*MergeResult, error) {
	if err := CheckOverride(in.Override, in.Identifiers); err != nil {
		return nil, err
	}

	res := &MergeResult{Metadata: clone(inherited)}
	var ovMeta, ovCustom map[string]any
	if in.Override != nil {
		ovMeta, ovCustom = in.Override.Metadata, in.Override.CustomFields
	}

	for k, v := range ovMeta {
		if k == "identifiers" {
			continue
		}
		res.Metadata[k] = v
	}

	res.Metadata["version"] = in.Tag
	if date, ok := ovMeta["publication_date"]; ok {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("publication_date overridden by the override file (%v)", date))
	} else if in.PublicationDate != "" {
		res.Metadata["publication_date"] = in.PublicationDate
	}

	base, _ := res.Metadata["identifiers"].([]any)
	raw, overridden := ovMeta["identifiers"]
	if overridden {
		base, _ = raw.([]any)
	}
	if ids := mergeIdentifiers(base, in.Identifiers); overridden || len(ids) > 0 {
		res.Metadata["identifiers"] = ids
	}

	custom, err := mergeCustomFields(inheritedCustom, ovCustom)
	if err != nil {
		return nil, err
	}
	res.CustomFields = custom
	return res, nil
}

// mergeIdentifiers drops earlier engine identifiers (same algorithm
// prefix) and appends the current ones.
func mergeIdentifiers(base []any, ids []types.Identifier) []any {
	out := make([]any, 0, len(base)+len(ids))
	for _, e := range base {
		if engineAlgorithm(identifierValue(e), ids) != "" {
			continue
		}
		out = append(out, e)
	}
	for _, id := range ids {
		out = append(out, map[string]any{"identifier": id.Formatted, "scheme": identifierScheme})
	}
	return out
}

// mergeCustomFields adds override keys absent from inherited. A key
// present on both sides with a different value is a conflict.
func mergeCustomFields(inherited, override map[string]any) (map[string]any, error) {
	out := clone(inherited)
	for k, v := range override {
		if old, ok := out[k]; ok && !sameJSON(old, v) {
			return nil, types.Errorf(types.ErrConfiguration, "metadata",
				"custom_fields.%s conflicts with the published record; update it on the deposit or remove it from the override file", k)
		}
		out[k] = v
	}
	return out, nil
}

func identifierValue(e any) string {
	switch v := e.(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["identifier"].(string)
		return s
	}
	return ""
}

// engineAlgorithm returns the algorithm of the engine identifier whose
// "<algo>:" prefix value carries, or "".
func engineAlgorithm(value string, ids []types.Identifier) string {
	lower := strings.ToLower(value)
	for _, id := range ids {
		if strings.HasPrefix(lower, strings.ToLower(id.Algorithm)+":") {
			return id.Algorithm
		}
	}
	return ""
}

// sameJSON compares values by their JSON encoding, so numbers decoded
// from YAML and from JSON compare equal.
func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}
