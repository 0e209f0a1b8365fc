package types

// RemoteFileRecord is a file stored on a deposit version.
type RemoteFileRecord struct {
	Filename string `json:"filename"`
	// Checksum is the bare hex byte-hash (the "md5:" prefix is stripped).
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// DepositVersion is one version (published or draft) under a concept.
type DepositVersion struct {
	ConceptID string `json:"concept_id"`
	VersionID string `json:"version_id"`
	// Label is metadata.version.
	Label    string             `json:"label"`
	Files    []RemoteFileRecord `json:"files"`
	Metadata map[string]any     `json:"metadata"`
	// CustomFields holds the record's custom_fields block.
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	IsDraft      bool           `json:"is_draft"`
	DOI          string         `json:"doi,omitempty"`
	RecordURL    string         `json:"record_url,omitempty"`
}

// PublishedRecord is the public result of a publish transition.
type PublishedRecord struct {
	VersionID string             `json:"version_id"`
	DOI       string             `json:"doi"`
	RecordURL string             `json:"record_url"`
	Files     []RemoteFileRecord `json:"files"`
}

// DOIURL returns the resolvable DOI URL.
func (r *PublishedRecord) DOIURL() string {
	if r.DOI == "" {
		return ""
	}
	return "https://doi.org/" + r.DOI
}

// ReleaseMeta identifies one pipeline run for logging and ledger records.
type ReleaseMeta struct {
	Project   string
	Tag       string
	ConceptID string
}
