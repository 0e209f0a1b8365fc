package deposit

import (
	"encoding/json"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// record is the subset of an InvenioRDM record the manager reads.
type record struct {
	ID     string `json:"id"`
	Parent struct {
		ID string `json:"id"`
	} `json:"parent"`
	IsDraft      bool           `json:"is_draft"`
	IsPublished  bool           `json:"is_published"`
	Metadata     map[string]any `json:"metadata"`
	CustomFields map[string]any `json:"custom_fields"`
	Files        struct {
		Enabled        bool        `json:"enabled"`
		DefaultPreview string      `json:"default_preview"`
		Entries        fileEntries `json:"entries"`
	} `json:"files"`
	PIDs struct {
		DOI struct {
			Identifier string `json:"identifier"`
		} `json:"doi"`
	} `json:"pids"`
	Links struct {
		SelfHTML string `json:"self_html"`
	} `json:"links"`
}

type fileEntry struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// fileEntries accepts both the list form (file listings) and the
// key-indexed object form (embedded in records).
type fileEntries []fileEntry

func (f *fileEntries) UnmarshalJSON(data []byte) error {
	var list []fileEntry
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var byKey map[string]fileEntry
	if err := json.Unmarshal(data, &byKey); err != nil {
		return err
	}
	out := make([]fileEntry, 0, len(byKey))
	for key, e := range byKey {
		if e.Key == "" {
			e.Key = key
		}
		out = append(out, e)
	}
	*f = out
	return nil
}

func (f fileEntries) records() []types.RemoteFileRecord {
	out := make([]types.RemoteFileRecord, 0, len(f))
	for _, e := range f {
		out = append(out, types.RemoteFileRecord{
			Filename: e.Key,
			Checksum: strings.TrimPrefix(e.Checksum, "md5:"),
			Size:     e.Size,
		})
	}
	return out
}

func (r *record) version() *types.DepositVersion {
	label, _ := r.Metadata["version"].(string)
	return &types.DepositVersion{
		ConceptID:    r.Parent.ID,
		VersionID:    r.ID,
		Label:        label,
		Files:        r.Files.Entries.records(),
		Metadata:     r.Metadata,
		CustomFields: r.CustomFields,
		IsDraft:      r.IsDraft,
		DOI:          r.PIDs.DOI.Identifier,
		RecordURL:    r.Links.SelfHTML,
	}
}

func (r *record) published() *types.PublishedRecord {
	return &types.PublishedRecord{
		VersionID: r.ID,
		DOI:       r.PIDs.DOI.Identifier,
		RecordURL: r.Links.SelfHTML,
		Files:     r.Files.Entries.records(),
	}
}

// ConceptID derives the record id from a concept DOI
// ("10.5281/zenodo.123" is "123"). A bare id is returned unchanged.
func ConceptID(doi string) string {
	if i := strings.LastIndex(doi, "zenodo."); i >= 0 {
		return doi[i+len("zenodo."):]
	}
	return doi
}
