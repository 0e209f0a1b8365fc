package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// InfoFileName is the release asset carrying the deposit's identifiers.
const InfoFileName = "zenodo_publication_info.json"

// PublicationInfo describes a published deposit version. Each file entry
// holds "key" (the file name) plus one hex digest per algorithm.
type PublicationInfo struct {
	DOI         string              `json:"doi"`
	RecordURL   string              `json:"record_url"`
	Files       []map[string]string `json:"files"`
	Identifiers []types.Identifier  `json:"identifiers,omitempty"`
}

// BuildPublicationInfo lists the artifacts (signatures excluded) of a
// published record.
func BuildPublicationInfo(rec *types.PublishedRecord, artifacts []types.Artifact, ids []types.Identifier) PublicationInfo {
	info := PublicationInfo{
		DOI:         rec.DOIURL(),
		RecordURL:   rec.RecordURL,
		Files:       make([]map[string]string, 0, len(artifacts)),
		Identifiers: ids,
	}
	for _, a := range artifacts {
		entry := make(map[string]string, len(a.Hashes)+1)
		for algo, digest := range a.Hashes {
			entry[algo] = digest
		}
		entry["key"] = a.Name()
		info.Files = append(info.Files, entry)
	}
	return info
}

// WritePublicationInfo writes info as indented JSON into dir and returns
// the file path.
func WritePublicationInfo(dir string, info PublicationInfo) (string, error) {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode publication info: %w", err)
	}
	path := filepath.Join(dir, InfoFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", types.NewError(types.ErrIO, "publication-info", err)
	}
	return path, nil
}
