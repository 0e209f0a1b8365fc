package ledger

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// RecordKindRelease discriminates release records in the dataset.
const RecordKindRelease = "release"

// File is one uploaded (or would-be uploaded) file of a release.
type File struct {
	Name      string            `json:"name"`
	Type      string            `json:"type,omitempty"`
	Hashes    map[string]string `json:"hashes"`
	Signature bool              `json:"signature,omitempty"`
}

// Entry is one release run as stored in the ledger.
type Entry struct {
	Project   string `json:"project"`
	Tag       string `json:"tag"`
	ConceptID string `json:"concept_id,omitempty"`
	// Command is the zp command that produced the entry ("release", "archive").
	Command  string   `json:"command"`
	Outcome  string   `json:"outcome"`
	Forced   bool     `json:"forced,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	DOI         string             `json:"doi,omitempty"`
	RecordURL   string             `json:"record_url,omitempty"`
	Files       []File             `json:"files"`
	Identifiers []types.Identifier `json:"identifiers,omitempty"`

	Metrics     Metrics   `json:"metrics"`
	CompletedAt time.Time `json:"completed_at"`
}

// Metrics is the counter subset persisted with an entry.
type Metrics struct {
	ArchivesBuilt     int64 `json:"archives_built"`
	FilesHashed       int64 `json:"files_hashed"`
	SignaturesCreated int64 `json:"signatures_created"`
	APIRequests       int64 `json:"api_requests"`
	APIFailures       int64 `json:"api_failures"`
	FilesUploaded     int64 `json:"files_uploaded"`
	FilesDeleted      int64 `json:"files_deleted"`
	DraftsDiscarded   int64 `json:"drafts_discarded"`
	VersionsPublished int64 `json:"versions_published"`
}

// MetricsFrom copies the persisted counters out of a snapshot.
func MetricsFrom(s metrics.Snapshot) Metrics {
	return Metrics{
		ArchivesBuilt:     s.ArchivesBuilt,
		FilesHashed:       s.FilesHashed,
		SignaturesCreated: s.SignaturesCreated,
		APIRequests:       s.APIRequests,
		APIFailures:       s.APIFailures,
		FilesUploaded:     s.FilesUploaded,
		FilesDeleted:      s.FilesDeleted,
		DraftsDiscarded:   s.DraftsDiscarded,
		VersionsPublished: s.VersionsPublished,
	}
}

// FilesFrom lists artifacts and their signatures as ledger files.
func FilesFrom(artifacts []types.Artifact) []File {
	files := make([]File, 0, len(artifacts))
	for _, a := range artifacts {
		files = append(files, File{Name: a.Name(), Type: string(a.Type), Hashes: a.Hashes})
		if a.SignaturePath != "" {
			files = append(files, File{Name: a.SignatureName(), Type: string(a.Type), Hashes: a.SignatureHashes, Signature: true})
		}
	}
	return files
}

// toRecord converts an entry into the map written to the dataset. The
// partition fields project and tag are path-escaped so a tag such as
// "release/v1" stays a single partition segment.
func toRecord(e Entry) (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode ledger entry: %w", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encode ledger entry: %w", err)
	}
	rec["record_kind"] = RecordKindRelease
	rec["project"] = url.PathEscape(e.Project)
	rec["tag"] = url.PathEscape(e.Tag)
	return rec, nil
}

// fromRecord decodes a stored record. ok is false for records of another
// kind.
func fromRecord(rec map[string]any) (Entry, bool, error) {
	if rec["record_kind"] != RecordKindRelease {
		return Entry{}, false, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode ledger entry: %w", err)
	}
	if p, err := url.PathUnescape(e.Project); err == nil {
		e.Project = p
	}
	if t, err := url.PathUnescape(e.Tag); err == nil {
		e.Tag = t
	}
	return e, true, nil
}

func escape(s string) string {
	if s == "" {
		return ""
	}
	return url.PathEscape(s)
}
