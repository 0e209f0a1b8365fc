// Package types holds the data model shared by the zp pipeline packages.
package types

import "path/filepath"

// ArtifactType tags a release artifact. "project" is the project archive;
// any other tag names the extension of the compiled main file (e.g. "pdf").
type ArtifactType string

// ArtifactProject is the project-tree archive type.
const ArtifactProject ArtifactType = "project"

// Always-computed byte-hash algorithms.
const (
	AlgoMD5    = "md5"
	AlgoSHA256 = "sha256"
)

// Artifact is one file that belongs to the current release.
// It is immutable once hashed.
type Artifact struct {
	Type ArtifactType `json:"type"`
	// Path is the local file path.
	Path string `json:"path"`
	// Extension is the file extension without leading dot ("pdf", "tar.gz").
	Extension string `json:"extension"`
	// Persisted marks files kept in the archive directory after the run.
	Persisted bool `json:"persisted"`
	// Preview marks the file used as the deposit's default preview.
	Preview bool `json:"preview"`
	// Hashes maps algorithm name to hex digest.
	Hashes map[string]string `json:"hashes"`

	// SignaturePath is the detached signature, if the artifact was signed.
	SignaturePath   string            `json:"signature_path,omitempty"`
	SignatureHashes map[string]string `json:"signature_hashes,omitempty"`
}

// Name returns the artifact's file name.
func (a *Artifact) Name() string {
	return filepath.Base(a.Path)
}

// SignatureName returns the signature's file name, or "" if unsigned.
func (a *Artifact) SignatureName() string {
	if a.SignaturePath == "" {
		return ""
	}
	return filepath.Base(a.SignaturePath)
}

// LocalFile is a file scheduled for upload.
type LocalFile struct {
	Path        string
	Name        string
	MD5         string
	IsSignature bool
}

// UploadSet flattens artifacts into upload order: preview first, then the
// remaining artifacts in their given order, each followed by its signature.
func UploadSet(artifacts []Artifact) []LocalFile {
	ordered := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Preview {
			ordered = append(ordered, a)
		}
	}
	for _, a := range artifacts {
		if !a.Preview {
			ordered = append(ordered, a)
		}
	}

	files := make([]LocalFile, 0, 2*len(ordered))
	for _, a := range ordered {
		files = append(files, LocalFile{Path: a.Path, Name: a.Name(), MD5: a.Hashes[AlgoMD5]})
		if a.SignaturePath != "" {
			files = append(files, LocalFile{
				Path:        a.SignaturePath,
				Name:        a.SignatureName(),
				MD5:         a.SignatureHashes[AlgoMD5],
				IsSignature: true,
			})
		}
	}
	return files
}

// Identifier is a hash-derived identifier composed over one or more artifacts.
type Identifier struct {
	Algorithm  string   `json:"type"`
	Value      string   `json:"value"`
	Formatted  string   `json:"formatted_value"`
	Components []string `json:"components"`
}
