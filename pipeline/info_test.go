package pipeline

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/pithecene-io/zenodo-publisher/types"
)

func TestPublicationInfo(t *testing.T) {
	rec := &types.PublishedRecord{DOI: "10.5281/zenodo.1001", RecordURL: "https://zenodo.org/records/1001"}
	artifacts := []types.Artifact{{
		Path:          "/tmp/thesis-v2.pdf",
		Hashes:        map[string]string{"md5": "aa", "sha256": "bb"},
		SignaturePath: "/tmp/thesis-v2.pdf.asc",
	}}
	ids := []types.Identifier{{Algorithm: "sha256", Value: "bb", Formatted: "sha256:bb"}}

	info := BuildPublicationInfo(rec, artifacts, ids)
	if info.DOI != "https://doi.org/10.5281/zenodo.1001" {
		t.Errorf("doi = %s", info.DOI)
	}
	if len(info.Files) != 1 || info.Files[0]["key"] != "thesis-v2.pdf" || info.Files[0]["sha256"] != "bb" {
		t.Errorf("files = %v", info.Files)
	}

	path, err := WritePublicationInfo(t.TempDir(), info)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "}\n") || !strings.Contains(string(data), "\n  \"doi\"") {
		t.Errorf("file not indented with a trailing newline:\n%s", data)
	}
	var back PublicationInfo
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Identifiers[0].Formatted != "sha256:bb" {
		t.Errorf("identifiers = %+v", back.Identifiers)
	}
}
