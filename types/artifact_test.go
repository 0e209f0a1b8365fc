package types

import "testing"

func TestUploadSet_PreviewFirstAndSignaturesFollow(t *testing.T) {
	artifacts := []Artifact{
		{
			Type:          ArtifactProject,
			Path:          "/tmp/a/paper-v1.zip",
			Hashes:        map[string]string{AlgoMD5: "aaa"},
			SignaturePath: "/tmp/a/paper-v1.zip.asc",
			SignatureHashes: map[string]string{
				AlgoMD5: "sig",
			},
		},
		{
			Type:    "pdf",
			Path:    "/tmp/a/paper-v1.pdf",
			Preview: true,
			Hashes:  map[string]string{AlgoMD5: "bbb"},
		},
	}

	files := UploadSet(artifacts)
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}

	wantNames := []string{"paper-v1.pdf", "paper-v1.zip", "paper-v1.zip.asc"}
	for i, want := range wantNames {
		if files[i].Name != want {
			t.Errorf("files[%d].Name = %q, want %q", i, files[i].Name, want)
		}
	}
	if !files[2].IsSignature {
		t.Error("expected signature flag on .asc file")
	}
	if files[2].MD5 != "sig" {
		t.Errorf("signature md5 = %q, want sig", files[2].MD5)
	}
}

func TestPublishedRecord_DOIURL(t *testing.T) {
	r := PublishedRecord{DOI: "10.5281/zenodo.123"}
	if got := r.DOIURL(); got != "https://doi.org/10.5281/zenodo.123" {
		t.Errorf("DOIURL() = %q", got)
	}
	if (&PublishedRecord{}).DOIURL() != "" {
		t.Error("expected empty DOI URL")
	}
}
