package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/pipeline"
	"github.com/pithecene-io/zenodo-publisher/reconcile"
	"github.com/pithecene-io/zenodo-publisher/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if _, err := ParseFormat("csv"); err == nil || !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error should list valid formats, got %v", err)
	}
}

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		Project:    "thesis",
		Tag:        "v2",
		Outcome:    string(reconcile.Publish),
		Comparison: &reconcile.Comparison{Changed: []string{"thesis-v2.pdf"}},
		Artifacts: []types.Artifact{{
			Type:          "pdf",
			Path:          "/tmp/thesis-v2.pdf",
			Hashes:        map[string]string{"md5": "aa", "sha256": "bb"},
			SignaturePath: "/tmp/thesis-v2.pdf.asc",
		}},
		Record:   &types.PublishedRecord{DOI: "10.5281/zenodo.1002", RecordURL: "https://zenodo.org/records/1002"},
		Warnings: []string{"files changed but the release label equals the published label"},
		Duration: 1500 * time.Millisecond,
	}
}

func TestRender_ReleaseTable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, true, &buf).Render(sampleReport()); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"outcome:", "publish", "https://doi.org/10.5281/zenodo.1002", "thesis-v2.pdf  sha256:bb", "thesis-v2.pdf.asc", "warning:", "1.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestRender_ReleaseJSONAndYAML(t *testing.T) {
	var js, ym bytes.Buffer
	if err := NewRendererWithWriter(FormatJSON, false, &js).Render(sampleReport()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"outcome": "publish"`) {
		t.Errorf("json = %s", js.String())
	}
	if err := NewRendererWithWriter(FormatYAML, false, &ym).Render(sampleReport()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ym.String(), "outcome: publish") || !strings.Contains(ym.String(), "record_url:") {
		t.Errorf("yaml keys should follow json tags:\n%s", ym.String())
	}
}

func TestRender_ArchiveTable(t *testing.T) {
	var buf bytes.Buffer
	rep := &pipeline.ArchiveReport{
		Path:   "/out/thesis-v1.tar.gz",
		Format: archive.FormatTarGz,
		Prefix: "thesis-v1",
		Hashes: map[string]string{"sha256": "bb", "md5": "aa", "tree": "cc"},
	}
	if err := NewRendererWithWriter(FormatTable, true, &buf).Render(rep); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	md5 := strings.Index(got, "md5:")
	tree := strings.Index(got, "tree:")
	if md5 < 0 || tree < 0 || md5 > tree || !strings.Contains(got, "thesis-v1/") {
		t.Errorf("table = %s", got)
	}
}

func TestRender_History(t *testing.T) {
	var buf bytes.Buffer
	entries := []ledger.Entry{
		{Tag: "v1", Command: "release", Outcome: "publish", DOI: "10.5281/zenodo.1001", CompletedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Tag: "v2", Command: "archive", Outcome: "archived", CompletedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	if err := NewRendererWithWriter(FormatTable, true, &buf).Render(entries); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "TAG") || !strings.Contains(lines[2], "archived") {
		t.Errorf("history = %q", lines)
	}

	buf.Reset()
	if err := NewRendererWithWriter(FormatTable, true, &buf).Render([]ledger.Entry{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("empty history = %q", buf.String())
	}
}

func TestRender_NoColorDoesNotAffectJSON(t *testing.T) {
	var color, plain bytes.Buffer
	data := map[string]string{"version": types.Version}
	if err := NewRendererWithWriter(FormatJSON, false, &color).Render(data); err != nil {
		t.Fatal(err)
	}
	if err := NewRendererWithWriter(FormatJSON, true, &plain).Render(data); err != nil {
		t.Fatal(err)
	}
	if color.String() != plain.String() {
		t.Error("--no-color changed JSON output")
	}
}

func TestRenderTUI_Unsupported(t *testing.T) {
	if err := NewRendererWithWriter(FormatTable, false, &bytes.Buffer{}).RenderTUI("release", nil); err == nil {
		t.Error("expected error for unsupported view")
	}
}
