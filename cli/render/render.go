// Package render provides output rendering for the zp CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/zenodo-publisher/cli/tui"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/pipeline"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     c.App.Writer,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		// Round-trip through JSON so yaml keys follow the json tags.
		doc, err := jsonDocument(data)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI runs the interactive view for viewType.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func jsonDocument(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	switch v := data.(type) {
	case *pipeline.Report:
		r.releaseTable(w, v)
	case *pipeline.ArchiveReport:
		r.archiveTable(w, v)
	case []ledger.Entry:
		r.historyTable(w, v)
	case *ledger.Entry:
		r.entryTable(w, v)
	case map[string]string:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			r.row(w, k, v[k])
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

func (r *Renderer) header(s string) string {
	if r.noColor {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Render(s)
}

func (r *Renderer) row(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s\t%s\n", r.header(label+":"), value)
}

func (r *Renderer) releaseTable(w io.Writer, rep *pipeline.Report) {
	r.row(w, "project", rep.Project)
	r.row(w, "tag", rep.Tag)
	r.row(w, "outcome", outcomeLabel(rep.Outcome, rep.Forced))
	if rep.Comparison != nil {
		r.row(w, "files", rep.Comparison.String())
	}
	if rep.Record != nil {
		r.row(w, "doi", rep.Record.DOIURL())
		r.row(w, "record", rep.Record.RecordURL)
	}
	for _, a := range rep.Artifacts {
		r.row(w, "artifact", a.Name()+"  sha256:"+a.Hashes["sha256"])
		if a.SignaturePath != "" {
			r.row(w, "signature", a.SignatureName())
		}
	}
	for _, id := range rep.Identifiers {
		r.row(w, "identifier", id.Formatted)
	}
	for _, warn := range rep.Warnings {
		r.row(w, "warning", warn)
	}
	if rep.Duration > 0 {
		r.row(w, "duration", rep.Duration.Round(time.Millisecond).String())
	}
}

func (r *Renderer) archiveTable(w io.Writer, rep *pipeline.ArchiveReport) {
	r.row(w, "path", rep.Path)
	r.row(w, "format", string(rep.Format))
	r.row(w, "prefix", rep.Prefix+"/")
	for _, algo := range slices.Sorted(maps.Keys(rep.Hashes)) {
		r.row(w, algo, rep.Hashes[algo])
	}
	for _, warn := range rep.Warnings {
		r.row(w, "warning", warn)
	}
}

func (r *Renderer) historyTable(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no results)")
		return
	}
	fmt.Fprintln(w, r.header(strings.Join([]string{"TAG", "COMMAND", "OUTCOME", "DOI", "COMPLETED"}, "\t")))
	for _, e := range entries {
		fmt.Fprintln(w, strings.Join([]string{
			e.Tag,
			e.Command,
			outcomeLabel(e.Outcome, e.Forced),
			dash(e.DOI),
			e.CompletedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}, "\t"))
	}
}

func (r *Renderer) entryTable(w io.Writer, e *ledger.Entry) {
	r.row(w, "project", e.Project)
	r.row(w, "tag", e.Tag)
	r.row(w, "concept", e.ConceptID)
	r.row(w, "command", e.Command)
	r.row(w, "outcome", outcomeLabel(e.Outcome, e.Forced))
	r.row(w, "doi", e.DOI)
	r.row(w, "record", e.RecordURL)
	r.row(w, "completed", e.CompletedAt.UTC().Format("2006-01-02T15:04:05Z"))
	for _, f := range e.Files {
		r.row(w, "file", f.Name+"  sha256:"+f.Hashes["sha256"])
	}
	for _, id := range e.Identifiers {
		r.row(w, "identifier", id.Formatted)
	}
	for _, warn := range e.Warnings {
		r.row(w, "warning", warn)
	}
	r.row(w, "api calls", fmt.Sprintf("%d (%d failed)", e.Metrics.APIRequests, e.Metrics.APIFailures))
	r.row(w, "uploads", fmt.Sprintf("%d uploaded, %d deleted", e.Metrics.FilesUploaded, e.Metrics.FilesDeleted))
}

func outcomeLabel(outcome string, forced bool) string {
	if forced {
		return outcome + " (forced)"
	}
	return outcome
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
