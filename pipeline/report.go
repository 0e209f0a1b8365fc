package pipeline

import (
	"time"

	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/notify"
	"github.com/pithecene-io/zenodo-publisher/reconcile"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// Outcomes recorded for runs that reach no reconciliation decision.
const (
	// OutcomeNoPublisher: artifacts were built but no deposit is configured.
	OutcomeNoPublisher = "no_publisher"
	// OutcomeArchived: the archive command produced an archive.
	OutcomeArchived = "archived"
)

// Report summarizes a release run.
type Report struct {
	Project   string `json:"project"`
	Tag       string `json:"tag"`
	ConceptID string `json:"concept_id,omitempty"`
	// ReleaseCreated is set when the run created the source-control release.
	ReleaseCreated bool `json:"release_created"`

	Outcome    string               `json:"outcome"`
	Forced     bool                 `json:"forced,omitempty"`
	Comparison *reconcile.Comparison `json:"comparison,omitempty"`

	Artifacts   []types.Artifact       `json:"artifacts"`
	Identifiers []types.Identifier     `json:"identifiers,omitempty"`
	Record      *types.PublishedRecord `json:"record,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`

	// InfoUploaded is set when the publication info asset was (re)uploaded.
	InfoUploaded bool          `json:"info_uploaded"`
	Duration     time.Duration `json:"duration"`
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ledgerEntry converts the report into a ledger entry.
func (r *Report) ledgerEntry(command string, m ledger.Metrics, at time.Time) ledger.Entry {
	e := ledger.Entry{
		Project:     r.Project,
		Tag:         r.Tag,
		ConceptID:   r.ConceptID,
		Command:     command,
		Outcome:     r.Outcome,
		Forced:      r.Forced,
		Warnings:    r.Warnings,
		Files:       ledger.FilesFrom(r.Artifacts),
		Identifiers: r.Identifiers,
		Metrics:     m,
		CompletedAt: at,
	}
	if r.Record != nil {
		e.DOI = r.Record.DOI
		e.RecordURL = r.Record.RecordURL
	}
	return e
}

// event converts the report into a release-completed notification.
func (r *Report) event(at time.Time) *notify.ReleaseCompletedEvent {
	ev := &notify.ReleaseCompletedEvent{
		EventType:   notify.EventTypeReleaseCompleted,
		Project:     r.Project,
		Tag:         r.Tag,
		ConceptID:   r.ConceptID,
		Outcome:     r.Outcome,
		Forced:      r.Forced,
		Identifiers: r.Identifiers,
		Warnings:    r.Warnings,
		Timestamp:   at.UTC().Format(time.RFC3339),
		DurationMs:  r.Duration.Milliseconds(),
	}
	for _, f := range types.UploadSet(r.Artifacts) {
		ev.Files = append(ev.Files, f.Name)
	}
	if r.Record != nil {
		ev.DOI = r.Record.DOI
		ev.RecordURL = r.Record.RecordURL
	}
	return ev
}
