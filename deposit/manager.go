package deposit

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// Manager runs the deposit state machine. It never retries: a failed
// transition returns a StateError and leaves any opened draft in place.
type Manager struct {
	client  *Client
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewManager creates a Manager on top of client.
func NewManager(client *Client, logger *log.Logger, m *metrics.Collector) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{client: client, logger: logger, metrics: m}
}

// Resolve fetches the latest published version of a concept.
func (m *Manager) Resolve(ctx context.Context, conceptID string) (*types.DepositVersion, error) {
	v, err := m.client.LatestVersion(ctx, conceptID)
	if err != nil {
		return nil, &StateError{State: StateResolved, Err: err}
	}
	if v.ConceptID == "" {
		v.ConceptID = conceptID
	}
	m.logger.Info("resolved latest version", map[string]any{
		"version_id": v.VersionID,
		"label":      v.Label,
		"files":      len(v.Files),
	})
	return v, nil
}

// PublishRequest describes one new version.
type PublishRequest struct {
	Baseline *types.DepositVersion
	Tag      string
	// PublicationDate defaults to today (UTC) when empty.
	PublicationDate string
	// Files in upload order.
	Files []types.LocalFile
	// Preview names the file set as default preview, if any.
	Preview     string
	Override    *Override
	Identifiers []types.Identifier
}

// Result is a published version plus warnings raised on the way.
type Result struct {
	Record   *types.PublishedRecord
	Warnings []string
}

// Publish opens a new version from req.Baseline, replaces its files,
// merges metadata, and publishes it.
func (m *Manager) Publish(ctx context.Context, req PublishRequest) (*Result, error) {
	if req.Baseline == nil {
		return nil, &StateError{State: StateResolved, Err: errors.New("no baseline version")}
	}
	if req.PublicationDate == "" {
		req.PublicationDate = time.Now().UTC().Format(time.DateOnly)
	}

	// Pre-flight the merge on the baseline so forbidden overrides halt
	// before anything is mutated remotely.
	if _, err := Merge(req.Baseline.Metadata, req.Baseline.CustomFields, m.mergeInput(req)); err != nil {
		return nil, err
	}

	draftID, err := m.openDraft(ctx, req.Baseline)
	if err != nil {
		return nil, err
	}
	fail := func(state State, err error) (*Result, error) {
		m.logger.Error("deposit transition failed", map[string]any{
			"state": string(state), "draft_id": draftID, "error": err.Error(),
		})
		return nil, &StateError{State: state, DraftID: draftID, Err: err}
	}

	if err := m.reconcileFiles(ctx, draftID, req.Files); err != nil {
		return fail(StateFilesReconciled, err)
	}

	warnings, err := m.mergeMetadata(ctx, draftID, req)
	if err != nil {
		return fail(StateMetadataMerged, err)
	}

	rec, err := m.client.PublishDraft(ctx, draftID)
	if err != nil {
		return fail(StatePublished, err)
	}
	m.metrics.IncVersionsPublished()
	m.logger.Info("version published", map[string]any{
		"version_id": rec.VersionID,
		"doi":        rec.DOI,
		"record_url": rec.RecordURL,
	})
	return &Result{Record: rec, Warnings: warnings}, nil
}

func (m *Manager) mergeInput(req PublishRequest) MergeInput {
	return MergeInput{
		Tag:             req.Tag,
		PublicationDate: req.PublicationDate,
		Override:        req.Override,
		Identifiers:     req.Identifiers,
	}
}

// openDraft discards every existing draft of the concept, then opens a
// new version of baseline.
func (m *Manager) openDraft(ctx context.Context, baseline *types.DepositVersion) (string, error) {
	drafts, err := m.client.Drafts(ctx, baseline.ConceptID)
	if err != nil {
		return "", &StateError{State: StateDraftOpened, Err: err}
	}
	for _, d := range drafts {
		m.logger.Warn("discarding existing draft", map[string]any{"draft_id": d.VersionID, "label": d.Label})
		if err := m.client.DeleteDraft(ctx, d.VersionID); err != nil {
			return "", &StateError{State: StateDraftOpened, DraftID: d.VersionID, Err: err}
		}
		m.metrics.IncDraftsDiscarded()
	}

	draft, err := m.client.NewVersion(ctx, baseline.VersionID)
	if err != nil {
		return "", &StateError{State: StateDraftOpened, Err: err}
	}
	m.logger.Info("new version draft opened", map[string]any{"draft_id": draft.VersionID, "parent": baseline.VersionID})
	return draft.VersionID, nil
}

// reconcileFiles empties the draft and uploads files in order.
func (m *Manager) reconcileFiles(ctx context.Context, draftID string, files []types.LocalFile) error {
	existing, err := m.client.DraftFiles(ctx, draftID)
	if err != nil {
		return err
	}
	for _, f := range existing {
		if err := m.client.DeleteDraftFile(ctx, draftID, f.Filename); err != nil {
			return err
		}
		m.metrics.IncFilesDeleted()
	}

	for _, f := range files {
		m.logger.Info("uploading file", map[string]any{"file": f.Name})
		if err := m.client.UploadFile(ctx, draftID, f.Name, f.Path); err != nil {
			return err
		}
		m.metrics.IncFilesUploaded()
	}
	return nil
}

// mergeMetadata rewrites the draft's metadata, custom fields and preview.
func (m *Manager) mergeMetadata(ctx context.Context, draftID string, req PublishRequest) ([]string, error) {
	doc, err := m.client.Draft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	meta, _ := doc["metadata"].(map[string]any)
	custom, _ := doc["custom_fields"].(map[string]any)

	res, err := Merge(meta, custom, m.mergeInput(req))
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		m.logger.Warn(w, map[string]any{"draft_id": draftID})
	}

	doc["metadata"] = res.Metadata
	if len(res.CustomFields) > 0 {
		doc["custom_fields"] = res.CustomFields
	}
	if req.Preview != "" {
		files, _ := doc["files"].(map[string]any)
		if files == nil {
			files = map[string]any{"enabled": true}
		}
		files["default_preview"] = req.Preview
		doc["files"] = files
	}

	if err := m.client.UpdateDraft(ctx, draftID, doc); err != nil {
		return nil, err
	}
	return res.Warnings, nil
}
