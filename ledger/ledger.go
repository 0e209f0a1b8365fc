// Package ledger records every release run in a lode dataset, partitioned
// by project and tag, and reads the history back.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
)

// Dataset is the lode dataset id of the ledger.
const Dataset = "zp_releases"

// Backend names accepted by Open.
const (
	BackendNone = "none"
	BackendFS   = "fs"
	BackendS3   = "s3"
)

// ErrNoEntries is returned by Get when nothing matches.
var ErrNoEntries = errors.New("no ledger entries found")

// Config selects and configures the storage backend.
type Config struct {
	Backend string
	// Path is a directory (fs) or "bucket/prefix" (s3).
	Path      string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Ledger appends and lists release entries. A nil *Ledger is a disabled
// ledger: Append is a no-op and reads return nothing.
type Ledger struct {
	dataset lode.Dataset
	logger  *log.Logger
	metrics *metrics.Collector
}

// Open builds the ledger for cfg. It returns nil for the "none" backend.
func Open(ctx context.Context, cfg Config, logger *log.Logger, m *metrics.Collector) (*Ledger, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendFS:
		if cfg.Path == "" {
			return nil, errors.New("ledger path is required for the fs backend")
		}
		return New(lode.NewFSFactory(cfg.Path), logger, m)
	case BackendS3:
		bucket, prefix := ParseS3Path(cfg.Path)
		factory, err := newS3Factory(ctx, S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.PathStyle,
		})
		if err != nil {
			return nil, WrapInitError(err, Dataset)
		}
		return New(factory, logger, m)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// New creates a ledger over any lode store factory. Use
// lode.NewMemoryFactory() in tests.
func New(factory lode.StoreFactory, logger *log.Logger, m *metrics.Collector) (*Ledger, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(Dataset),
		factory,
		lode.WithHiveLayout("project", "tag"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, Dataset)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Ledger{dataset: ds, logger: logger, metrics: m}, nil
}

// Append writes one entry as its own snapshot.
func (l *Ledger) Append(ctx context.Context, e Entry) error {
	if l == nil {
		return nil
	}
	rec, err := toRecord(e)
	if err != nil {
		return err
	}
	if _, err := l.dataset.Write(ctx, []any{rec}, lode.Metadata{}); err != nil {
		l.metrics.IncLedgerWriteFailure()
		return WrapWriteError(err, fmt.Sprintf("%s/project=%s/tag=%s", Dataset, rec["project"], rec["tag"]))
	}
	l.metrics.IncLedgerWriteSuccess()
	l.logger.Debug("ledger entry written", map[string]any{"project": e.Project, "tag": e.Tag, "outcome": e.Outcome})
	return nil
}

// List returns the entries of project (all projects when empty), oldest
// first.
func (l *Ledger) List(ctx context.Context, project string) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	snapshots, err := l.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, Dataset+"/snapshots")
	}

	var entries []Entry
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "project", escape(project)) {
			continue
		}
		data, err := l.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", Dataset, snap.ID))
		}
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			e, ok, err := fromRecord(rec)
			if err != nil {
				return nil, err
			}
			if !ok || (project != "" && e.Project != project) {
				continue
			}
			entries = append(entries, e)
		}
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.CompletedAt.Compare(b.CompletedAt)
	})
	return entries, nil
}

// Get returns the most recent entry for project and tag.
func (l *Ledger) Get(ctx context.Context, project, tag string) (*Entry, error) {
	entries, err := l.List(ctx, project)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Tag == tag {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w for %s %s", ErrNoEntries, cmp.Or(project, "any project"), tag)
}

// snapshotMatchesFilter reports whether any file of the snapshot lives
// under the key=value partition. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue matches an exact key=value path segment, so
// tag=v1 does not match tag=v10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
