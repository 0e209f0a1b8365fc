package ledger

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// failingStore is a lode.Store whose writes fail with putErr.
type failingStore struct {
	putErr   error
	putCalls int
}

func (s *failingStore) Put(_ context.Context, _ string, _ io.Reader) error {
	s.putCalls++
	return s.putErr
}

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func entry(project, tag, outcome string, at time.Time) Entry {
	return Entry{
		Project:   project,
		Tag:       tag,
		ConceptID: "100",
		Command:   "release",
		Outcome:   outcome,
		DOI:       "10.5281/zenodo.101",
		Files: []File{
			{Name: project + "-" + tag + ".pdf", Type: "pdf", Hashes: map[string]string{"md5": "aa", "sha256": "bb"}},
		},
		Identifiers: []types.Identifier{{Algorithm: "sha256", Value: "cc", Formatted: "sha256:cc", Components: []string{"bb"}}},
		Metrics:     Metrics{FilesUploaded: 2, VersionsPublished: 1},
		CompletedAt: at,
	}
}

func TestLedger_AppendListRoundTrip(t *testing.T) {
	m := metrics.NewCollector("release", "zenodo", "memory", "thesis", "v1")
	l, err := New(lode.NewMemoryFactory(), nil, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := t.Context()
	base := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	for i, e := range []Entry{
		entry("thesis", "v2", "publish", base.Add(2*time.Hour)),
		entry("thesis", "v1", "publish", base),
		entry("slides", "v1", "skip", base.Add(time.Hour)),
	} {
		if err := l.Append(ctx, e); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}

	all, err := l.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].Tag != "v1" || all[0].Project != "thesis" || all[2].Tag != "v2" {
		t.Errorf("entries not ordered by completion: %+v", all)
	}

	thesis, err := l.List(ctx, "thesis")
	if err != nil {
		t.Fatalf("List(thesis): %v", err)
	}
	if len(thesis) != 2 {
		t.Fatalf("len(thesis) = %d, want 2", len(thesis))
	}

	got := thesis[1]
	if !got.CompletedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("CompletedAt = %v", got.CompletedAt)
	}
	if got.Files[0].Hashes["sha256"] != "bb" || got.Identifiers[0].Formatted != "sha256:cc" {
		t.Errorf("entry = %+v", got)
	}
	if got.Metrics.FilesUploaded != 2 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if snap := m.Snapshot(); snap.LedgerWriteSuccess != 3 {
		t.Errorf("LedgerWriteSuccess = %d, want 3", snap.LedgerWriteSuccess)
	}
}

func TestLedger_GetLatestForTag(t *testing.T) {
	l, err := New(lode.NewMemoryFactory(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	base := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	_ = l.Append(ctx, entry("thesis", "v1", "skip", base))
	_ = l.Append(ctx, entry("thesis", "v1", "publish", base.Add(time.Minute)))
	_ = l.Append(ctx, entry("thesis", "v10", "publish", base.Add(2*time.Minute)))

	got, err := l.Get(ctx, "thesis", "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != "publish" || got.Tag != "v1" {
		t.Errorf("Get = %+v", got)
	}

	if _, err := l.Get(ctx, "thesis", "v3"); !errors.Is(err, ErrNoEntries) {
		t.Errorf("Get(v3) err = %v, want ErrNoEntries", err)
	}
}

func TestLedger_TagWithSlash(t *testing.T) {
	l, err := New(lode.NewMemoryFactory(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	if err := l.Append(ctx, entry("thesis", "release/v1", "publish", time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := l.Get(ctx, "thesis", "release/v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tag != "release/v1" {
		t.Errorf("Tag = %q", got.Tag)
	}
}

func TestLedger_WriteFailureIsClassified(t *testing.T) {
	store := &failingStore{putErr: errors.New("write /data: no space left on device")}
	m := metrics.NewCollector("release", "zenodo", "fs", "thesis", "v1")
	l, err := New(func() (lode.Store, error) { return store, nil }, nil, m)
	if err != nil {
		t.Fatal(err)
	}

	err = l.Append(t.Context(), entry("thesis", "v1", "publish", time.Now()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("err = %v, want ErrDiskFull", err)
	}
	if !errors.Is(err, types.ErrIO) {
		t.Error("storage errors should match types.ErrIO")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Errorf("err = %#v, want write StorageError", err)
	}
	if m.Snapshot().LedgerWriteFailure != 1 {
		t.Errorf("LedgerWriteFailure = %d", m.Snapshot().LedgerWriteFailure)
	}
}

func TestLedger_NilIsDisabled(t *testing.T) {
	var l *Ledger
	if err := l.Append(t.Context(), Entry{}); err != nil {
		t.Errorf("Append on nil ledger: %v", err)
	}
	entries, err := l.List(t.Context(), "")
	if err != nil || entries != nil {
		t.Errorf("List on nil ledger = %v, %v", entries, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := t.Context()
	l, err := Open(ctx, Config{Backend: BackendNone}, nil, nil)
	if err != nil || l != nil {
		t.Errorf("Open(none) = %v, %v", l, err)
	}
	if _, err := Open(ctx, Config{Backend: BackendFS}, nil, nil); err == nil {
		t.Error("Open(fs) without path should fail")
	}
	if _, err := Open(ctx, Config{Backend: "ftp"}, nil, nil); err == nil {
		t.Error("Open(ftp) should fail")
	}

	dir := t.TempDir()
	l, err = Open(ctx, Config{Backend: BackendFS, Path: dir}, nil, nil)
	if err != nil {
		t.Fatalf("Open(fs): %v", err)
	}
	if err := l.Append(ctx, entry("thesis", "v1", "publish", time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reopened, err := Open(ctx, Config{Backend: BackendFS, Path: dir}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := reopened.List(ctx, "thesis")
	if err != nil || len(entries) != 1 {
		t.Errorf("List after reopen = %v, %v", entries, err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct{ in, bucket, prefix string }{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b", "bucket", "a/b"},
		{"s3://bucket/ledger", "bucket", "ledger"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.in, b, p)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("empty bucket should fail")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	path := "zp_releases/project=thesis/tag=v10/data.jsonl"
	if !matchesPartitionValue(path, "tag", "v10") {
		t.Error("exact segment should match")
	}
	if matchesPartitionValue(path, "tag", "v1") {
		t.Error("prefix of a segment must not match")
	}
}

func TestSnapshotMatchesFilter(t *testing.T) {
	snap := &lode.DatasetSnapshot{
		ID: "snap-1",
		Manifest: &lode.Manifest{Files: []lode.FileRef{
			{Path: "project=thesis/tag=v1/data.jsonl"},
		}},
	}
	if !snapshotMatchesFilter(snap, "project", "thesis") {
		t.Error("snapshot under project=thesis should match")
	}
	if snapshotMatchesFilter(snap, "project", "thesis-2") {
		t.Error("snapshot of another project must not match")
	}
	if !snapshotMatchesFilter(snap, "project", "") {
		t.Error("empty value matches every snapshot")
	}
}
