package deposit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pithecene-io/zenodo-publisher/deposit/deposittest"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

const clientToken = "secret-token"

func newTestClient(t *testing.T, baseURL, token string, m *metrics.Collector) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, Token: token}, log.Nop(), m)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://sandbox.zenodo.org/api"}, nil, nil)
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("missing token error = %v, want configuration error", err)
	}

	c, err := NewClient(Config{Token: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.base != DefaultBaseURL {
		t.Errorf("base = %q, want %q", c.base, DefaultBaseURL)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
	}

	c, err = NewClient(Config{BaseURL: "https://example.org/api/", Token: "t"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.base != "https://example.org/api" {
		t.Errorf("trailing slash not trimmed: %q", c.base)
	}
}

func TestClient_LatestVersion(t *testing.T) {
	srv := deposittest.New(t, clientToken)
	rec := srv.Seed("100", "v1.0.0", map[string][]byte{"paper.pdf": []byte("%PDF-1.7")})

	c := newTestClient(t, srv.BaseURL(), clientToken, nil)
	v, err := c.LatestVersion(context.Background(), "100")
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if v.VersionID != rec.ID || v.ConceptID != "100" || v.Label != "v1.0.0" {
		t.Errorf("version = %+v", v)
	}
	if len(v.Files) != 1 || v.Files[0].Filename != "paper.pdf" {
		t.Fatalf("files = %+v", v.Files)
	}
	sum := md5.Sum([]byte("%PDF-1.7"))
	if v.Files[0].Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum = %q, want bare md5 hex", v.Files[0].Checksum)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := deposittest.New(t, clientToken)
	srv.Seed("100", "v1", nil)
	srv.Fail(http.MethodGet, "/versions/latest", http.StatusServiceUnavailable)

	m := metrics.NewCollector("release", "zenodo", "none", "paper", "v1")
	c := newTestClient(t, srv.BaseURL(), clientToken, m)
	_, err := c.LatestVersion(context.Background(), "100")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Method != http.MethodGet {
		t.Errorf("status error = %+v", se)
	}
	if !strings.Contains(se.Body, "injected failure") {
		t.Errorf("body = %q", se.Body)
	}

	snap := m.Snapshot()
	if snap.APIRequests != 1 || snap.APIFailures != 1 {
		t.Errorf("api metrics = %d/%d, want 1/1", snap.APIRequests, snap.APIFailures)
	}
}

func TestClient_BearerToken(t *testing.T) {
	srv := deposittest.New(t, clientToken)
	srv.Seed("100", "v1", nil)

	c := newTestClient(t, srv.BaseURL(), "wrong-token", nil)
	_, err := c.LatestVersion(context.Background(), "100")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403", err)
	}
}

func TestClient_UploadFileStreams(t *testing.T) {
	type call struct {
		method, path, contentType, body string
		length                          int64
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(data), r.ContentLength})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestClient(t, srv.URL, clientToken, nil)
	if err := c.UploadFile(context.Background(), "2001", "paper v1.pdf", path); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("got %d calls, want register, content, commit", len(calls))
	}
	if calls[0].method != http.MethodPost || calls[0].path != "/records/2001/draft/files" ||
		calls[0].contentType != "application/json" || !strings.Contains(calls[0].body, `"key":"paper v1.pdf"`) {
		t.Errorf("register call = %+v", calls[0])
	}
	if calls[1].method != http.MethodPut || calls[1].path != "/records/2001/draft/files/paper v1.pdf/content" {
		t.Errorf("content call = %+v", calls[1])
	}
	if calls[1].contentType != "application/octet-stream" || calls[1].body != "content" || calls[1].length != 7 {
		t.Errorf("content not streamed as octet-stream: %+v", calls[1])
	}
	if calls[2].method != http.MethodPost || !strings.HasSuffix(calls[2].path, "/commit") {
		t.Errorf("commit call = %+v", calls[2])
	}
}

func TestClient_UploadMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, clientToken, nil)
	err := c.UploadFile(context.Background(), "1", "x.pdf", filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, types.ErrIO) {
		t.Errorf("err = %v, want io error", err)
	}
}

func TestStateError(t *testing.T) {
	cause := &StatusError{Code: 500, Method: "POST", Path: "/records/1/versions"}
	err := &StateError{State: StateDraftOpened, DraftID: "2002", Err: cause}

	if !errors.Is(err, types.ErrRemote) {
		t.Error("unclassified cause should be a remote error")
	}
	if !strings.Contains(err.Error(), "draft 2002 left in place") {
		t.Errorf("Error() = %q", err.Error())
	}

	classified := &StateError{State: StateMetadataMerged, Err: types.Errorf(types.ErrConfiguration, "metadata", "version is forbidden")}
	if errors.Is(classified, types.ErrRemote) {
		t.Error("classified cause must keep its own kind")
	}
	if !errors.Is(classified, types.ErrConfiguration) {
		t.Error("configuration cause lost")
	}
}
