// Package deposittest provides an in-memory InvenioRDM deposit API for
// tests.
package deposittest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// File is a file attached to a record.
type File struct {
	Key       string
	Data      []byte
	Committed bool
}

// Checksum returns "md5:<hex>" as the API reports it.
func (f *File) Checksum() string {
	sum := md5.Sum(f.Data)
	return "md5:" + hex.EncodeToString(sum[:])
}

// Record is a published version or a draft.
type Record struct {
	ID             string
	ParentID       string
	Published      bool
	Metadata       map[string]any
	CustomFields   map[string]any
	DefaultPreview string
	Files          []*File
}

func (r *Record) file(key string) *File {
	for _, f := range r.Files {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// Server is a fake deposit API backed by memory.
type Server struct {
	*httptest.Server
	Token string

	mu       sync.Mutex
	records  map[string]*Record
	order    []string
	nextID   int
	requests []string
	fail     []failRule
	// maxDrafts is the largest number of drafts under one concept seen
	// when file content was uploaded.
	maxDrafts int
}

type failRule struct {
	method, suffix string
	code           int
}

// New starts a Server closed at test cleanup.
func New(t testing.TB, token string) *Server {
	t.Helper()
	s := &Server{Token: token, records: make(map[string]*Record), nextID: 1000}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// Seed adds a published version under concept.
func (s *Server) Seed(concept, label string, files map[string][]byte) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.newRecord(concept)
	r.Published = true
	r.Metadata = map[string]any{
		"title":            "A thesis",
		"version":          label,
		"publication_date": "2024-01-01",
		"creators":         []any{map[string]any{"person_or_org": map[string]any{"name": "Lovelace, Ada"}}},
	}
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		r.Files = append(r.Files, &File{Key: k, Data: files[k], Committed: true})
	}
	return r
}

// SeedDraft adds an unpublished draft under concept.
func (s *Server) SeedDraft(concept string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.newRecord(concept)
	r.Metadata = map[string]any{"title": "stale draft"}
	return r
}

// Fail makes requests with method whose path ends with suffix return code.
func (s *Server) Fail(method, suffix string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = append(s.fail, failRule{method, suffix, code})
}

// Record returns the record with id, or nil.
func (s *Server) Record(id string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

// Drafts returns the ids of unpublished records under concept.
func (s *Server) Drafts(concept string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range s.order {
		if r := s.records[id]; r != nil && r.ParentID == concept && !r.Published {
			out = append(out, id)
		}
	}
	return out
}

// Latest returns the most recent published record under concept.
func (s *Server) Latest(concept string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest(concept)
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Count returns how many requests had the method and a path ending in suffix.
func (s *Server) Count(method, suffix string) int {
	n := 0
	for _, r := range s.Requests() {
		m, p, _ := strings.Cut(r, " ")
		if m == method && strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

// MaxDraftsAtUpload is the most drafts coexisting under one concept at
// any file upload.
func (s *Server) MaxDraftsAtUpload() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDrafts
}

func (s *Server) newRecord(concept string) *Record {
	s.nextID++
	id := strconv.Itoa(s.nextID)
	r := &Record{ID: id, ParentID: concept, Metadata: map[string]any{}}
	s.records[id] = r
	s.order = append(s.order, id)
	return r
}

func (s *Server) latest(concept string) *Record {
	if r := s.records[concept]; r != nil && r.ParentID != concept {
		concept = r.ParentID
	}
	var latest *Record
	for _, id := range s.order {
		if r := s.records[id]; r != nil && r.ParentID == concept && r.Published {
			latest = r
		}
	}
	return latest
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/records/{id}/versions/latest", s.handleLatest)
	mux.HandleFunc("POST /api/records/{id}/versions", s.handleNewVersion)
	mux.HandleFunc("GET /api/user/records", s.handleUserRecords)
	mux.HandleFunc("GET /api/records/{id}/draft", s.handleGetDraft)
	mux.HandleFunc("PUT /api/records/{id}/draft", s.handlePutDraft)
	mux.HandleFunc("DELETE /api/records/{id}/draft", s.handleDeleteDraft)
	mux.HandleFunc("GET /api/records/{id}/draft/files", s.handleListFiles)
	mux.HandleFunc("POST /api/records/{id}/draft/files", s.handleRegisterFiles)
	mux.HandleFunc("DELETE /api/records/{id}/draft/files/{key}", s.handleDeleteFile)
	mux.HandleFunc("PUT /api/records/{id}/draft/files/{key}/content", s.handleContent)
	mux.HandleFunc("POST /api/records/{id}/draft/files/{key}/commit", s.handleCommit)
	mux.HandleFunc("POST /api/records/{id}/draft/actions/publish", s.handlePublish)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api"))
		rules := slices.Clone(s.fail)
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
			return
		}
		for _, f := range rules {
			if r.Method == f.method && strings.HasSuffix(r.URL.Path, f.suffix) {
				http.Error(w, `{"message":"injected failure"}`, f.code)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) render(r *Record) map[string]any {
	entries := make(map[string]any, len(r.Files))
	for _, f := range r.Files {
		entries[f.Key] = map[string]any{"key": f.Key, "checksum": f.Checksum(), "size": len(f.Data)}
	}
	doc := map[string]any{
		"id":            r.ID,
		"parent":        map[string]any{"id": r.ParentID},
		"is_draft":      !r.Published,
		"is_published":  r.Published,
		"metadata":      r.Metadata,
		"custom_fields": r.CustomFields,
		"files": map[string]any{
			"enabled":         true,
			"default_preview": r.DefaultPreview,
			"entries":         entries,
		},
		"links": map[string]any{"self_html": s.URL + "/records/" + r.ID},
	}
	if r.Published {
		doc["pids"] = map[string]any{"doi": map[string]any{"identifier": "10.5281/zenodo." + r.ID}}
	}
	return doc
}

func (s *Server) draft(w http.ResponseWriter, req *http.Request) *Record {
	r := s.records[req.PathValue("id")]
	if r == nil || r.Published {
		http.Error(w, `{"message":"draft not found"}`, http.StatusNotFound)
		return nil
	}
	return r
}

func (s *Server) handleLatest(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.latest(req.PathValue("id"))
	if r == nil {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.render(r))
}

func (s *Server) handleNewVersion(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := s.records[req.PathValue("id")]
	if parent == nil || !parent.Published {
		http.Error(w, `{"message":"record not found"}`, http.StatusNotFound)
		return
	}
	for _, id := range s.order {
		if r := s.records[id]; r != nil && r.ParentID == parent.ParentID && !r.Published {
			http.Error(w, `{"message":"a draft already exists"}`, http.StatusBadRequest)
			return
		}
	}

	d := s.newRecord(parent.ParentID)
	d.Metadata = deepCopy(parent.Metadata)
	d.CustomFields = deepCopy(parent.CustomFields)
	for _, f := range parent.Files {
		d.Files = append(d.Files, &File{Key: f.Key, Data: f.Data, Committed: true})
	}
	writeJSON(w, http.StatusCreated, s.render(d))
}

func (s *Server) handleUserRecords(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	concept := strings.TrimPrefix(req.URL.Query().Get("q"), "parent.id:")
	unpublished := req.URL.Query().Get("is_published") == "false"

	hits := []any{}
	for _, id := range s.order {
		r := s.records[id]
		if r == nil || r.ParentID != concept || (unpublished && r.Published) {
			continue
		}
		hits = append(hits, s.render(r))
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": map[string]any{"hits": hits, "total": len(hits)}})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.draft(w, req); r != nil {
		writeJSON(w, http.StatusOK, s.render(r))
	}
}

func (s *Server) handlePutDraft(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	var doc struct {
		Metadata     map[string]any `json:"metadata"`
		CustomFields map[string]any `json:"custom_fields"`
		Files        struct {
			DefaultPreview string `json:"default_preview"`
		} `json:"files"`
	}
	if err := json.NewDecoder(req.Body).Decode(&doc); err != nil {
		http.Error(w, `{"message":"bad json"}`, http.StatusBadRequest)
		return
	}
	if doc.Files.DefaultPreview != "" && r.file(doc.Files.DefaultPreview) == nil {
		http.Error(w, `{"message":"default preview not found"}`, http.StatusBadRequest)
		return
	}
	r.Metadata = doc.Metadata
	r.CustomFields = doc.CustomFields
	r.DefaultPreview = doc.Files.DefaultPreview
	writeJSON(w, http.StatusOK, s.render(r))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.draft(w, req); r != nil {
		delete(s.records, r.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	entries := []any{}
	for _, f := range r.Files {
		entries = append(entries, map[string]any{"key": f.Key, "checksum": f.Checksum(), "size": len(f.Data)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleRegisterFiles(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	var keys []struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&keys); err != nil {
		http.Error(w, `{"message":"bad json"}`, http.StatusBadRequest)
		return
	}
	for _, k := range keys {
		if r.file(k.Key) != nil {
			http.Error(w, fmt.Sprintf(`{"message":"file %s already exists"}`, k.Key), http.StatusBadRequest)
			return
		}
		r.Files = append(r.Files, &File{Key: k.Key})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": keys})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	key := req.PathValue("key")
	i := slices.IndexFunc(r.Files, func(f *File) bool { return f.Key == key })
	if i < 0 {
		http.Error(w, `{"message":"file not found"}`, http.StatusNotFound)
		return
	}
	r.Files = slices.Delete(r.Files, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContent(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	f := r.file(req.PathValue("key"))
	if f == nil {
		http.Error(w, `{"message":"file not registered"}`, http.StatusNotFound)
		return
	}
	if req.Header.Get("Content-Type") != "application/octet-stream" {
		http.Error(w, `{"message":"expected octet-stream"}`, http.StatusUnsupportedMediaType)
		return
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, `{"message":"read error"}`, http.StatusBadRequest)
		return
	}
	f.Data = data

	drafts := 0
	for _, rec := range s.records {
		if rec.ParentID == r.ParentID && !rec.Published {
			drafts++
		}
	}
	s.maxDrafts = max(s.maxDrafts, drafts)
	writeJSON(w, http.StatusOK, map[string]any{"key": f.Key})
}

func (s *Server) handleCommit(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	f := r.file(req.PathValue("key"))
	if f == nil {
		http.Error(w, `{"message":"file not registered"}`, http.StatusNotFound)
		return
	}
	f.Committed = true
	writeJSON(w, http.StatusOK, map[string]any{"key": f.Key, "checksum": f.Checksum()})
}

func (s *Server) handlePublish(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.draft(w, req)
	if r == nil {
		return
	}
	if len(r.Files) == 0 {
		http.Error(w, `{"message":"missing files"}`, http.StatusBadRequest)
		return
	}
	for _, f := range r.Files {
		if !f.Committed {
			http.Error(w, fmt.Sprintf(`{"message":"file %s not committed"}`, f.Key), http.StatusBadRequest)
			return
		}
	}
	r.Published = true
	writeJSON(w, http.StatusAccepted, s.render(r))
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}
