package hasher

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sort"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Git tree entry modes.
const (
	modeFile       = "100644"
	modeExecutable = "100755"
	modeSymlink    = "120000"
	modeDir        = "40000"
)

// objectStore is an ephemeral content-addressable store. It keeps object
// ids and sizes only; nothing outlives one TreeHash call.
type objectStore struct {
	newHash func() hash.Hash
	objects map[string]int
}

// put stores an object and returns its raw id.
func (s *objectStore) put(kind string, body []byte) []byte {
	h := s.newHash()
	fmt.Fprintf(h, "%s %d\x00", kind, len(body))
	h.Write(body)
	id := h.Sum(nil)
	s.objects[hex.EncodeToString(id)] = len(body)
	return id
}

type treeEntry struct {
	mode string
	name string
	id   []byte
}

// sortKey orders entries the way git does: directories compare as if
// their name ended in "/".
func (e treeEntry) sortKey() string {
	if e.mode == modeDir {
		return e.name + "/"
	}
	return e.name
}

// TreeHash returns the git tree id of dir under algo ("tree" or
// "tree256"). Only paths, contents and permission bits contribute.
// Empty directories and .git are skipped, as git would.
func TreeHash(dir, algo string) (string, error) {
	if !IsTree(algo) {
		return "", types.Errorf(types.ErrConfiguration, "hash", "%q is not a tree algorithm", algo)
	}

	store := &objectStore{
		newHash: byteAlgorithms[treeFallback[algo]],
		objects: make(map[string]int),
	}
	id, _, err := store.writeTree(dir)
	if err != nil {
		return "", types.NewError(types.ErrIO, "tree hash", err)
	}
	return hex.EncodeToString(id), nil
}

// writeTree stores dir recursively and returns its id and entry count.
func (s *objectStore) writeTree(dir string) ([]byte, int, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]treeEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if name == ".git" {
			continue
		}
		path := filepath.Join(dir, name)

		info, err := os.Lstat(path)
		if err != nil {
			return nil, 0, err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return nil, 0, err
			}
			entries = append(entries, treeEntry{modeSymlink, name, s.put("blob", []byte(target))})

		case info.IsDir():
			id, n, err := s.writeTree(path)
			if err != nil {
				return nil, 0, err
			}
			if n == 0 {
				continue
			}
			entries = append(entries, treeEntry{modeDir, name, id})

		case info.Mode().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, 0, err
			}
			mode := modeFile
			if info.Mode()&0o100 != 0 {
				mode = modeExecutable
			}
			entries = append(entries, treeEntry{mode, name, s.put("blob", data)})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sortKey() < entries[j].sortKey()
	})

	var body bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&body, "%s %s\x00", e.mode, e.name)
		body.Write(e.id)
	}
	return s.put("tree", body.Bytes()), len(entries), nil
}
