// Package hasher computes content-identity digests for release artifacts.
//
// Byte-hash algorithms stream a file through a standard digest. Tree-hash
// algorithms compute the git tree object id of a directory; applied to a
// plain file they fall back to the byte-hash of the same family and keep
// the tree algorithm's label.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/pithecene-io/zenodo-publisher/iox"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// Algorithm names.
const (
	MD5     = "md5"
	SHA1    = "sha1"
	SHA256  = "sha256"
	SHA512  = "sha512"
	BLAKE3  = "blake3"
	Tree    = "tree"
	Tree256 = "tree256"
)

var byteAlgorithms = map[string]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA512: sha512.New,
	BLAKE3: func() hash.Hash { return blake3.New() },
}

// treeFallback maps each tree algorithm to its object digest, which is also
// the byte-hash substituted when the target is not a tree.
var treeFallback = map[string]string{
	Tree:    SHA1,
	Tree256: SHA256,
}

// IsTree reports whether algo is a tree-hash algorithm.
func IsTree(algo string) bool {
	_, ok := treeFallback[algo]
	return ok
}

// Fallback returns the byte-hash algorithm a tree algorithm maps to.
// Byte-hash algorithms map to themselves.
func Fallback(algo string) string {
	if fb, ok := treeFallback[algo]; ok {
		return fb
	}
	return algo
}

// Supported returns every recognized algorithm name, sorted.
func Supported() []string {
	names := make([]string, 0, len(byteAlgorithms)+len(treeFallback))
	for name := range byteAlgorithms {
		names = append(names, name)
	}
	for name := range treeFallback {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects unknown algorithm names with a configuration error.
// Call it at setup so a typo never surfaces mid-run.
func Validate(algos []string) error {
	for _, a := range algos {
		if _, ok := byteAlgorithms[a]; ok {
			continue
		}
		if IsTree(a) {
			continue
		}
		return types.Errorf(types.ErrConfiguration, "hash",
			"unsupported hash algorithm %q (supported: %v)", a, Supported())
	}
	return nil
}

// WithRequired returns algos plus md5 and sha256, deduplicated and sorted.
func WithRequired(algos []string) []string {
	out := append([]string{types.AlgoMD5, types.AlgoSHA256}, algos...)
	sort.Strings(out)
	return slices.Compact(out)
}

// Hash computes the requested digests of target.
// A directory gets tree hashes for tree algorithms; byte algorithms
// cannot apply to a directory. A file gets byte hashes, with tree
// algorithms substituted by their fallback.
func Hash(target string, algos []string) (map[string]string, error) {
	if err := Validate(algos); err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, types.NewError(types.ErrIO, "hash", err)
	}
	if !info.IsDir() {
		return HashFile(target, algos)
	}

	out := make(map[string]string, len(algos))
	for _, a := range algos {
		if !IsTree(a) {
			return nil, types.Errorf(types.ErrConfiguration, "hash",
				"algorithm %q cannot hash directory %s", a, target)
		}
		digest, err := TreeHash(target, a)
		if err != nil {
			return nil, err
		}
		out[a] = digest
	}
	return out, nil
}

// HashFile streams path once through every requested algorithm.
// Tree algorithms use their byte-hash fallback and keep their own label.
func HashFile(path string, algos []string) (map[string]string, error) {
	if err := Validate(algos); err != nil {
		return nil, err
	}

	hashers := make(map[string]hash.Hash, len(algos))
	writers := make([]io.Writer, 0, len(algos))
	for _, a := range algos {
		if _, seen := hashers[a]; seen {
			continue
		}
		h := byteAlgorithms[Fallback(a)]()
		hashers[a] = h
		writers = append(writers, h)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewError(types.ErrIO, "hash", fmt.Errorf("opening %s for hashing: %w", path, err))
	}
	defer iox.DiscardClose(f)

	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return nil, types.NewError(types.ErrIO, "hash", fmt.Errorf("hashing %s: %w", path, err))
	}

	out := make(map[string]string, len(hashers))
	for a, h := range hashers {
		out[a] = hex.EncodeToString(h.Sum(nil))
	}
	return out, nil
}

// Bytes returns the hex digest of data under a byte-hash algorithm
// (tree algorithms use their fallback).
func Bytes(algo string, data []byte) (string, error) {
	if err := Validate([]string{algo}); err != nil {
		return "", err
	}
	h := byteAlgorithms[Fallback(algo)]()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Format renders a digest as "<algo>:<hex>".
func Format(algo, digest string) string {
	return algo + ":" + digest
}
