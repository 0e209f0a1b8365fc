package hasher

import (
	"sort"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Compose combines several hex digests into one identifier digest.
// A single digest is returned unchanged. Otherwise the digests are sorted,
// concatenated and re-hashed with algo's byte-hash, so the result does not
// depend on input order.
func Compose(digests []string, algo string) (string, error) {
	if len(digests) == 0 {
		return "", types.Errorf(types.ErrConfiguration, "identifier", "no digests to compose for %s", algo)
	}
	if len(digests) == 1 {
		return digests[0], nil
	}

	sorted := append([]string(nil), digests...)
	sort.Strings(sorted)
	return Bytes(algo, []byte(strings.Join(sorted, "")))
}

// Identifier composes the identifier for algo over the given artifacts.
func Identifier(algo string, artifacts []types.Artifact) (types.Identifier, error) {
	digests := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		d, ok := a.Hashes[algo]
		if !ok {
			return types.Identifier{}, types.Errorf(types.ErrConfiguration, "identifier",
				"artifact %s has no %s hash", a.Name(), algo)
		}
		digests = append(digests, d)
	}

	value, err := Compose(digests, algo)
	if err != nil {
		return types.Identifier{}, err
	}
	sort.Strings(digests)
	return types.Identifier{
		Algorithm:  algo,
		Value:      value,
		Formatted:  Format(algo, value),
		Components: digests,
	}, nil
}
