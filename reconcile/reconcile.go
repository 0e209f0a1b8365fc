// Package reconcile classifies a release against the previously published
// version. It performs no I/O.
package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Outcome is the action taken for a release.
type Outcome string

const (
	// Skip: identical content under an identical label.
	Skip Outcome = "skip"
	// SkipWarn: identical content under a new label.
	SkipWarn Outcome = "skip_warn"
	// Publish: a new version is created.
	Publish Outcome = "publish"
)

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome
	// Warning is set for SkipWarn and for Publish with an unchanged label.
	// A forced publish keeps the warning of the outcome it replaced.
	Warning string
	// Forced marks a Skip or SkipWarn turned into Publish.
	Forced bool
}

// Publishes reports whether the decision leads to a new version.
func (d Decision) Publishes() bool {
	return d.Outcome == Publish
}

// Decide applies the decision table. force turns Skip and SkipWarn into
// Publish but never clears a warning.
func Decide(filesEqual, versionsEqual, force bool) Decision {
	var d Decision
	switch {
	case filesEqual && versionsEqual:
		d.Outcome = Skip
	case filesEqual:
		d.Outcome = SkipWarn
		d.Warning = "files are identical to the published version but the release label changed"
	case versionsEqual:
		d.Outcome = Publish
		d.Warning = "files changed but the release label equals the published label"
	default:
		d.Outcome = Publish
	}

	if force && d.Outcome != Publish {
		d.Outcome = Publish
		d.Forced = true
	}
	return d
}

// Comparison is the file-level difference between a local upload set and
// the published files. Names are sorted.
type Comparison struct {
	Equal bool
	// Changed lists local files whose checksum is not published.
	Changed []string
	// Removed lists published files whose checksum is not local.
	Removed []string
}

// String summarizes the difference for diagnostics.
func (c Comparison) String() string {
	if c.Equal {
		return "files identical"
	}
	return fmt.Sprintf("%d new/modified file(s) %v, %d removed file(s) %v",
		len(c.Changed), c.Changed, len(c.Removed), c.Removed)
}

// CompareFiles compares local and remote files by md5 checksum.
// Signature files are excluded on both sides.
func CompareFiles(local []types.LocalFile, remote []types.RemoteFileRecord) Comparison {
	localSums := make(map[string]string)
	for _, f := range local {
		if f.IsSignature {
			continue
		}
		localSums[strings.ToLower(f.MD5)] = f.Name
	}
	remoteSums := make(map[string]string)
	for _, f := range remote {
		if IsSignatureName(f.Filename) || f.Checksum == "" {
			continue
		}
		remoteSums[strings.ToLower(f.Checksum)] = f.Filename
	}

	var c Comparison
	for sum, name := range localSums {
		if _, ok := remoteSums[sum]; !ok {
			c.Changed = append(c.Changed, name)
		}
	}
	for sum, name := range remoteSums {
		if _, ok := localSums[sum]; !ok {
			c.Removed = append(c.Removed, name)
		}
	}
	slices.Sort(c.Changed)
	slices.Sort(c.Removed)
	c.Equal = len(c.Changed) == 0 && len(c.Removed) == 0
	return c
}

// IsSignatureName reports whether a file name is a detached signature.
func IsSignatureName(name string) bool {
	return strings.HasSuffix(name, ".asc") || strings.HasSuffix(name, ".sig")
}

// VersionsEqual compares a release tag with a published label exactly.
func VersionsEqual(tag, label string) bool {
	return tag == label
}

// Evaluate compares a release with its baseline and decides.
func Evaluate(tag string, local []types.LocalFile, baseline *types.DepositVersion, force bool) (Decision, Comparison) {
	cmp := CompareFiles(local, baseline.Files)
	return Decide(cmp.Equal, VersionsEqual(tag, baseline.Label), force), cmp
}
