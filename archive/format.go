// Package archive builds reproducible archives of a version-controlled
// tree at a given reference.
//
// The tree is exported with `git archive` as a prefix-qualified zip. The
// tar formats are produced by extracting that zip into scratch space and
// repacking it with pinned metadata, so repeated builds of the same
// reference with the same arguments are byte-identical.
package archive

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Format is an archive container format.
type Format string

// Supported formats.
const (
	FormatZip    Format = "zip"
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
	FormatTarLz4 Format = "tar.lz4"
)

// Formats lists every supported format in display order.
func Formats() []Format {
	return []Format{FormatZip, FormatTar, FormatTarGz, FormatTarZst, FormatTarLz4}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", types.Errorf(types.ErrConfiguration, "archive", "invalid archive format %q (must be one of %v)", s, Formats())
}

// IsTar reports whether f is repacked from the extracted tree.
func (f Format) IsTar() bool {
	return f != FormatZip
}

// Extension returns the file extension without leading dot.
func (f Format) Extension() string {
	return string(f)
}

// FileName returns "<prefix>.<ext>".
func (f Format) FileName(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, f.Extension())
}
