package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/pithecene-io/zenodo-publisher/iox"
)

// writeTarball writes contentDir (including its own directory entry, which
// becomes the archive prefix) to dst in the given tar format.
func writeTarball(dst, contentDir string, format Format, tarOpts TarOptions, gzOpts GzipOptions) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}

	w, closeCompressor, err := compressor(f, format, gzOpts, strings.TrimSuffix(filepath.Base(dst), ".gz"))
	if err != nil {
		_ = f.Close()
		return err
	}

	if err := writeTar(w, contentDir, tarOpts); err != nil {
		_ = f.Close()
		return err
	}
	if err := closeCompressor(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// compressor wraps w for the format's compression. The returned close
// function flushes the compressor but leaves w open.
func compressor(w io.Writer, format Format, gzOpts GzipOptions, name string) (io.Writer, func() error, error) {
	switch format {
	case FormatTar:
		return w, func() error { return nil }, nil

	case FormatTarGz:
		zw, err := gzip.NewWriterLevel(w, gzOpts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip writer: %w", err)
		}
		if gzOpts.KeepName {
			zw.Name = name
			zw.ModTime = time.Now()
		}
		return zw, zw.Close, nil

	case FormatTarZst:
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, zw.Close, nil

	case FormatTarLz4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(
			lz4.CompressionLevelOption(lz4.Level9),
			lz4.ConcurrencyOption(1),
		); err != nil {
			return nil, nil, fmt.Errorf("lz4 writer: %w", err)
		}
		return zw, zw.Close, nil

	default:
		return nil, nil, fmt.Errorf("format %s is not a tar format", format)
	}
}

// writeTar streams contentDir into a tar with every non-content field
// taken from opts. Entries are emitted in name order.
func writeTar(w io.Writer, contentDir string, opts TarOptions) error {
	parent := filepath.Dir(contentDir)
	tw := tar.NewWriter(w)

	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		normalizeHeader(hdr, name, info, opts)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar header %s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer iox.DiscardClose(src)
		if _, err := io.Copy(tw, src); err != nil {
			return fmt.Errorf("tar content %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

func normalizeHeader(hdr *tar.Header, name string, info fs.FileInfo, opts TarOptions) {
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	if opts.Format != tar.FormatUnknown {
		hdr.Format = opts.Format
	}

	hdr.ModTime = info.ModTime().Truncate(time.Second)
	if opts.MTime != nil {
		hdr.ModTime = *opts.MTime
	}
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.PAXRecords = nil

	if opts.Owner != nil {
		hdr.Uid = *opts.Owner
		hdr.Uname = opts.OwnerName
	}
	if opts.Group != nil {
		hdr.Gid = *opts.Group
		hdr.Gname = opts.GroupName
	}
	if opts.NumericOwner {
		hdr.Uname = ""
		hdr.Gname = ""
	}

	perm := info.Mode().Perm()
	if len(opts.Mode) > 0 {
		perm = applyMode(perm, info.IsDir(), opts.Mode)
	}
	hdr.Mode = int64(perm)
}
