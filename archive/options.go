package archive

import (
	"archive/tar"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// TarDefaultArgs pin every non-content field of a tar stream.
var TarDefaultArgs = []string{
	"--sort=name",
	"--format=posix",
	"--pax-option=exthdr.name=%d/PaxHeaders/%f,delete=atime,delete=ctime",
	"--mtime=1970-01-01 00:00:00Z",
	"--numeric-owner",
	"--owner=0",
	"--group=0",
	"--mode=go+u,go-w",
}

// GzipDefaultArgs suppress the embedded name and timestamp.
var GzipDefaultArgs = []string{"--no-name", "--best"}

// TarOptions is the native form of a tar argument list.
type TarOptions struct {
	Format tar.Format
	// MTime pins every entry's modification time; nil keeps file times.
	MTime *time.Time
	// NumericOwner drops user and group names.
	NumericOwner bool
	// Owner and Group pin numeric ids (nil keeps the file's ids).
	Owner *int
	Group *int
	// OwnerName and GroupName are written unless NumericOwner is set.
	OwnerName string
	GroupName string
	// Mode rewrites permission bits of every entry.
	Mode []modeClause
	// PaxOptions is kept verbatim for reporting; extended headers never
	// carry atime or ctime.
	PaxOptions string
}

// GzipOptions is the native form of a gzip argument list.
type GzipOptions struct {
	Level int
	// KeepName stores the source file name and mtime in the header.
	KeepName bool
}

// MergedArgs holds a merged argument list and whether it differs from
// the defaults.
type MergedArgs struct {
	Args       []string
	Overridden bool
}

// MergeArgs applies extra over defaults with DedupArgs.
func MergeArgs(defaults, extra []string) MergedArgs {
	merged := runner.DedupArgs(defaults, extra)
	return MergedArgs{Args: merged, Overridden: !equalArgs(merged, defaults)}
}

func equalArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var mtimeLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseMTime(v string) (time.Time, error) {
	if epoch, ok := strings.CutPrefix(v, "@"); ok {
		secs, err := strconv.ParseInt(epoch, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	var lastErr error
	for _, layout := range mtimeLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseID accepts "N", "name" or "name:N".
func parseID(v string) (name string, id int, err error) {
	if n, convErr := strconv.Atoi(v); convErr == nil {
		return "", n, nil
	}
	if before, after, ok := strings.Cut(v, ":"); ok {
		n, convErr := strconv.Atoi(after)
		if convErr != nil {
			return "", 0, convErr
		}
		return before, n, nil
	}
	return v, 0, nil
}

// ParseTarArgs converts a merged tar argument list into TarOptions.
// Unrecognized arguments are a configuration error.
func ParseTarArgs(args []string) (TarOptions, error) {
	opts := TarOptions{Format: tar.FormatUnknown}
	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")
		switch key {
		case "--sort":
			if value != "name" && value != "none" {
				return opts, badArg("tar", arg)
			}
		case "--format":
			switch value {
			case "posix", "pax":
				opts.Format = tar.FormatPAX
			case "gnu", "oldgnu":
				opts.Format = tar.FormatGNU
			case "ustar", "v7":
				opts.Format = tar.FormatUSTAR
			default:
				return opts, badArg("tar", arg)
			}
		case "--pax-option":
			opts.PaxOptions = value
		case "--mtime":
			t, err := parseMTime(value)
			if err != nil {
				return opts, badArg("tar", arg)
			}
			opts.MTime = &t
		case "--numeric-owner":
			opts.NumericOwner = true
		case "--owner":
			name, id, err := parseID(value)
			if err != nil {
				return opts, badArg("tar", arg)
			}
			opts.OwnerName, opts.Owner = name, &id
		case "--group":
			name, id, err := parseID(value)
			if err != nil {
				return opts, badArg("tar", arg)
			}
			opts.GroupName, opts.Group = name, &id
		case "--mode":
			clauses, err := parseModeSpec(value)
			if err != nil {
				return opts, badArg("tar", arg)
			}
			opts.Mode = clauses
		default:
			return opts, badArg("tar", arg)
		}
	}
	return opts, nil
}

// ParseGzipArgs converts a merged gzip argument list into GzipOptions.
// Later arguments win, as they would on the gzip command line.
func ParseGzipArgs(args []string) (GzipOptions, error) {
	opts := GzipOptions{Level: gzip.DefaultCompression}
	for _, arg := range args {
		switch arg {
		case "--no-name", "-n":
			opts.KeepName = false
		case "--name", "-N":
			opts.KeepName = true
		case "--best":
			opts.Level = gzip.BestCompression
		case "--fast":
			opts.Level = gzip.BestSpeed
		default:
			if len(arg) == 2 && arg[0] == '-' && arg[1] >= '1' && arg[1] <= '9' {
				opts.Level = int(arg[1] - '0')
				continue
			}
			return opts, badArg("gzip", arg)
		}
	}
	return opts, nil
}

func badArg(tool, arg string) error {
	return types.Errorf(types.ErrConfiguration, "archive", "unsupported %s argument %q", tool, arg)
}

// modeClause is one comma-separated clause of a symbolic mode such as
// "go+u" or "a-w".
type modeClause struct {
	who   fs.FileMode
	op    byte
	perms string
}

func parseModeSpec(spec string) ([]modeClause, error) {
	var clauses []modeClause
	for _, part := range strings.Split(spec, ",") {
		i := 0
		var who fs.FileMode
	scan:
		for ; i < len(part); i++ {
			switch part[i] {
			case 'u':
				who |= 0o700
			case 'g':
				who |= 0o070
			case 'o':
				who |= 0o007
			case 'a':
				who |= 0o777
			default:
				break scan
			}
		}
		if i >= len(part) || !strings.ContainsRune("+-=", rune(part[i])) {
			return nil, errInvalidMode(spec)
		}
		if who == 0 {
			who = 0o777
		}
		perms := part[i+1:]
		if strings.Trim(perms, "rwxXugo") != "" {
			return nil, errInvalidMode(spec)
		}
		clauses = append(clauses, modeClause{who: who, op: part[i], perms: perms})
	}
	return clauses, nil
}

type invalidModeError string

func (e invalidModeError) Error() string { return "invalid mode " + string(e) }

func errInvalidMode(spec string) error { return invalidModeError(spec) }

// triplet expands rwx bits (0-7) into every class selected by who.
func triplet(bits, who fs.FileMode) fs.FileMode {
	return (bits<<6 | bits<<3 | bits) & who
}

// applyMode rewrites the permission bits of perm with the clauses.
func applyMode(perm fs.FileMode, isDir bool, clauses []modeClause) fs.FileMode {
	perm &= fs.ModePerm
	for _, c := range clauses {
		var bits fs.FileMode
		for _, p := range c.perms {
			switch p {
			case 'r':
				bits |= 4
			case 'w':
				bits |= 2
			case 'x':
				bits |= 1
			case 'X':
				if isDir || perm&0o111 != 0 {
					bits |= 1
				}
			case 'u':
				bits |= (perm >> 6) & 7
			case 'g':
				bits |= (perm >> 3) & 7
			case 'o':
				bits |= perm & 7
			}
		}
		mask := triplet(bits, c.who)
		switch c.op {
		case '+':
			perm |= mask
		case '-':
			perm &^= mask
		case '=':
			perm = perm&^c.who | mask
		}
	}
	return perm
}
