// Package sign produces detached GPG signatures for release artifacts.
package sign

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

const step = "sign"

// DefaultArgs produce ASCII-armored signatures.
var DefaultArgs = []string{"--armor"}

// Key describes the secret key used for signing.
type Key struct {
	KeyID       string
	Fingerprint string
	UIDs        []string
}

// Signer wraps the gpg CLI.
type Signer struct {
	runner  runner.Runner
	logger  *log.Logger
	metrics *metrics.Collector

	uid       string
	args      []string
	overwrite bool
}

// Options configures a Signer.
type Options struct {
	// UID selects the key; empty uses gpg's default key.
	UID string
	// ExtraArgs are merged over DefaultArgs.
	ExtraArgs []string
	// Overwrite replaces existing signature files.
	Overwrite bool
}

// New creates a Signer.
func New(r runner.Runner, opts Options, logger *log.Logger, m *metrics.Collector) *Signer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Signer{
		runner:    r,
		logger:    logger,
		metrics:   m,
		uid:       opts.UID,
		args:      runner.DedupArgs(DefaultArgs, opts.ExtraArgs),
		overwrite: opts.Overwrite,
	}
}

// Armored reports whether signatures are ASCII-armored.
func (s *Signer) Armored() bool {
	return slices.Contains(s.args, "--armor") || slices.Contains(s.args, "-a")
}

// Extension returns the signature suffix including the dot.
func (s *Signer) Extension() string {
	if s.Armored() {
		return ".asc"
	}
	return ".sig"
}

// SignaturePath returns where the signature of path is written.
func (s *Signer) SignaturePath(path string) string {
	return path + s.Extension()
}

// Key resolves the signing key from the secret keyring.
func (s *Signer) Key(ctx context.Context) (Key, error) {
	args := []string{"--batch", "--with-colons", "--list-secret-keys"}
	if s.uid != "" {
		args = append(args, s.uid)
	}
	out, err := runner.Output(ctx, s.runner, runner.Cmd{Name: "gpg", Args: args})
	if err != nil {
		return Key{}, types.Errorf(types.ErrConfiguration, step, "no secret key for %q: %v", s.uid, err)
	}
	key, ok := parseColons(out)
	if !ok {
		return Key{}, types.Errorf(types.ErrConfiguration, step, "no secret GPG key found")
	}
	return key, nil
}

// parseColons reads the first secret key from --with-colons output.
func parseColons(out string) (Key, bool) {
	var key Key
	found := false
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		f := strings.Split(sc.Text(), ":")
		if len(f) < 10 {
			continue
		}
		switch f[0] {
		case "sec":
			if found {
				return key, true
			}
			found = true
			key.KeyID = f[4]
		case "fpr":
			if found && key.Fingerprint == "" {
				key.Fingerprint = f[9]
			}
		case "uid":
			if found {
				key.UIDs = append(key.UIDs, f[9])
			}
		}
	}
	return key, found
}

// Sign writes a detached signature next to path, verifies it, and returns
// the signature path.
func (s *Signer) Sign(ctx context.Context, path string) (string, error) {
	sig := s.SignaturePath(path)
	if _, err := os.Stat(sig); err == nil {
		if !s.overwrite {
			return "", types.Errorf(types.ErrConfiguration, step,
				"signature file already exists: %s (set GPG_OVERWRITE=true to replace it)", sig)
		}
		if err := os.Remove(sig); err != nil {
			return "", types.NewError(types.ErrIO, step, err)
		}
	}

	args := []string{"--batch", "--yes", "--detach-sign", "--output", sig}
	if s.uid != "" {
		args = append(args, "--local-user", s.uid)
	}
	args = append(args, s.args...)
	args = append(args, path)

	if _, err := runner.Output(ctx, s.runner, runner.Cmd{Name: "gpg", Args: args}); err != nil {
		s.discard(sig)
		return "", types.NewError(types.ErrIO, step, err)
	}
	fpr, err := s.verify(ctx, sig, path)
	if err != nil {
		s.discard(sig)
		return "", err
	}

	s.metrics.IncSignaturesCreated()
	s.logger.Info("signature created", map[string]any{"file": path, "signature": sig, "fingerprint": fpr})
	return sig, nil
}

// discard removes a signature that must not be kept.
func (s *Signer) discard(sig string) {
	if err := os.Remove(sig); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove unverified signature", map[string]any{"signature": sig, "error": err.Error()})
	}
}

func (s *Signer) verify(ctx context.Context, sig, path string) (string, error) {
	out, err := runner.Output(ctx, s.runner, runner.Cmd{
		Name: "gpg",
		Args: []string{"--batch", "--status-fd", "1", "--verify", sig, path},
	})
	if err != nil {
		return "", types.NewError(types.ErrIO, step, err)
	}
	fpr := validSig(out)
	if fpr == "" {
		return "", types.NewError(types.ErrIO, step, errors.New("signature did not verify: "+sig))
	}
	if s.uid != "" && isKeyID(s.uid) && !strings.Contains(strings.ToLower(fpr), strings.ToLower(strings.TrimPrefix(s.uid, "0x"))) {
		return "", types.Errorf(types.ErrIO, step,
			"signature key mismatch for %s: expected %q, got fingerprint %s", path, s.uid, fpr)
	}
	return fpr, nil
}

// validSig returns the fingerprint of a "[GNUPG:] VALIDSIG" status line.
func validSig(status string) string {
	for line := range strings.Lines(status) {
		f := strings.Fields(line)
		if len(f) >= 3 && f[0] == "[GNUPG:]" && f[1] == "VALIDSIG" {
			return f[2]
		}
	}
	return ""
}

// isKeyID reports whether uid looks like a hex key id or fingerprint
// rather than a name or email.
func isKeyID(uid string) bool {
	uid = strings.TrimPrefix(uid, "0x")
	if len(uid) < 8 {
		return false
	}
	for _, r := range uid {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
