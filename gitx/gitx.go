// Package gitx provides typed access to the git and gh CLIs for the
// release pipeline. All commands run in the repository directory.
package gitx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/runner"
	"github.com/pithecene-io/zenodo-publisher/types"
)

const step = "git"

// Repository is a working tree with a GitHub remote.
type Repository struct {
	dir    string
	runner runner.Runner
	logger *log.Logger
}

// NewRepository returns a Repository rooted at dir.
func NewRepository(dir string, r runner.Runner, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.Nop()
	}
	return &Repository{dir: dir, runner: r, logger: logger}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// FindRoot walks up from start to the first directory containing .git.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", types.Errorf(types.ErrConfiguration, step, "not inside a git repository: %s", start)
		}
		dir = parent
	}
}

func (r *Repository) git(ctx context.Context, args ...string) (string, error) {
	return runner.Output(ctx, r.runner, runner.Cmd{Name: "git", Args: args, Dir: r.dir})
}

func (r *Repository) gh(ctx context.Context, args ...string) (string, error) {
	return runner.Output(ctx, r.runner, runner.Cmd{Name: "gh", Args: args, Dir: r.dir})
}

// CurrentBranch returns the checked-out branch name.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	return r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// RevParse resolves ref to a commit id.
func (r *Repository) RevParse(ctx context.Context, ref string) (string, error) {
	return r.git(ctx, "rev-parse", ref)
}

// CommitOfTag returns the commit a tag points to.
func (r *Repository) CommitOfTag(ctx context.Context, tag string) (string, error) {
	return r.git(ctx, "rev-list", "-n", "1", tag)
}

// RemoteURL returns the URL of origin.
func (r *Repository) RemoteURL(ctx context.Context) (string, error) {
	url, err := r.git(ctx, "remote", "get-url", "origin")
	if err != nil {
		return "", types.NewError(types.ErrSourceState, step, err)
	}
	return url, nil
}

// CheckSynced verifies that branch is checked out, matches origin after a
// fetch, and has no local modifications.
func (r *Repository) CheckSynced(ctx context.Context, branch string) error {
	current, err := r.CurrentBranch(ctx)
	if err != nil {
		return types.NewError(types.ErrSourceState, step, err)
	}
	if current != branch {
		return types.Errorf(types.ErrSourceState, step,
			"not on %s branch (currently on %s); checkout %s first", branch, current, branch)
	}

	r.logger.Info("fetching from remote", nil)
	if _, err := r.git(ctx, "fetch"); err != nil {
		return types.NewError(types.ErrRemote, step, err)
	}

	local, err := r.RevParse(ctx, branch)
	if err != nil {
		return types.NewError(types.ErrSourceState, step, err)
	}
	remote, err := r.RevParse(ctx, "origin/"+branch)
	if err != nil {
		return types.NewError(types.ErrSourceState, step, err)
	}
	if local != remote {
		return types.Errorf(types.ErrSourceState, step,
			"local branch is not up to date with origin/%s; pull or push the latest changes first", branch)
	}

	status, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return types.NewError(types.ErrSourceState, step, err)
	}
	if status != "" {
		return types.Errorf(types.ErrSourceState, step,
			"working tree has local modifications; commit or stash them first")
	}

	r.logger.Info("repository is up to date", map[string]any{"branch": branch})
	return nil
}

// TagExists reports whether tag exists locally or on origin.
func (r *Repository) TagExists(ctx context.Context, tag string) bool {
	if _, err := r.RevParse(ctx, tag); err == nil {
		return true
	}
	out, err := r.git(ctx, "ls-remote", "--tags", "origin", "refs/tags/"+tag)
	return err == nil && out != ""
}

// CheckTagValidity accepts a tag that does not exist yet, or one that
// already points at origin/<branch>.
func (r *Repository) CheckTagValidity(ctx context.Context, tag, branch string) error {
	if !r.TagExists(ctx, tag) {
		r.logger.Info("tag does not exist yet", map[string]any{"tag": tag})
		return nil
	}

	tagCommit, err := r.CommitOfTag(ctx, tag)
	if err != nil {
		return types.NewError(types.ErrSourceState, step, err)
	}
	remote, err := r.RevParse(ctx, "origin/"+branch)
	if err != nil {
		return types.NewError(types.ErrSourceState, step, err)
	}
	if tagCommit != remote {
		return types.Errorf(types.ErrSourceState, step,
			"tag %q already exists but points to %s, not origin/%s (%s); use a different tag or delete it",
			tag, tagCommit, branch, remote)
	}
	r.logger.Warn("tag already exists and points to the latest commit", map[string]any{"tag": tag})
	return nil
}

// Release is a GitHub release.
type Release struct {
	TagName string `json:"tagName"`
	Name    string `json:"name"`
	Body    string `json:"body"`
}

// LatestRelease returns the most recent GitHub release, or nil if there
// is none.
func (r *Repository) LatestRelease(ctx context.Context) (*Release, error) {
	out, err := r.gh(ctx, "release", "list", "--limit", "1", "--json", "tagName,name")
	if err != nil {
		return nil, types.NewError(types.ErrRemote, step, err)
	}
	if out == "" {
		return nil, nil
	}
	var list []Release
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil, types.NewError(types.ErrRemote, step, fmt.Errorf("decode release list: %w", err))
	}
	if len(list) == 0 {
		return nil, nil
	}

	details, err := r.gh(ctx, "release", "view", list[0].TagName, "--json", "tagName,name,body")
	if err != nil {
		return nil, types.NewError(types.ErrRemote, step, err)
	}
	var rel Release
	if err := json.Unmarshal([]byte(details), &rel); err != nil {
		return nil, types.NewError(types.ErrRemote, step, fmt.Errorf("decode release: %w", err))
	}
	return &rel, nil
}

// HeadReleased reports whether the latest release's tag points at HEAD.
// The latest release is returned either way.
func (r *Repository) HeadReleased(ctx context.Context) (bool, *Release, error) {
	rel, err := r.LatestRelease(ctx)
	if err != nil || rel == nil {
		return false, nil, err
	}
	tagCommit, err := r.CommitOfTag(ctx, rel.TagName)
	if err != nil {
		return false, rel, types.NewError(types.ErrSourceState, step, err)
	}
	head, err := r.RevParse(ctx, "HEAD")
	if err != nil {
		return false, rel, types.NewError(types.ErrSourceState, step, err)
	}
	return tagCommit == head, rel, nil
}

// CreateRelease creates and publishes a GitHub release, tagging HEAD if
// the tag does not exist.
func (r *Repository) CreateRelease(ctx context.Context, tag, title, notes string) error {
	r.logger.Info("creating release", map[string]any{"tag": tag})
	if _, err := r.gh(ctx, "release", "create", tag, "--title", title, "--notes", notes); err != nil {
		return types.NewError(types.ErrRemote, step, err)
	}
	return nil
}

// VerifyReleaseOnHead checks that the latest release is tag and points at
// HEAD.
func (r *Repository) VerifyReleaseOnHead(ctx context.Context, tag string) error {
	onHead, rel, err := r.HeadReleased(ctx)
	if err != nil {
		return err
	}
	if rel == nil {
		return types.Errorf(types.ErrSourceState, step, "no releases found")
	}
	if rel.TagName != tag {
		return types.Errorf(types.ErrSourceState, step,
			"latest release tag %q doesn't match expected %q", rel.TagName, tag)
	}
	if !onHead {
		return types.Errorf(types.ErrSourceState, step, "release %q does not point to the latest commit", tag)
	}
	return nil
}

// CommitInfo describes a commit for the build environment.
type CommitInfo struct {
	SHA            string
	DateEpoch      string
	CommitterName  string
	CommitterEmail string
	AuthorName     string
	AuthorEmail    string
	Subject        string
}

// Commit reads commit metadata for ref.
func (r *Repository) Commit(ctx context.Context, ref string) (CommitInfo, error) {
	out, err := r.git(ctx, "log", "-1", "--format=%H%n%ct%n%cn%n%ce%n%an%n%ae%n%s", ref)
	if err != nil {
		return CommitInfo{}, types.NewError(types.ErrSourceState, step, err)
	}
	f := strings.SplitN(out, "\n", 7)
	if len(f) < 7 {
		return CommitInfo{}, types.NewError(types.ErrSourceState, step,
			errors.New("unexpected git log output"))
	}
	return CommitInfo{
		SHA:            f[0],
		DateEpoch:      f[1],
		CommitterName:  f[2],
		CommitterEmail: f[3],
		AuthorName:     f[4],
		AuthorEmail:    f[5],
		Subject:        f[6],
	}, nil
}

// Env returns the ZP_* variables exported to the build.
func (c CommitInfo) Env(branch, tag string) map[string]string {
	return map[string]string{
		"ZP_BRANCH":                 branch,
		"ZP_COMMIT_TAG":             tag,
		"ZP_COMMIT_SHA":             c.SHA,
		"ZP_COMMIT_DATE_EPOCH":      c.DateEpoch,
		"ZP_COMMIT_SUBJECT":         c.Subject,
		"ZP_COMMIT_COMMITTER_NAME":  c.CommitterName,
		"ZP_COMMIT_COMMITTER_EMAIL": c.CommitterEmail,
		"ZP_COMMIT_AUTHOR_NAME":     c.AuthorName,
		"ZP_COMMIT_AUTHOR_EMAIL":    c.AuthorEmail,
	}
}

// AssetDigest returns the digest ("sha256:<hex>") of a release asset, or
// "" if the release has no such asset.
func (r *Repository) AssetDigest(ctx context.Context, tag, asset string) string {
	out, err := r.gh(ctx, "api", "repos/{owner}/{repo}/releases/tags/"+tag,
		"--jq", fmt.Sprintf(`.assets[] | select(.name == %q) | .digest`, asset))
	if err != nil {
		return ""
	}
	return out
}

// UploadAsset attaches a file to a release, replacing an existing asset
// of the same name when clobber is set.
func (r *Repository) UploadAsset(ctx context.Context, tag, path string, clobber bool) error {
	args := []string{"release", "upload", tag, path}
	if clobber {
		args = append(args, "--clobber")
	}
	if _, err := r.gh(ctx, args...); err != nil {
		return types.NewError(types.ErrRemote, step, err)
	}
	return nil
}
