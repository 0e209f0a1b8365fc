// Package pipeline sequences the release and archive commands: source
// checks, build, assembly, reconciliation against the deposit, publication
// and the ledger/notification tail.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/zenodo-publisher/archive"
	"github.com/pithecene-io/zenodo-publisher/assemble"
	"github.com/pithecene-io/zenodo-publisher/build"
	"github.com/pithecene-io/zenodo-publisher/deposit"
	"github.com/pithecene-io/zenodo-publisher/gitx"
	"github.com/pithecene-io/zenodo-publisher/hasher"
	"github.com/pithecene-io/zenodo-publisher/iox"
	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/notify"
	"github.com/pithecene-io/zenodo-publisher/reconcile"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// Prompter asks the operator to confirm a step.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// DepositOptions configures the deposit stage. A nil *DepositOptions
// means no publisher is configured.
type DepositOptions struct {
	ConceptID string
	Force     bool
	// PublicationDate defaults to today (UTC).
	PublicationDate string
	Override        *deposit.Override
	// InfoToRelease uploads the publication info file to the release.
	InfoToRelease bool
}

// ReleaseOptions configures one release run.
type ReleaseOptions struct {
	MainBranch string
	// Tag names the release to create when HEAD is not released yet.
	Tag   string
	Title string
	Notes string

	Compile    bool
	CompileDir string
	MakeArgs   []string

	// Assemble holds the artifact selection. Tag and Compile are filled
	// in by the pipeline.
	Assemble assemble.Options
	Deposit  *DepositOptions
}

// Release runs the release pipeline.
type Release struct {
	Repo     *gitx.Repository
	Compiler *build.Compiler
	Archiver *archive.Builder
	// Signer is nil when signing is disabled.
	Signer assemble.Signer
	// Deposits is nil when no publisher is configured.
	Deposits *deposit.Manager
	Ledger   *ledger.Ledger
	Notifier notify.Notifier
	Prompter Prompter
	Logger   *log.Logger
	Metrics  *metrics.Collector
	// Now defaults to time.Now.
	Now func() time.Time
}

func (p *Release) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Release) confirm(message string) error {
	if p.Prompter == nil {
		return nil
	}
	ok, err := p.Prompter.Confirm(message)
	if err != nil {
		return types.NewError(types.ErrAborted, "prompt", err)
	}
	if !ok {
		return types.Errorf(types.ErrAborted, "prompt", "declined: %s", message)
	}
	return nil
}

// Run executes the pipeline. Every failure halts the run with a
// classified error; nothing after the failing step runs.
func (p *Release) Run(ctx context.Context, opts ReleaseOptions) (*Report, error) {
	start := p.now()
	p.Metrics.IncRunStarted()
	report, err := p.run(ctx, opts)
	if err != nil {
		p.Metrics.IncRunFailed()
		return report, err
	}
	report.Duration = p.now().Sub(start)
	p.Metrics.IncRunCompleted()
	p.finish(ctx, "release", report)
	return report, nil
}

func (p *Release) run(ctx context.Context, opts ReleaseOptions) (*Report, error) {
	report := &Report{Project: opts.Assemble.ProjectName}
	if opts.Deposit != nil {
		report.ConceptID = opts.Deposit.ConceptID
	}
	if opts.Deposit != nil && p.Deposits == nil {
		return report, types.Errorf(types.ErrConfiguration, "release", "deposit configured without a deposit client")
	}
	if err := opts.Assemble.Validate(); err != nil {
		return report, err
	}

	if err := p.Repo.CheckSynced(ctx, opts.MainBranch); err != nil {
		return report, err
	}

	tag, created, err := p.release(ctx, opts)
	if err != nil {
		return report, err
	}
	report.Tag, report.ReleaseCreated = tag, created

	commit, err := p.Repo.Commit(ctx, "HEAD")
	if err != nil {
		return report, err
	}
	p.Logger.Info("release commit", map[string]any{
		"sha":     commit.SHA,
		"epoch":   commit.DateEpoch,
		"subject": commit.Subject,
		"author":  commit.AuthorName + " <" + commit.AuthorEmail + ">",
	})

	if opts.Compile {
		if err := p.confirm("Start building project?"); err != nil {
			return report, err
		}
		dir := cmp.Or(opts.CompileDir, opts.Assemble.ProjectRoot)
		if err := p.Compiler.Compile(ctx, dir, opts.MakeArgs, commit.Env(opts.MainBranch, tag)); err != nil {
			return report, err
		}
	} else {
		p.Logger.Warn("skipping project compilation", nil)
	}

	// The build may have touched tracked files or moved HEAD.
	if err := p.Repo.CheckSynced(ctx, opts.MainBranch); err != nil {
		return report, err
	}
	if err := p.Repo.VerifyReleaseOnHead(ctx, tag); err != nil {
		return report, err
	}

	asmOpts := opts.Assemble
	asmOpts.Tag = tag
	asmOpts.Compile = opts.Compile
	set, err := assemble.New(p.Archiver, nil, p.Signer, p.Logger, p.Metrics).Assemble(ctx, asmOpts)
	if err != nil {
		return report, err
	}
	defer set.Close()

	report.Artifacts = set.Artifacts
	report.Identifiers = set.Identifiers
	for _, w := range set.Warnings {
		p.Logger.Warn(w, map[string]any{"step": "archive"})
		report.warn(w)
	}

	if opts.Deposit == nil {
		p.Logger.Warn("no publisher set", nil)
		report.Outcome = OutcomeNoPublisher
		return report, nil
	}
	if err := p.deposit(ctx, opts.Deposit, set, report); err != nil {
		return report, err
	}
	if opts.Deposit.InfoToRelease {
		if err := p.publishInfo(ctx, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// release reuses the latest release when it points at HEAD, otherwise
// validates opts.Tag and creates the release.
func (p *Release) release(ctx context.Context, opts ReleaseOptions) (string, bool, error) {
	onHead, latest, err := p.Repo.HeadReleased(ctx)
	if err != nil {
		return "", false, err
	}
	if onHead {
		if opts.Tag != "" && opts.Tag != latest.TagName {
			p.Logger.Warn("HEAD is already released; ignoring requested tag", map[string]any{
				"released": latest.TagName, "requested": opts.Tag,
			})
		}
		p.Logger.Info("latest commit already has a release", map[string]any{"tag": latest.TagName})
		return latest.TagName, false, nil
	}

	if latest != nil {
		p.Logger.Info("current release", map[string]any{"tag": latest.TagName, "title": latest.Name})
	} else {
		p.Logger.Info("no releases found; this will be the first release", nil)
	}
	if opts.Tag == "" {
		return "", false, types.Errorf(types.ErrConfiguration, "release",
			"HEAD has no release; pass --tag to create one")
	}
	if err := p.Repo.CheckTagValidity(ctx, opts.Tag, opts.MainBranch); err != nil {
		return "", false, err
	}
	if err := p.Repo.CreateRelease(ctx, opts.Tag, cmp.Or(opts.Title, opts.Tag), opts.Notes); err != nil {
		return "", false, err
	}
	return opts.Tag, true, nil
}

// deposit resolves the baseline, decides and publishes when required.
func (p *Release) deposit(ctx context.Context, opts *DepositOptions, set *assemble.Set, report *Report) error {
	if err := deposit.CheckOverride(opts.Override, set.Identifiers); err != nil {
		return err
	}

	baseline, err := p.Deposits.Resolve(ctx, opts.ConceptID)
	if err != nil {
		return err
	}
	files := types.UploadSet(set.Artifacts)

	decision, comparison := reconcile.Evaluate(report.Tag, files, baseline, opts.Force)
	report.Comparison = &comparison
	report.Forced = decision.Forced
	p.Metrics.SetDecision(string(decision.Outcome))
	p.Logger.Info("reconciliation", map[string]any{
		"baseline": baseline.Label,
		"files":    comparison.String(),
		"outcome":  string(decision.Outcome),
		"forced":   decision.Forced,
	})
	if decision.Warning != "" {
		p.Logger.Warn(decision.Warning, map[string]any{"tag": report.Tag, "published": baseline.Label})
		report.warn(decision.Warning)
	}

	if !decision.Publishes() {
		report.Outcome = string(decision.Outcome)
		report.Record = &types.PublishedRecord{
			VersionID: baseline.VersionID,
			DOI:       baseline.DOI,
			RecordURL: baseline.RecordURL,
			Files:     baseline.Files,
		}
		p.Logger.Info("no publication made", map[string]any{"doi": baseline.DOI})
		return nil
	}
	if decision.Forced {
		p.Logger.Warn("forcing deposit update", map[string]any{"tag": report.Tag})
		report.warn("publication forced despite unchanged files")
	}

	if err := p.confirm(fmt.Sprintf("Publish version %s?", report.Tag)); err != nil {
		return err
	}

	res, err := p.Deposits.Publish(ctx, deposit.PublishRequest{
		Baseline:        baseline,
		Tag:             report.Tag,
		PublicationDate: opts.PublicationDate,
		Files:           files,
		Preview:         previewName(set.Artifacts),
		Override:        opts.Override,
		Identifiers:     set.Identifiers,
	})
	if err != nil {
		return err
	}
	report.Outcome = string(reconcile.Publish)
	report.Record = res.Record
	for _, w := range res.Warnings {
		report.warn(w)
	}
	return nil
}

func previewName(artifacts []types.Artifact) string {
	for _, a := range artifacts {
		if a.Preview {
			return a.Name()
		}
	}
	return ""
}

// publishInfo uploads the publication info file unless the release
// already carries an identical copy.
func (p *Release) publishInfo(ctx context.Context, report *Report) error {
	rec := report.Record
	if rec == nil || rec.DOI == "" || rec.RecordURL == "" {
		p.Logger.Warn("no DOI or record URL available, skipping publication info file", nil)
		return nil
	}

	dir, cleanup, err := iox.ScratchDir("", "zp-info-*")
	if err != nil {
		return types.NewError(types.ErrIO, "publication-info", err)
	}
	defer cleanup()

	path, err := WritePublicationInfo(dir, BuildPublicationInfo(rec, report.Artifacts, report.Identifiers))
	if err != nil {
		return err
	}
	hashes, err := hasher.HashFile(path, []string{types.AlgoSHA256})
	if err != nil {
		return err
	}
	local := types.AlgoSHA256 + ":" + hashes[types.AlgoSHA256]
	remote := p.Repo.AssetDigest(ctx, report.Tag, InfoFileName)

	if remote == local {
		p.Logger.Info("publication info already up to date on release", map[string]any{"digest": local})
		return nil
	}
	if remote != "" {
		p.Logger.Warn("publication info differs from release asset", map[string]any{"remote": remote, "local": local})
		if err := p.confirm("Overwrite publication info on release?"); err != nil {
			if errors.Is(err, types.ErrAborted) {
				report.warn("publication info not updated on release")
				return nil
			}
			return err
		}
	}
	if err := p.Repo.UploadAsset(ctx, report.Tag, path, remote != ""); err != nil {
		return err
	}
	report.InfoUploaded = true
	return nil
}

// finish records the run in the ledger and notifies. Neither failure
// fails the run.
func (p *Release) finish(ctx context.Context, command string, report *Report) {
	finish(ctx, p.Ledger, p.Notifier, p.Logger, p.Metrics, command, report, p.now())
}

func finish(ctx context.Context, l *ledger.Ledger, n notify.Notifier, logger *log.Logger, m *metrics.Collector, command string, report *Report, at time.Time) {
	if err := l.Append(ctx, report.ledgerEntry(command, ledger.MetricsFrom(m.Snapshot()), at)); err != nil {
		logger.Warn("ledger write failed", map[string]any{"error": err.Error()})
	}
	_ = notify.Dispatch(ctx, n, report.event(at), logger, m)
}
