// Package metrics provides per-run counters for a zp invocation.
//
// The Collector accumulates counters during a single command. It is a leaf
// package with no internal dependencies. Counters are surfaced in the final
// summary and in the ledger record; there is no exporter.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64

	// Artifact assembly
	ArchivesBuilt     int64
	FilesHashed       int64
	SignaturesCreated int64

	// Deposit API (per HTTP call)
	APIRequests int64
	APIFailures int64

	// Deposit effects
	FilesUploaded     int64
	FilesDeleted      int64
	DraftsDiscarded   int64
	VersionsPublished int64

	// Ledger / storage (per write call)
	LedgerWriteSuccess int64
	LedgerWriteFailure int64

	// Notification fan-out (per sink)
	NotifySuccess int64
	NotifyFailure int64

	// Outcome of the reconciliation decision, empty until decided.
	Decision string

	// Dimensions (informational, set at construction)
	Command        string
	Publisher      string
	StorageBackend string
	Project        string
	Tag            string
}

// Collector accumulates counters during a single invocation.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64

	archivesBuilt     int64
	filesHashed       int64
	signaturesCreated int64

	apiRequests int64
	apiFailures int64

	filesUploaded     int64
	filesDeleted      int64
	draftsDiscarded   int64
	versionsPublished int64

	ledgerWriteSuccess int64
	ledgerWriteFailure int64

	notifySuccess int64
	notifyFailure int64

	decision string

	command        string
	publisher      string
	storageBackend string
	project        string
	tag            string
}

// NewCollector creates a Collector with dimension labels.
// publisher and storageBackend may be empty when not configured.
func NewCollector(command, publisher, storageBackend, project, tag string) *Collector {
	return &Collector{
		command:        command,
		publisher:      publisher,
		storageBackend: storageBackend,
		project:        project,
		tag:            tag,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a command start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.add(&c.runsStarted, 1)
}

// IncRunCompleted records a successful completion, including skips.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.add(&c.runsCompleted, 1)
}

// IncRunFailed records a failed command.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.add(&c.runsFailed, 1)
}

// --- Artifact assembly ---

// IncArchivesBuilt records one archive written.
func (c *Collector) IncArchivesBuilt() {
	if c == nil {
		return
	}
	c.add(&c.archivesBuilt, 1)
}

// AddFilesHashed records n files or trees digested.
func (c *Collector) AddFilesHashed(n int) {
	if c == nil {
		return
	}
	c.add(&c.filesHashed, int64(n))
}

// IncSignaturesCreated records one detached signature.
func (c *Collector) IncSignaturesCreated() {
	if c == nil {
		return
	}
	c.add(&c.signaturesCreated, 1)
}

// --- Deposit API ---

// IncAPIRequest records an HTTP call to the deposit API.
func (c *Collector) IncAPIRequest() {
	if c == nil {
		return
	}
	c.add(&c.apiRequests, 1)
}

// IncAPIFailure records an HTTP call that failed or returned an error status.
func (c *Collector) IncAPIFailure() {
	if c == nil {
		return
	}
	c.add(&c.apiFailures, 1)
}

// IncFilesUploaded records a committed file upload.
func (c *Collector) IncFilesUploaded() {
	if c == nil {
		return
	}
	c.add(&c.filesUploaded, 1)
}

// IncFilesDeleted records a file removed from a draft.
func (c *Collector) IncFilesDeleted() {
	if c == nil {
		return
	}
	c.add(&c.filesDeleted, 1)
}

// IncDraftsDiscarded records a stale draft discarded before versioning.
func (c *Collector) IncDraftsDiscarded() {
	if c == nil {
		return
	}
	c.add(&c.draftsDiscarded, 1)
}

// IncVersionsPublished records a published version.
func (c *Collector) IncVersionsPublished() {
	if c == nil {
		return
	}
	c.add(&c.versionsPublished, 1)
}

// SetDecision records the reconciliation outcome.
func (c *Collector) SetDecision(decision string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decision = decision
	c.mu.Unlock()
}

// --- Ledger / Storage ---
// Ledger counters are per write call, not per record.

// IncLedgerWriteSuccess records a successful ledger write.
func (c *Collector) IncLedgerWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.ledgerWriteSuccess, 1)
}

// IncLedgerWriteFailure records a failed ledger write.
func (c *Collector) IncLedgerWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.ledgerWriteFailure, 1)
}

// --- Notifications ---

// IncNotifySuccess records a sink that accepted an event.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.add(&c.notifySuccess, 1)
}

// IncNotifyFailure records a sink that rejected an event.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.add(&c.notifyFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsFailed:    c.runsFailed,

		ArchivesBuilt:     c.archivesBuilt,
		FilesHashed:       c.filesHashed,
		SignaturesCreated: c.signaturesCreated,

		APIRequests: c.apiRequests,
		APIFailures: c.apiFailures,

		FilesUploaded:     c.filesUploaded,
		FilesDeleted:      c.filesDeleted,
		DraftsDiscarded:   c.draftsDiscarded,
		VersionsPublished: c.versionsPublished,

		LedgerWriteSuccess: c.ledgerWriteSuccess,
		LedgerWriteFailure: c.ledgerWriteFailure,

		NotifySuccess: c.notifySuccess,
		NotifyFailure: c.notifyFailure,

		Decision: c.decision,

		Command:        c.command,
		Publisher:      c.publisher,
		StorageBackend: c.storageBackend,
		Project:        c.project,
		Tag:            c.tag,
	}
}
