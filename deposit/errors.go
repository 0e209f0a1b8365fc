package deposit

import (
	"fmt"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// State is a step of the deposit state machine.
type State string

// States in transition order.
const (
	StateResolved        State = "resolved"
	StateDraftOpened     State = "draft_opened"
	StateFilesReconciled State = "files_reconciled"
	StateMetadataMerged  State = "metadata_merged"
	StatePublished       State = "published"
)

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Code   int
	Method string
	Path   string
	// Body is the (truncated) response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// StateError reports the state transition that failed and the draft left
// behind, if one was opened. Its kind is ErrRemote unless the cause
// carries its own classification.
type StateError struct {
	State   State
	DraftID string
	Err     error
}

func (e *StateError) Error() string {
	if e.DraftID != "" {
		return fmt.Sprintf("deposit %s (draft %s left in place): %v", e.State, e.DraftID, e.Err)
	}
	return fmt.Sprintf("deposit %s: %v", e.State, e.Err)
}

// Unwrap returns the cause.
func (e *StateError) Unwrap() error {
	return e.Err
}

// Is matches ErrRemote for unclassified causes.
func (e *StateError) Is(target error) bool {
	return target == types.ErrRemote && types.KindOf(e.Err) == nil
}
