package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every halt of the release or archive pipeline
// carries exactly one of them; use errors.Is(err, ErrXxx) to classify.
var (
	// ErrConfiguration indicates bad or missing settings, a forbidden
	// metadata override, or an identifier collision.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceState indicates an unsynced branch, local modifications,
	// or a tag conflict.
	ErrSourceState = errors.New("source state error")

	// ErrBuild indicates the compile step failed.
	ErrBuild = errors.New("build error")

	// ErrIO indicates a hashing, archiving or filesystem failure.
	ErrIO = errors.New("io error")

	// ErrRemote indicates a deposit API or release host failure.
	ErrRemote = errors.New("remote error")

	// ErrAborted indicates the operator declined a confirmation prompt.
	ErrAborted = errors.New("aborted by operator")
)

// Error wraps an underlying error with its kind and the step that halted.
// The original error stays in the chain for errors.As inspection.
type Error struct {
	// Kind is the sentinel classification (e.g. ErrConfiguration).
	Kind error
	// Step names the pipeline step or operation that failed.
	Step string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error's kind matches target.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewError creates a classified error. Returns nil if err is nil.
func NewError(kind error, step string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Step: step, Err: err}
}

// Errorf creates a classified error from a format string.
func Errorf(kind error, step, format string, args ...any) error {
	return &Error{Kind: kind, Step: step, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the sentinel kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, kind := range []error{ErrConfiguration, ErrSourceState, ErrBuild, ErrIO, ErrRemote, ErrAborted} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
