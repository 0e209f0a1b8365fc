// Package notify defines the release-completed notification boundary.
//
// Notifiers publish one event per release run to a downstream system.
// Delivery failures are reported to the caller but never fail a release.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// EventTypeReleaseCompleted is the event_type of every event.
const EventTypeReleaseCompleted = "release_completed"

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultBackoff is the delay before the first retry; it doubles after.
const DefaultBackoff = 500 * time.Millisecond

// ReleaseCompletedEvent is the payload published when a release run ends.
type ReleaseCompletedEvent struct {
	EventType string `json:"event_type"`
	Project   string `json:"project"`
	Tag       string `json:"tag"`
	ConceptID string `json:"concept_id,omitempty"`
	// Outcome is skip, skip_warn, publish, or archived.
	Outcome     string             `json:"outcome"`
	Forced      bool               `json:"forced,omitempty"`
	DOI         string             `json:"doi,omitempty"`
	RecordURL   string             `json:"record_url,omitempty"`
	Files       []string           `json:"files"`
	Identifiers []types.Identifier `json:"identifiers,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
	Timestamp   string             `json:"timestamp"` // RFC 3339
	DurationMs  int64              `json:"duration_ms"`
}

// Notifier publishes release events to a downstream system.
type Notifier interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *ReleaseCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}

// Dispatch publishes event on n, logging and counting the result. A nil
// notifier does nothing. The returned error is informational.
func Dispatch(ctx context.Context, n Notifier, event *ReleaseCompletedEvent, logger *log.Logger, m *metrics.Collector) error {
	if n == nil {
		return nil
	}
	if event.EventType == "" {
		event.EventType = EventTypeReleaseCompleted
	}
	if err := n.Publish(ctx, event); err != nil {
		m.IncNotifyFailure()
		logger.Warn("release notification failed", map[string]any{"error": err.Error()})
		return err
	}
	m.IncNotifySuccess()
	logger.Debug("release notification sent", map[string]any{"outcome": event.Outcome})
	return nil
}

// Retry calls fn up to 1+retries times with exponential backoff starting
// at base. It stops early when retriable reports false for an error.
func Retry(ctx context.Context, retries int, base time.Duration, fn func(context.Context) error, retriable func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retriable != nil && !retriable(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
