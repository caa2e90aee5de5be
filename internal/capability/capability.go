// Package capability wraps the remote generation vendors behind one
// submit-then-poll contract.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Handle is the opaque vendor reference of an in-flight operation
type Handle string

// String returns the handle as a string
func (h Handle) String() string {
	return string(h)
}

// PollState tags a PollResult
type PollState string

// Poll states
const (
	StatePending PollState = "pending"
	StateDone    PollState = "done"
	StateFailed  PollState = "failed"
)

// PollResult is the outcome of one status query
type PollResult[T any] struct {
	State  PollState
	Value  T
	Reason string
}

// Pending returns a result that is not ready yet
func Pending[T any]() PollResult[T] {
	return PollResult[T]{State: StatePending}
}

// Done returns a successful result
func Done[T any](v T) PollResult[T] {
	return PollResult[T]{State: StateDone, Value: v}
}

// Failed returns a failed result with a human readable reason
func Failed[T any](reason string) PollResult[T] {
	return PollResult[T]{State: StateFailed, Reason: reason}
}

// IsDone reports whether the operation succeeded
func (r PollResult[T]) IsDone() bool { return r.State == StateDone }

// IsFailed reports whether the operation failed
func (r PollResult[T]) IsFailed() bool { return r.State == StateFailed }

// IsPending reports whether the operation is still running
func (r PollResult[T]) IsPending() bool { return r.State == StatePending }

// RawResult is the vendor status document, returned by status queries and
// delivered by webhooks
type RawResult struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Poller queries an operation and decodes vendor status documents
type Poller[Out any] interface {
	Poll(ctx context.Context, h Handle) PollResult[Out]
	Decode(raw RawResult) PollResult[Out]
}

// Capability is one remote vendor operation
type Capability[In, Out any] interface {
	Poller[Out]
	Invoke(ctx context.Context, in In) (Handle, error)
}

// RemoteSubmissionError is returned when the vendor rejects a submission outright
type RemoteSubmissionError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteSubmissionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s submission rejected (%d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s submission failed: %s", e.Operation, e.Message)
}

// DecodeRaw maps a vendor status document to a PollResult
func DecodeRaw[Out any](operation string, raw RawResult) PollResult[Out] {
	switch strings.ToLower(raw.Status) {
	case "", "pending", "queued", "processing", "running", "in_progress":
		return Pending[Out]()
	case "done", "succeeded", "success", "completed", "complete":
		var out Out
		if len(raw.Output) == 0 {
			return Failed[Out](fmt.Sprintf("%s finished without output", operation))
		}
		if err := json.Unmarshal(raw.Output, &out); err != nil {
			return Failed[Out](fmt.Sprintf("%s returned an unreadable result", operation))
		}
		return Done(out)
	case "failed", "error", "canceled", "cancelled":
		reason := raw.Error
		if reason == "" {
			reason = "unknown error"
		}
		return Failed[Out](fmt.Sprintf("%s failed: %s", operation, reason))
	default:
		return Failed[Out](fmt.Sprintf("%s reported unknown status %q", operation, raw.Status))
	}
}
