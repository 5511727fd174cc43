package task

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a dispatched task
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"

	// StatusUnknown is never persisted; it is the answer for ids the
	// store has no record of.
	StatusUnknown Status = "UNKNOWN"
)

// Record is the durable lifecycle record of a single unit of work.
// It is created PENDING at enqueue time and mutated in place by the
// lifecycle hooks; records are never deleted.
type Record struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     Status          `json:"status"`
	Queue      string          `json:"queue,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	DurationMS *int64          `json:"duration_ms,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Kwargs     json.RawMessage `json:"kwargs,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Clone returns a deep copy of the record. Stores hand clones to
// callers so concurrent mutations never alias shared slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	if r.DurationMS != nil {
		d := *r.DurationMS
		out.DurationMS = &d
	}
	out.Args = append(json.RawMessage(nil), r.Args...)
	out.Kwargs = append(json.RawMessage(nil), r.Kwargs...)
	out.Result = append(json.RawMessage(nil), r.Result...)
	return &out
}

// MarkFinished sets the terminal timestamp and, when the record has a
// start time, the duration in milliseconds.
func (r *Record) MarkFinished(now time.Time) {
	t := now
	r.FinishedAt = &t
	if r.StartedAt != nil {
		d := now.Sub(*r.StartedAt).Milliseconds()
		r.DurationMS = &d
	}
}
