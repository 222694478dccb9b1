package types

import (
	"fmt"
	"time"
)

// JobKind identifies which of the two long-running workflows a job belongs to.
type JobKind string

// Job kind constants
const (
	// JobKindTraining is a model training run
	JobKindTraining JobKind = "training"
	// JobKindInference is a batch or custom-upload inference run
	JobKindInference JobKind = "inference"
)

// String returns the string representation of the job kind
func (k JobKind) String() string {
	return string(k)
}

// ParseJobKind converts a string to a JobKind
func ParseJobKind(str string) (JobKind, error) {
	switch str {
	case string(JobKindTraining):
		return JobKindTraining, nil
	case string(JobKindInference):
		return JobKindInference, nil
	default:
		return "", fmt.Errorf("invalid job kind: %s", str)
	}
}

// JobStatus represents the current state of a job
type JobStatus string

// Job status constants
const (
	// JobStatusIdle indicates no job is being tracked
	JobStatusIdle JobStatus = "idle"
	// JobStatusQueued indicates the job was accepted and is waiting to be processed
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates the job is currently being processed
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled by the user
	JobStatusCancelled JobStatus = "cancelled"
)

// String returns the string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// ParseJobStatus converts a string to a JobStatus
func ParseJobStatus(str string) (JobStatus, error) {
	switch str {
	case string(JobStatusIdle):
		return JobStatusIdle, nil
	case string(JobStatusQueued):
		return JobStatusQueued, nil
	case string(JobStatusRunning):
		return JobStatusRunning, nil
	case string(JobStatusCompleted):
		return JobStatusCompleted, nil
	case string(JobStatusFailed):
		return JobStatusFailed, nil
	case string(JobStatusCancelled):
		return JobStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid job status: %s", str)
	}
}

// Terminal reports whether the status is final. A terminal job never makes
// further automatic progress; only retry or delete apply.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Cancellable reports whether a cancel request is valid for this status.
func (s JobStatus) Cancellable() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// CanTransition reports whether the lifecycle permits moving from s to next.
// Terminal states have no outgoing transitions; retry and delete allocate a
// new job or destroy the record and are handled outside this check.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case JobStatusIdle:
		return next == JobStatusQueued
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusCompleted ||
			next == JobStatusFailed || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed ||
			next == JobStatusCancelled
	default:
		return false
	}
}

// Progress is the canonical progress shape. The status endpoint reports
// progress either nested under a "progress" object or as flat fields; the
// normalization in StatusResponse guarantees the rest of the code only ever
// sees this struct.
type Progress struct {
	Processed int `json:"processed"` // items processed so far
	Total     int `json:"total"`     // total items in the job
	Percent   int `json:"percent"`   // 0..100
}

// Job represents a server-tracked unit of long-running work. The server is
// authoritative for everything here; the client only mirrors what status
// polls report.
type Job struct {
	ID          string         `json:"id"`     // opaque id assigned by the server on submission
	Kind        JobKind        `json:"kind"`   // training or inference
	Status      JobStatus      `json:"status"` // current lifecycle state
	Progress    Progress       `json:"progress"`
	Metrics     map[string]any `json:"metrics,omitempty"` // populated only once completed
	Error       string         `json:"error,omitempty"`   // server-reported failure reason
	CreatedAt   time.Time      `json:"created_at"`        // local submission time
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ApplyStatus merges a server-reported status into the job. Progress is kept
// monotonically non-decreasing while running, so a reordered or stale report
// can never walk the progress bar backwards. Returns true when anything
// changed.
func (j *Job) ApplyStatus(r StatusResponse) bool {
	changed := false

	if r.Status != "" && r.Status != j.Status && j.Status.CanTransition(r.Status) {
		j.Status = r.Status
		changed = true
		if r.Status.Terminal() && j.CompletedAt == nil {
			now := time.Now().UTC()
			j.CompletedAt = &now
		}
	}

	if r.Progress.Percent > j.Progress.Percent || r.Progress.Processed > j.Progress.Processed {
		j.Progress = r.Progress
		changed = true
	}

	if len(r.Metrics) > 0 && j.Status == JobStatusCompleted {
		j.Metrics = r.Metrics
		changed = true
	}

	if r.Error != "" && r.Error != j.Error {
		j.Error = r.Error
		changed = true
	}

	return changed
}
