package domain

import "time"

// JobStatus is the remote job lifecycle state reported by the status endpoint
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobHandle is returned by a successful submission. The orchestrator owns it
// for the lifetime of one poll cycle.
type JobHandle struct {
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
}

// JobSnapshot is the result of one status poll. Only the most recent snapshot
// per job is retained.
type JobSnapshot struct {
	JobID        string        `json:"job_id"`
	Status       JobStatus     `json:"status"`
	ResultRef    string        `json:"result_ref,omitempty"`
	ErrorPayload *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the error detail embedded in a failed snapshot or
// an error response from the remote API.
type ErrorPayload struct {
	DomainCode string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}
