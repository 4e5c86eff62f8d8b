// Package model defines the core data types shared by the page generation pipeline.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a research job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusPending indicates a job is queued and waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a worker is generating sections for the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates all sections were attempted and pages assembled.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a required section or the run itself failed.
	JobStatusFailed JobStatus = "failed"
)

const (
	// StepInitializing is the current step of a freshly created job.
	StepInitializing = "Initializing..."
	// StepComplete is the current step of a completed job.
	StepComplete = "Complete!"
	// MaxProgress is the progress of a completed job.
	MaxProgress = 100
)

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusProcessing || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether the status occupies the locality's single job slot.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can come from flags and query strings.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// Job is one end-to-end content generation run for a locality.
type Job struct {
	ID           string     `json:"id"                      db:"id"`
	LocalityID   string     `json:"locality_id"             db:"locality_id"`
	Status       JobStatus  `json:"status"                  db:"status"`
	Progress     int        `json:"progress"                db:"progress"`
	CurrentStep  string     `json:"current_step"            db:"current_step"`
	Results      Results    `json:"results"                 db:"results"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	Attempts     int        `json:"attempts"                db:"attempts"`
	MaxAttempts  int        `json:"max_attempts"            db:"max_attempts"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"    db:"started_at"`
	HeartbeatAt  *time.Time `json:"heartbeat_at,omitempty"  db:"heartbeat_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
}

// AttemptsLeft reports whether the job may be retried after the current attempt.
func (j *Job) AttemptsLeft() bool {
	return j.Attempts < j.MaxAttempts
}

// CreateJobRequest represents a request to create a new research job.
type CreateJobRequest struct {
	LocalityID  string `json:"locality_id"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.LocalityID) == "" {
		return errors.New("locality id is required")
	}
	if r.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	return nil
}

// JobStatusResponse is the polling view of a job.
type JobStatusResponse struct {
	ID           string     `json:"id"`
	LocalityID   string     `json:"locality_id"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStep  string     `json:"current_step"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// StatusView returns the polling view of the job.
func (j *Job) StatusView() JobStatusResponse {
	return JobStatusResponse{
		ID:           j.ID,
		LocalityID:   j.LocalityID,
		Status:       j.Status,
		Progress:     j.Progress,
		CurrentStep:  j.CurrentStep,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobListOptions filters job listings. Zero values mean "any".
type JobListOptions struct {
	LocalityID string
	Status     *JobStatus
	Limit      int
	Offset     int
}
