// Package jobs runs background work from a Postgres-backed queue.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// DefaultQueue is the queue every platform job runs on
const DefaultQueue = "default"

// DefaultMaxAttempts bounds how often a failing job is retried
const DefaultMaxAttempts = 3

// Job is one row of the jobs table
type Job struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Queue       string          `db:"queue" json:"queue"`
	Type        string          `db:"type" json:"type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      JobStatus       `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	MaxAttempts int             `db:"max_attempts" json:"max_attempts"`
	Error       *string         `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	RunAt       time.Time       `db:"run_at" json:"run_at"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	LockedBy    *string         `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt    *time.Time      `db:"locked_at" json:"locked_at,omitempty"`
}

// NewJob builds a pending job; payload is JSON encoded, nil becomes {}
func NewJob(queue, jobType string, payload interface{}) (*Job, error) {
	raw := json.RawMessage(`{}`)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", jobType, err)
		}
		raw = data
	}

	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		Queue:       queue,
		Type:        jobType,
		Payload:     raw,
		Status:      JobStatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
		RunAt:       now,
	}, nil
}

// IsRetryable returns true if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Attempts < j.MaxAttempts
}

// Backoff returns the delay before retrying after the given attempt:
// one minute doubled per prior attempt, capped at one hour
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 7 {
		return time.Hour
	}
	d := time.Minute << (attempts - 1)
	if d > time.Hour {
		return time.Hour
	}
	return d
}
