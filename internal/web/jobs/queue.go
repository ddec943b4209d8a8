package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoJobs is returned by Dequeue when nothing is runnable
var ErrNoJobs = errors.New("no jobs available")

// ErrJobNotFound is returned when a job id matches no row
var ErrJobNotFound = errors.New("job not found")

const jobColumns = `id, queue, type, payload, status, attempts, max_attempts,
	error, created_at, run_at, started_at, completed_at, locked_by, locked_at`

// Queue provides PostgreSQL-backed job queue operations
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// NewQueue creates a new job queue with PostgreSQL backing
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, queue, type, payload, status, attempts, max_attempts, created_at, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Queue, job.Type, string(job.Payload), job.Status,
		job.Attempts, job.MaxAttempts, job.CreatedAt, job.RunAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Type, err)
	}
	return nil
}

// EnqueueUnique adds job unless a pending or running job of the same type
// already exists on its queue. It reports whether a row was inserted.
func (q *Queue) EnqueueUnique(ctx context.Context, job *Job) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, queue, type, payload, status, attempts, max_attempts, created_at, run_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE NOT EXISTS (
			SELECT 1 FROM jobs WHERE queue = $2 AND type = $3 AND status IN ('pending', 'running')
		)`,
		job.ID, job.Queue, job.Type, string(job.Payload), job.Status,
		job.Attempts, job.MaxAttempts, job.CreatedAt, job.RunAt,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", job.Type, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Dequeue locks the oldest runnable job on queueName for workerID
func (q *Queue) Dequeue(ctx context.Context, workerID, queueName string) (*Job, error) {
	now := q.now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = 'running', locked_by = $1, locked_at = $2, started_at = $2, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND queue = $3 AND run_at <= $2
			ORDER BY run_at, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns,
		workerID, now, queueName,
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return job, nil
}

// Complete marks a job as successfully completed
func (q *Queue) Complete(ctx context.Context, jobID uuid.UUID) error {
	return q.finish(ctx, jobID, JobStatusCompleted, nil)
}

// Fail marks a job as permanently failed
func (q *Queue) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	return q.finish(ctx, jobID, JobStatusFailed, &errMsg)
}

func (q *Queue) finish(ctx context.Context, jobID uuid.UUID, status JobStatus, errMsg *string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, error = $2, completed_at = $3, locked_by = NULL, locked_at = NULL
		WHERE id = $4`,
		status, errMsg, q.now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", jobID, status, err)
	}
	return expectRow(res)
}

// Retry puts a failed job back to pending after delay, keeping the error
func (q *Queue) Retry(ctx context.Context, jobID uuid.UUID, errMsg string, delay time.Duration) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', error = $1, run_at = $2, locked_by = NULL, locked_at = NULL
		WHERE id = $3 AND attempts < max_attempts`,
		errMsg, q.now().Add(delay), jobID,
	)
	if err != nil {
		return fmt.Errorf("retry job %s: %w", jobID, err)
	}
	return expectRow(res)
}

// RequeueStale releases running jobs whose lock is older than timeout,
// which happens when a worker dies mid-job
func (q *Queue) RequeueStale(ctx context.Context, timeout time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', locked_by = NULL, locked_at = NULL
		WHERE status = 'running' AND locked_at < $1`,
		q.now().Add(-timeout),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// PurgeCompleted removes completed jobs older than the given age
func (q *Queue) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status = 'completed' AND completed_at < $1`,
		q.now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

// QueueStats holds statistics for a job queue
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// Stats counts jobs on a queue by status
func (q *Queue) Stats(ctx context.Context, queueName string) (*QueueStats, error) {
	stats := QueueStats{Queue: queueName}
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM jobs WHERE queue = $1`, queueName,
	).Scan(&stats.Pending, &stats.Running, &stats.Completed, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &stats, nil
}

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var job Job
	var payload []byte
	err := row.Scan(
		&job.ID, &job.Queue, &job.Type, &payload, &job.Status, &job.Attempts, &job.MaxAttempts,
		&job.Error, &job.CreatedAt, &job.RunAt, &job.StartedAt, &job.CompletedAt, &job.LockedBy, &job.LockedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Payload = append(job.Payload[:0], payload...)
	return &job, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
