package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newMockQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q := NewQueue(db)
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return fixed }
	return q, mock
}

func TestNewJob(t *testing.T) {
	job, err := NewJob(DefaultQueue, "rfps.close_expired", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(job.Payload))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)

	job, err = NewJob(DefaultQueue, "x", map[string]int{"days": 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":7}`, string(job.Payload))

	_, err = NewJob(DefaultQueue, "x", func() {})
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{7, time.Hour},
		{30, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestQueue_Enqueue(t *testing.T) {
	q, mock := newMockQueue(t)
	job, err := NewJob(DefaultQueue, "funding.deadline_reminders", nil)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(job.ID.String(), DefaultQueue, "funding.deadline_reminders", "{}", "pending", 0, 3, job.CreatedAt, job.RunAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Enqueue(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_EnqueueUnique(t *testing.T) {
	q, mock := newMockQueue(t)
	job, err := NewJob(DefaultQueue, "rfps.close_expired", nil)
	require.NoError(t, err)

	mock.ExpectExec("WHERE NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := q.EnqueueUnique(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Dequeue(t *testing.T) {
	q, mock := newMockQueue(t)
	ctx := context.Background()

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("w1", q.now(), DefaultQueue).
		WillReturnError(sql.ErrNoRows)

	_, err := q.Dequeue(ctx, "w1", DefaultQueue)
	assert.ErrorIs(t, err, ErrNoJobs)

	id := uuid.New()
	now := q.now()
	cols := []string{"id", "queue", "type", "payload", "status", "attempts", "max_attempts",
		"error", "created_at", "run_at", "started_at", "completed_at", "locked_by", "locked_at"}
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			id.String(), DefaultQueue, "rfps.close_expired", []byte(`{"a":1}`), "running", 1, 3,
			nil, now, now, now, nil, "w1", now,
		))

	job, err := q.Dequeue(ctx, "w1", DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.JSONEq(t, `{"a":1}`, string(job.Payload))
	require.NotNil(t, job.LockedBy)
	assert.Equal(t, "w1", *job.LockedBy)
	assert.Nil(t, job.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_RetryAndComplete(t *testing.T) {
	q, mock := newMockQueue(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec("UPDATE jobs SET status = 'pending'").
		WithArgs("boom", q.now().Add(2*time.Minute), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, q.Retry(ctx, id, "boom", 2*time.Minute), ErrJobNotFound)

	mock.ExpectExec("UPDATE jobs SET status = \\$1").
		WithArgs("completed", nil, q.now(), id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, q.Complete(ctx, id))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Stats(t *testing.T) {
	q, mock := newMockQueue(t)
	mock.ExpectQuery("COUNT").WithArgs(DefaultQueue).
		WillReturnRows(sqlmock.NewRows([]string{"p", "r", "c", "f"}).AddRow(2, 1, 10, 3))

	stats, err := q.Stats(context.Background(), DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, &QueueStats{Queue: DefaultQueue, Pending: 2, Running: 1, Completed: 10, Failed: 3}, stats)
}

// memorySource is an in-process Source used to drive the worker pool
type memorySource struct {
	mu        sync.Mutex
	pending   []*Job
	completed []uuid.UUID
	failed    map[uuid.UUID]string
	retried   map[uuid.UUID]time.Duration
	done      chan struct{}
	expect    int
}

func newMemorySource(expect int, jobs ...*Job) *memorySource {
	return &memorySource{
		pending: jobs,
		failed:  map[uuid.UUID]string{},
		retried: map[uuid.UUID]time.Duration{},
		done:    make(chan struct{}),
		expect:  expect,
	}
}

func (s *memorySource) Dequeue(_ context.Context, _, _ string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, ErrNoJobs
	}
	job := s.pending[0]
	s.pending = s.pending[1:]
	job.Attempts++
	return job, nil
}

func (s *memorySource) settle() {
	if len(s.completed)+len(s.failed)+len(s.retried) == s.expect {
		close(s.done)
	}
}

func (s *memorySource) Complete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	s.settle()
	return nil
}

func (s *memorySource) Fail(_ context.Context, id uuid.UUID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = msg
	s.settle()
	return nil
}

func (s *memorySource) Retry(_ context.Context, id uuid.UUID, _ string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried[id] = delay
	s.settle()
	return nil
}

func mustJob(t *testing.T, jobType string, attempts int) *Job {
	job, err := NewJob(DefaultQueue, jobType, nil)
	require.NoError(t, err)
	job.Attempts = attempts
	return job
}

func TestWorkerPool_ProcessesOutcomes(t *testing.T) {
	ok := mustJob(t, "ok", 0)
	flaky := mustJob(t, "flaky", 0)
	exhausted := mustJob(t, "flaky", 2)
	unknown := mustJob(t, "unknown", 0)
	panics := mustJob(t, "panics", 2)

	source := newMemorySource(5, ok, flaky, exhausted, unknown, panics)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	pool := NewWorkerPool(source, PoolConfig{Workers: 2, PollInterval: 10 * time.Millisecond}, zap.NewNop(), metrics)

	pool.RegisterHandler("ok", func(context.Context, json.RawMessage) error { return nil })
	pool.RegisterHandler("flaky", func(context.Context, json.RawMessage) error { return errors.New("upstream down") })
	pool.RegisterHandler("panics", func(context.Context, json.RawMessage) error { panic("bad input") })

	pool.Start(context.Background())
	select {
	case <-source.done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs were not processed")
	}
	pool.Stop()
	pool.Stop()

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, []uuid.UUID{ok.ID}, source.completed)
	assert.Equal(t, time.Minute, source.retried[flaky.ID])
	assert.Equal(t, "upstream down", source.failed[exhausted.ID])
	assert.Contains(t, source.failed[unknown.ID], "no handler registered")
	assert.Contains(t, source.failed[panics.ID], "job panicked: bad input")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "citymind_jobs_processed_total")
	assert.Contains(t, names, "citymind_jobs_retried_total")
}

func TestWorkerPool_StopsWithContext(t *testing.T) {
	source := newMemorySource(-1)
	pool := NewWorkerPool(source, PoolConfig{Workers: 3, PollInterval: time.Millisecond}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()
	pool.Stop()
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	types []string
	calls chan struct{}
}

func (r *recordingEnqueuer) EnqueueUnique(_ context.Context, job *Job) (bool, error) {
	r.mu.Lock()
	r.types = append(r.types, job.Type)
	r.mu.Unlock()
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return true, nil
}

func TestScheduler(t *testing.T) {
	enq := &recordingEnqueuer{calls: make(chan struct{}, 10)}
	s := NewScheduler(enq, zap.NewNop())

	require.Error(t, s.Add(Schedule{Type: "x"}))
	require.Error(t, s.Add(Schedule{Interval: time.Second}))
	require.NoError(t, s.Add(Schedule{Type: "rfps.close_expired", Interval: time.Hour, Immediate: true}))
	require.NoError(t, s.Add(Schedule{Type: "funding.deadline_reminders", Interval: 5 * time.Millisecond}))
	assert.Len(t, s.Schedules(), 2)
	assert.Equal(t, DefaultQueue, s.Schedules()[0].Queue)

	s.Start(context.Background())
	for i := 0; i < 3; i++ {
		select {
		case <-enq.calls:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not enqueue")
		}
	}
	s.Stop()

	enq.mu.Lock()
	defer enq.mu.Unlock()
	assert.Contains(t, enq.types, "rfps.close_expired")
	assert.Contains(t, enq.types, "funding.deadline_reminders")
}
