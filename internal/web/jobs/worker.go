package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler processes one job's payload
type Handler func(ctx context.Context, payload json.RawMessage) error

// Source is the part of Queue the worker pool consumes
type Source interface {
	Dequeue(ctx context.Context, workerID, queueName string) (*Job, error)
	Complete(ctx context.Context, jobID uuid.UUID) error
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error
	Retry(ctx context.Context, jobID uuid.UUID, errMsg string, delay time.Duration) error
}

// PoolConfig sizes a worker pool
type PoolConfig struct {
	Queue        string
	Workers      int
	PollInterval time.Duration
}

// WorkerPool runs Workers goroutines that poll the queue until stopped
type WorkerPool struct {
	source   Source
	config   PoolConfig
	logger   *zap.Logger
	metrics  *Metrics
	handlers *HandlerRegistry
	backoff  func(attempts int) time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(source Source, config PoolConfig, logger *zap.Logger, metrics *Metrics) *WorkerPool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &WorkerPool{
		source:   source,
		config:   config,
		logger:   logger.Named("jobs"),
		metrics:  metrics,
		handlers: NewHandlerRegistry(),
		backoff:  Backoff,
	}
}

// RegisterHandler registers a job handler for a specific job type
func (p *WorkerPool) RegisterHandler(jobType string, handler Handler) {
	p.handlers.Register(jobType, handler)
}

// Start launches the workers. They run until Stop is called or ctx ends.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.logger.Info("starting worker pool",
		zap.String("queue", p.config.Queue),
		zap.Int("workers", p.config.Workers),
		zap.Strings("types", p.handlers.ListTypes()))

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, fmt.Sprintf("worker-%s-%d", p.config.Queue, i))
	}
}

// Stop cancels the workers and waits for in-flight jobs to return
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped", zap.String("queue", p.config.Queue))
}

func (p *WorkerPool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Drain the queue before sleeping again
		for ctx.Err() == nil {
			job, err := p.source.Dequeue(ctx, workerID, p.config.Queue)
			if err != nil {
				if !errors.Is(err, ErrNoJobs) && ctx.Err() == nil {
					p.logger.Warn("dequeue failed", zap.String("worker", workerID), zap.Error(err))
				}
				break
			}
			p.process(ctx, workerID, job)
		}
		timer.Reset(p.config.PollInterval)
	}
}

// process runs one job and records its outcome. Outcome writes use a
// context detached from shutdown so a stopping pool still settles the row.
func (p *WorkerPool) process(ctx context.Context, workerID string, job *Job) {
	log := p.logger.With(
		zap.String("worker", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempts),
	)
	settle, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	start := time.Now()
	handler, err := p.handlers.Get(job.Type)
	if err != nil {
		log.Error("no handler for job type")
		if ferr := p.source.Fail(settle, job.ID, err.Error()); ferr != nil {
			log.Error("mark job failed", zap.Error(ferr))
		}
		p.metrics.observe(job.Type, "failed", time.Since(start).Seconds())
		return
	}

	err = safeRun(ctx, handler, job.Payload)
	elapsed := time.Since(start)

	if err == nil {
		if cerr := p.source.Complete(settle, job.ID); cerr != nil {
			log.Error("mark job complete", zap.Error(cerr))
		}
		log.Debug("job completed", zap.Duration("duration", elapsed))
		p.metrics.observe(job.Type, "completed", elapsed.Seconds())
		return
	}

	if job.IsRetryable() {
		delay := p.backoff(job.Attempts)
		if rerr := p.source.Retry(settle, job.ID, err.Error(), delay); rerr == nil {
			log.Warn("job failed, retrying", zap.Error(err), zap.Duration("retry_in", delay))
			p.metrics.retried.WithLabelValues(job.Type).Inc()
			p.metrics.observe(job.Type, "retried", elapsed.Seconds())
			return
		}
	}

	log.Error("job failed permanently", zap.Error(err))
	if ferr := p.source.Fail(settle, job.ID, err.Error()); ferr != nil {
		log.Error("mark job failed", zap.Error(ferr))
	}
	p.metrics.observe(job.Type, "failed", elapsed.Seconds())
}

func safeRun(ctx context.Context, h Handler, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}

// HandlerRegistry manages job type handlers
type HandlerRegistry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a job type
func (r *HandlerRegistry) Register(jobType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Get retrieves a handler for a job type
func (r *HandlerRegistry) Get(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type: %s", jobType)
	}
	return handler, nil
}

// ListTypes returns all registered job types
func (r *HandlerRegistry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
