package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Enqueuer is the part of Queue the scheduler needs
type Enqueuer interface {
	EnqueueUnique(ctx context.Context, job *Job) (bool, error)
}

// Schedule defines a recurring job
type Schedule struct {
	Type     string
	Queue    string
	Interval time.Duration
	// Immediate enqueues once at start instead of waiting a full interval
	Immediate bool
}

// Scheduler enqueues recurring jobs on fixed intervals. A type is skipped
// while an earlier run of it is still pending or running.
type Scheduler struct {
	queue     Enqueuer
	logger    *zap.Logger
	schedules []Schedule

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler over queue
func NewScheduler(queue Enqueuer, logger *zap.Logger) *Scheduler {
	return &Scheduler{queue: queue, logger: logger.Named("scheduler")}
}

// Add registers a schedule; it must be called before Start
func (s *Scheduler) Add(schedule Schedule) error {
	if schedule.Interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", schedule.Type)
	}
	if schedule.Type == "" {
		return fmt.Errorf("schedule: job type is required")
	}
	if schedule.Queue == "" {
		schedule.Queue = DefaultQueue
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, schedule)
	return nil
}

// Schedules returns the registered schedules
func (s *Scheduler) Schedules() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Schedule(nil), s.schedules...)
}

// Start runs one ticker goroutine per schedule
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, schedule := range s.schedules {
		s.wg.Add(1)
		go s.run(ctx, schedule)
	}
}

// Stop halts the tickers and waits for them to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, schedule Schedule) {
	defer s.wg.Done()

	if schedule.Immediate {
		s.enqueue(ctx, schedule)
	}

	ticker := time.NewTicker(schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx, schedule)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, schedule Schedule) {
	job, err := NewJob(schedule.Queue, schedule.Type, nil)
	if err != nil {
		s.logger.Error("build scheduled job", zap.String("type", schedule.Type), zap.Error(err))
		return
	}
	inserted, err := s.queue.EnqueueUnique(ctx, job)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("enqueue scheduled job", zap.String("type", schedule.Type), zap.Error(err))
		}
		return
	}
	if inserted {
		s.logger.Debug("enqueued scheduled job", zap.String("type", schedule.Type), zap.String("job_id", job.ID.String()))
	}
}
