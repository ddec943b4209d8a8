package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/web/jobs"
)

// Recurring job types
const (
	JobCloseExpiredRFPs = "rfps.close_expired"
	JobFundingReminders = "funding.deadline_reminders"
)

// DefaultReminderDays is the reminder window when none is configured
const DefaultReminderDays = 7

// JobSchedules are the recurring jobs the scheduler enqueues
func JobSchedules() []jobs.Schedule {
	return []jobs.Schedule{
		{Type: JobCloseExpiredRFPs, Interval: 15 * time.Minute, Immediate: true},
		{Type: JobFundingReminders, Interval: time.Hour, Immediate: true},
	}
}

// RegisterJobs binds the recurring job types to their handlers
func RegisterJobs(pool *jobs.WorkerPool, svcs *Services, reminderDays int) {
	if reminderDays <= 0 {
		reminderDays = DefaultReminderDays
	}
	logger := svcs.RFPs.logger

	pool.RegisterHandler(JobCloseExpiredRFPs, func(ctx context.Context, _ json.RawMessage) error {
		n, err := svcs.RFPs.CloseExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("closed expired rfps", zap.Int("count", n))
		}
		return nil
	})
	pool.RegisterHandler(JobFundingReminders, func(ctx context.Context, _ json.RawMessage) error {
		_, err := svcs.Funding.SendDeadlineReminders(ctx, reminderDays)
		return err
	})
}
