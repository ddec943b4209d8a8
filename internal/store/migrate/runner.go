package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes migrations with transaction support
type Runner struct {
	db      *sql.DB
	tracker *Tracker
	logger  *zap.Logger
}

// Status describes applied and pending migrations
type Status struct {
	Total       int
	Applied     []*Migration
	Pending     []*Migration
	LastApplied *Migration
}

// NewRunner creates a new migration runner
func NewRunner(db *sql.DB, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		db:      db,
		tracker: NewTracker(db),
		logger:  logger,
	}
}

// Initialize sets up the migration tracking table
func (r *Runner) Initialize(ctx context.Context) error {
	return r.tracker.Initialize(ctx)
}

// Up applies all pending migrations in version order and returns how many ran
func (r *Runner) Up(ctx context.Context, migrations []*Migration) (int, error) {
	if err := r.Initialize(ctx); err != nil {
		return 0, err
	}

	pending, err := r.tracker.GetPending(ctx, migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return 0, nil
	}

	for i, migration := range pending {
		if err := r.apply(ctx, migration); err != nil {
			return i, fmt.Errorf("migration %d_%s failed: %w", migration.Version, migration.Name, err)
		}
	}

	r.logger.Info("migrations applied", zap.Int("count", len(pending)))
	return len(pending), nil
}

// Down rolls back the last applied migration
func (r *Runner) Down(ctx context.Context) (*Migration, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}

	last, err := r.tracker.GetLast(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last migration: %w", err)
	}
	if last == nil {
		return nil, fmt.Errorf("no migrations to rollback")
	}
	if last.Down == "" {
		return nil, fmt.Errorf("migration %d_%s has no down migration", last.Version, last.Name)
	}

	if err := r.rollback(ctx, last); err != nil {
		return nil, fmt.Errorf("rollback failed: %w", err)
	}
	return last, nil
}

// Status returns the current migration status
func (r *Runner) Status(ctx context.Context, all []*Migration) (*Status, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}

	applied, err := r.tracker.GetApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := r.tracker.GetPending(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	status := &Status{Total: len(all), Applied: applied, Pending: pending}
	if len(applied) > 0 {
		status.LastApplied = applied[len(applied)-1]
	}
	return status, nil
}

// apply runs a single migration in a transaction
func (r *Runner) apply(ctx context.Context, migration *Migration) error {
	start := time.Now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		return r.tracker.Record(ctx, tx, migration)
	})
	if err != nil {
		return err
	}

	r.logger.Info("applied migration",
		zap.Int64("version", migration.Version),
		zap.String("name", migration.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// rollback reverts a single migration in a transaction
func (r *Runner) rollback(ctx context.Context, migration *Migration) error {
	start := time.Now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
			return fmt.Errorf("failed to execute rollback SQL: %w", err)
		}
		return r.tracker.Remove(ctx, tx, migration.Version)
	})
	if err != nil {
		return err
	}

	r.logger.Info("rolled back migration",
		zap.Int64("version", migration.Version),
		zap.String("name", migration.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (r *Runner) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
