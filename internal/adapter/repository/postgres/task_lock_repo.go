package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// taskLockRepository implements domain.TaskLockRepository as a lease table.
// A lease is live while locked_until is in the future; a crashed holder's
// lease simply times out.
type taskLockRepository struct {
	db *DB
}

// NewTaskLockRepository creates a new task lock repository
func NewTaskLockRepository(db *DB) domain.TaskLockRepository {
	return &taskLockRepository{db: db}
}

// Acquire takes the named lease if it is free or expired. Returns false
// without error when another holder owns a live lease.
func (r *taskLockRepository) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO task_locks (name, locked_until)
		VALUES ($1, NOW() + $2::interval)
		ON CONFLICT (name) DO UPDATE
		SET locked_until = NOW() + $2::interval
		WHERE task_locks.locked_until < NOW()
	`

	result, err := r.db.ExecContext(ctx, query, name, ttl.String())
	if err != nil {
		return false, fmt.Errorf("failed to acquire task lock %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// Release expires the named lease immediately
func (r *taskLockRepository) Release(ctx context.Context, name string) error {
	query := `UPDATE task_locks SET locked_until = NOW() WHERE name = $1`

	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("failed to release task lock %s: %w", name, err)
	}
	return nil
}
