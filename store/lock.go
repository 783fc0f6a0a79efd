package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/padraicbc/raceflow/models"
)

// ErrLockHeld is returned by CreateLock when the singleton row already exists.
var ErrLockHeld = errors.New("store: scheduler lock already held")

// CreateLock attempts to insert the singleton lock row. The fixed primary key
// makes the insert atomic across competing processes: exactly one wins, the
// rest get ErrLockHeld.
func (s *Store) CreateLock(ctx context.Context, lock *models.SchedulerLock) error {
	lock.ID = models.SchedulerLockID
	if _, err := s.db.NewInsert().Model(lock).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return ErrLockHeld
		}
		return fmt.Errorf("create scheduler lock: %w", err)
	}
	return nil
}

// GetLock reads the current lock row, or nil when none exists.
func (s *Store) GetLock(ctx context.Context) (*models.SchedulerLock, error) {
	lock := &models.SchedulerLock{}
	err := s.db.NewSelect().Model(lock).
		Where("id = ?", models.SchedulerLockID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduler lock: %w", err)
	}
	return lock, nil
}

// DeleteStaleLock removes the lock row only if its heartbeat predates cutoff.
// Returns true when a row was deleted, i.e. the caller reclaimed the slot.
func (s *Store) DeleteStaleLock(ctx context.Context, cutoff time.Time) (bool, error) {
	res, err := s.db.NewDelete().Model((*models.SchedulerLock)(nil)).
		Where("id = ?", models.SchedulerLockID).
		Where("heartbeat_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete stale scheduler lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete stale lock rows affected: %w", err)
	}
	return n > 0, nil
}

// TouchLock updates heartbeat and progress for the given execution. The
// execution id guard means a superseding lock is never touched by the loser.
func (s *Store) TouchLock(ctx context.Context, executionID string, at time.Time, progress json.RawMessage) error {
	_, err := s.db.NewUpdate().Model((*models.SchedulerLock)(nil)).
		Set("heartbeat_at = ?", at).
		Set("progress = ?", progress).
		Where("id = ?", models.SchedulerLockID).
		Where("execution_id = ?", executionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch scheduler lock: %w", err)
	}
	return nil
}

// ReleaseLock deletes the lock row owned by the given execution.
func (s *Store) ReleaseLock(ctx context.Context, executionID string) error {
	_, err := s.db.NewDelete().Model((*models.SchedulerLock)(nil)).
		Where("id = ?", models.SchedulerLockID).
		Where("execution_id = ?", executionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release scheduler lock: %w", err)
	}
	return nil
}
