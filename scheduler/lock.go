package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/store"
)

// ErrAlreadyRunning signals a normal lock collision: another live execution
// holds the singleton lock and this process must exit without doing any work.
var ErrAlreadyRunning = errors.New("scheduler: another execution holds the lock")

// Execution identifies one holder of the scheduler lock.
type Execution struct {
	ID        string
	StartedAt time.Time
}

// LockStore is the slice of the persistence gateway that holds the singleton
// lock row.
type LockStore interface {
	CreateLock(ctx context.Context, lock *models.SchedulerLock) error
	GetLock(ctx context.Context) (*models.SchedulerLock, error)
	DeleteStaleLock(ctx context.Context, cutoff time.Time) (bool, error)
	TouchLock(ctx context.Context, executionID string, at time.Time, progress json.RawMessage) error
	ReleaseLock(ctx context.Context, executionID string) error
}

// Locker manages the persisted execution-singleton record. Mutual exclusion
// comes from the durable row, not in-process synchronization, because
// redundant scheduler instances may run on separate hosts.
type Locker struct {
	store      LockStore
	staleAfter time.Duration
	log        *zap.Logger
}

// NewLocker creates a Locker with the given staleness threshold.
func NewLocker(st LockStore, staleAfter time.Duration, log *zap.Logger) *Locker {
	return &Locker{store: st, staleAfter: staleAfter, log: log.Named("lock")}
}

// Acquire attempts to create the singleton lock row. On collision it reads
// the existing row; a stale one (heartbeat older than the threshold) is
// deleted and acquisition retried exactly once, otherwise ErrAlreadyRunning
// is returned and the caller terminates immediately.
func (l *Locker) Acquire(ctx context.Context) (*Execution, error) {
	exec := &Execution{ID: uuid.NewString(), StartedAt: time.Now()}

	err := l.create(ctx, exec)
	if err == nil {
		l.log.Info("lock acquired", zap.String("execution_id", exec.ID))
		return exec, nil
	}
	if !errors.Is(err, store.ErrLockHeld) {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	existing, gerr := l.store.GetLock(ctx)
	if gerr != nil {
		return nil, fmt.Errorf("read existing lock: %w", gerr)
	}
	now := time.Now()
	if existing != nil && !existing.Stale(now, l.staleAfter) {
		return nil, ErrAlreadyRunning
	}

	// The holder stopped heartbeating (or vanished between our two reads);
	// reclaim the slot and retry exactly once.
	if existing != nil {
		reclaimed, derr := l.store.DeleteStaleLock(ctx, now.Add(-l.staleAfter))
		if derr != nil {
			return nil, fmt.Errorf("reclaim stale lock: %w", derr)
		}
		if reclaimed {
			l.log.Warn("reclaimed stale lock",
				zap.String("stale_execution_id", existing.ExecutionID),
				zap.Time("last_heartbeat", existing.HeartbeatAt))
		}
	}

	if err := l.create(ctx, exec); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("acquire lock after reclaim: %w", err)
	}
	l.log.Info("lock acquired after stale reclaim", zap.String("execution_id", exec.ID))
	return exec, nil
}

// Heartbeat refreshes the lock's heartbeat instant and progress blob.
func (l *Locker) Heartbeat(ctx context.Context, exec *Execution, progress interface{}) error {
	blob, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal lock progress: %w", err)
	}
	if err := l.store.TouchLock(ctx, exec.ID, time.Now(), blob); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// Release deletes the lock row. Called on normal completion and on every
// fatal error path; releasing an already-deleted lock is a no-op.
func (l *Locker) Release(ctx context.Context, exec *Execution, finalStatus string) error {
	if err := l.store.ReleaseLock(ctx, exec.ID); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.log.Info("lock released",
		zap.String("execution_id", exec.ID),
		zap.String("final_status", finalStatus),
		zap.Duration("held_for", time.Since(exec.StartedAt)))
	return nil
}

func (l *Locker) create(ctx context.Context, exec *Execution) error {
	now := time.Now()
	return l.store.CreateLock(ctx, &models.SchedulerLock{
		ExecutionID: exec.ID,
		Status:      "running",
		CreatedAt:   now,
		HeartbeatAt: now,
	})
}
