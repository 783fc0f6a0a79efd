package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// SchedulerLockID is the fixed primary key of the singleton lock row.
const SchedulerLockID = 1

// SchedulerLock is the persisted execution-singleton record. At most one row
// exists; a competing scheduler that fails to insert it must exit. A row whose
// heartbeat is older than the staleness threshold may be deleted and replaced.
type SchedulerLock struct {
	bun.BaseModel `bun:"table:scheduler_lock,alias:sl"`

	ID          int64           `bun:"id,pk" json:"id"`
	ExecutionID string          `bun:"execution_id,notnull" json:"executionID"`
	Status      string          `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time       `bun:"created_at,notnull,type:timestamptz" json:"createdAt"`
	HeartbeatAt time.Time       `bun:"heartbeat_at,notnull,type:timestamptz" json:"heartbeatAt"`
	Progress    json.RawMessage `bun:"progress,type:jsonb" json:"progress,omitempty"`
}

// Stale reports whether the lock's heartbeat is older than threshold at now.
func (l *SchedulerLock) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(l.HeartbeatAt) > threshold
}
