// Package handlers exposes the internal ops API: signin, scheduler status,
// assignment and money-flow inspection. This is a read-only operational
// surface, not the presentation layer.
package handlers

import (
	"context"

	"github.com/padraicbc/raceflow/ingest"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/scheduler"
)

// Storage is the slice of the persistence gateway the ops handlers read from.
type Storage interface {
	GetLock(ctx context.Context) (*models.SchedulerLock, error)
	RaceByExternalID(ctx context.Context, externalID string) (*models.Race, error)
	EntrantsByRace(ctx context.Context, raceID int64) ([]models.Entrant, error)
	BucketsByRace(ctx context.Context, raceID int64) ([]models.MoneyFlowBucket, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store    Storage
	sched    *scheduler.Scheduler
	pipeline *ingest.Pipeline
	JWTKey   []byte
}

// New creates a Handler with the given dependencies and JWT signing key.
func New(st Storage, sched *scheduler.Scheduler, pipeline *ingest.Pipeline, jwtKey []byte) *Handler {
	return &Handler{store: st, sched: sched, pipeline: pipeline, JWTKey: jwtKey}
}
