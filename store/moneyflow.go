package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/padraicbc/raceflow/models"
)

// InsertBucket appends one money-flow bucket. A bucket that already exists for
// the same (entrant, interval) is left untouched – the series is append-only
// and a faster poll cadence than the bucket width would otherwise rewrite it.
// Returns true when a row was actually written.
func (s *Store) InsertBucket(ctx context.Context, b *models.MoneyFlowBucket) (bool, error) {
	res, err := s.db.NewInsert().Model(b).
		On("CONFLICT (entrant_id, interval_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert bucket entrant %d key %d: %w", b.EntrantID, b.IntervalKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert bucket rows affected: %w", err)
	}
	return n > 0, nil
}

// NearestEarlierBucket returns the chronologically previous bucket for an
// entrant: the row with the smallest interval key strictly greater than key
// (larger keys are further from the start, i.e. earlier in time). Returns nil
// when no earlier bucket exists.
func (s *Store) NearestEarlierBucket(ctx context.Context, entrantID, raceID, key int64) (*models.MoneyFlowBucket, error) {
	bucket := &models.MoneyFlowBucket{}
	err := s.db.NewSelect().Model(bucket).
		Where("entrant_id = ?", entrantID).
		Where("race_id = ?", raceID).
		Where("interval_key > ?", key).
		Order("interval_key ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nearest earlier bucket for entrant %d: %w", entrantID, err)
	}
	return bucket, nil
}

// BucketsByRace returns the full bucket series for a race ordered from the
// earliest observation to the latest.
func (s *Store) BucketsByRace(ctx context.Context, raceID int64) ([]models.MoneyFlowBucket, error) {
	var buckets []models.MoneyFlowBucket
	err := s.db.NewSelect().Model(&buckets).
		Where("race_id = ?", raceID).
		Order("entrant_id ASC", "interval_key DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("buckets for race %d: %w", raceID, err)
	}
	return buckets, nil
}
