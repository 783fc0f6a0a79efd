package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/raceflow/models"
)

// ErrRaceNotFound is returned when a race id has no persisted row.
var ErrRaceNotFound = errors.New("store: race not found")

// UpsertMeeting inserts a meeting or refreshes its mutable fields by external id.
func (s *Store) UpsertMeeting(ctx context.Context, m *models.Meeting) error {
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name, venue = EXCLUDED.venue, category = EXCLUDED.category, date = EXCLUDED.date").
		Returning("meeting_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert meeting %s: %w", m.ExternalID, err)
	}
	return nil
}

// UpsertRace inserts a race or refreshes name, number and advertised start by
// external id. Status is deliberately not overwritten here – status changes go
// through UpdateRaceStatus so terminal states stay terminal.
func (s *Store) UpsertRace(ctx context.Context, r *models.Race) error {
	_, err := s.db.NewInsert().Model(r).
		On("CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name, number = EXCLUDED.number, advertised_start = EXCLUDED.advertised_start").
		Returning("race_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert race %s: %w", r.ExternalID, err)
	}
	return nil
}

// RaceByExternalID loads a single race by its provider identifier.
func (s *Store) RaceByExternalID(ctx context.Context, externalID string) (*models.Race, error) {
	race := &models.Race{}
	err := s.db.NewSelect().Model(race).
		Where("external_id = ?", externalID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("race by external id %s: %w", externalID, err)
	}
	return race, nil
}

// ActiveRaces returns races with a non-terminal pollable status whose
// advertised start falls inside the lookahead window, plus any races in
// keepIDs regardless of status so in-flight assignments can drain.
func (s *Store) ActiveRaces(ctx context.Context, now time.Time, lookahead time.Duration, keepIDs []int64) ([]models.Race, error) {
	var races []models.Race
	q := s.db.NewSelect().Model(&races).
		Where("status IN (?, ?)", models.StatusUpcoming, models.StatusOpen).
		Where("advertised_start <= ?", now.Add(lookahead))
	if len(keepIDs) > 0 {
		q = q.WhereOr("race_id IN (?)", bun.In(keepIDs))
	}
	if err := q.Order("advertised_start ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("active races: %w", err)
	}
	return races, nil
}

// UpdateRaceStatus persists a status transition with its timestamp. A race
// already in a terminal status is never moved again.
func (s *Store) UpdateRaceStatus(ctx context.Context, raceID int64, status models.RaceStatus, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*models.Race)(nil)).
		Set("status = ?", status).
		Set("status_changed_at = ?", at).
		Where("race_id = ?", raceID).
		Where("status NOT IN (?, ?)", models.StatusFinal, models.StatusAbandoned).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update race %d status: %w", raceID, err)
	}
	return nil
}

// SetLastPolled records a successful poll instant for a race.
func (s *Store) SetLastPolled(ctx context.Context, raceID int64, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*models.Race)(nil)).
		Set("last_polled_at = ?", at).
		Where("race_id = ?", raceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set last polled for race %d: %w", raceID, err)
	}
	return nil
}

// AttachResults stores the results payload for a race. Writing the same
// payload twice is harmless, so the status-driven caller can repeat itself.
func (s *Store) AttachResults(ctx context.Context, raceID int64, results json.RawMessage) error {
	_, err := s.db.NewUpdate().Model((*models.Race)(nil)).
		Set("results_data = ?", results).
		Where("race_id = ?", raceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach results for race %d: %w", raceID, err)
	}
	return nil
}
