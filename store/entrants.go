package store

import (
	"context"
	"fmt"
	"time"

	"github.com/padraicbc/raceflow/models"
)

// UpsertEntrant inserts an entrant or refreshes its odds snapshot, scratch
// flags and metadata by (external_id, race_id).
func (s *Store) UpsertEntrant(ctx context.Context, e *models.Entrant) error {
	_, err := s.db.NewInsert().Model(e).
		On(`CONFLICT (external_id, race_id) DO UPDATE SET
			name = EXCLUDED.name,
			number = EXCLUDED.number,
			barrier = EXCLUDED.barrier,
			scratched = EXCLUDED.scratched,
			scratched_at = EXCLUDED.scratched_at,
			fixed_win_odds = EXCLUDED.fixed_win_odds,
			fixed_place_odds = EXCLUDED.fixed_place_odds,
			pool_win_odds = EXCLUDED.pool_win_odds,
			pool_place_odds = EXCLUDED.pool_place_odds,
			hold_percentage = EXCLUDED.hold_percentage,
			bet_percentage = EXCLUDED.bet_percentage,
			jockey = EXCLUDED.jockey,
			trainer = EXCLUDED.trainer`).
		Returning("entrant_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert entrant %s: %w", e.ExternalID, err)
	}
	return nil
}

// EntrantsByRace returns the current entrant snapshots for a race.
func (s *Store) EntrantsByRace(ctx context.Context, raceID int64) ([]models.Entrant, error) {
	var entrants []models.Entrant
	err := s.db.NewSelect().Model(&entrants).
		Where("race_id = ?", raceID).
		Order("number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("entrants for race %d: %w", raceID, err)
	}
	return entrants, nil
}

// AppendOddsHistory writes one odds-change row. The table is append-only;
// callers only invoke this when a value actually changed.
func (s *Store) AppendOddsHistory(ctx context.Context, entrantID, raceID int64, oddsType models.OddsType, odds float64, at time.Time) error {
	row := &models.OddsHistory{
		EntrantID:  entrantID,
		RaceID:     raceID,
		Type:       oddsType,
		Odds:       odds,
		RecordedAt: at,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append odds history for entrant %d: %w", entrantID, err)
	}
	return nil
}
