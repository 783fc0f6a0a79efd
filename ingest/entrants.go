package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/provider"
)

// ingestEntrants upserts every well-formed entrant in the payload and appends
// odds history for each price that changed since the previous snapshot.
// Returns the persisted entrants keyed by provider id for the money-flow pass.
func (p *Pipeline) ingestEntrants(ctx context.Context, race *models.Race, detail *provider.RaceDetail, now time.Time) map[string]*models.Entrant {
	log := p.log.With(zap.String("race", detail.ID))

	previous := make(map[string]models.Entrant)
	existing, err := p.entrantsByRace(ctx, race.RaceID)
	if err != nil {
		log.Warn("load existing entrants failed, odds history may miss changes", zap.Error(err))
	} else {
		for _, e := range existing {
			previous[e.ExternalID] = e
		}
	}

	liquidity := make(map[string]provider.EntrantLiquidity, len(detail.MoneyTracker))
	for _, ml := range detail.MoneyTracker {
		liquidity[ml.EntrantID] = ml
	}

	persisted := make(map[string]*models.Entrant, len(detail.Entrants))
	for _, pe := range detail.Entrants {
		if pe.ID == "" {
			log.Warn("skipping entrant with missing identifier",
				zap.String("name", pe.Name), zap.Int("number", pe.Number))
			continue
		}

		entrant := &models.Entrant{
			ExternalID:     pe.ID,
			RaceID:         race.RaceID,
			Name:           pe.Name,
			Number:         pe.Number,
			Barrier:        pe.Barrier,
			Scratched:      pe.Scratched,
			ScratchedAt:    pe.ScratchTime,
			FixedWinOdds:   pe.FixedWinOdds,
			FixedPlaceOdds: pe.FixedPlaceOdds,
			PoolWinOdds:    pe.PoolWinOdds,
			PoolPlaceOdds:  pe.PoolPlaceOdds,
			Jockey:         pe.Jockey,
			Trainer:        pe.Trainer,
		}
		if ml, ok := liquidity[pe.ID]; ok {
			hold, bet := ml.HoldPercentage, ml.BetPercentage
			entrant.HoldPercentage = &hold
			entrant.BetPercentage = &bet
		}

		err := p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
			return p.store.UpsertEntrant(ctx, entrant)
		})
		if err != nil {
			log.Warn("entrant upsert failed, skipping",
				zap.String("entrant", pe.ID), zap.Error(err))
			continue
		}
		persisted[pe.ID] = entrant

		prev, had := previous[pe.ID]
		p.appendOddsChanges(ctx, log, entrant, prevOdds(prev, had), now)
	}
	return persisted
}

// oddsSnapshot collects the four tracked prices of an entrant.
type oddsSnapshot struct {
	fixedWin, fixedPlace, poolWin, poolPlace *float64
}

func prevOdds(e models.Entrant, had bool) oddsSnapshot {
	if !had {
		return oddsSnapshot{}
	}
	return oddsSnapshot{
		fixedWin:   e.FixedWinOdds,
		fixedPlace: e.FixedPlaceOdds,
		poolWin:    e.PoolWinOdds,
		poolPlace:  e.PoolPlaceOdds,
	}
}

// appendOddsChanges writes one history row per odds type whose value differs
// from the previous snapshot. Unchanged prices produce no rows.
func (p *Pipeline) appendOddsChanges(ctx context.Context, log *zap.Logger, entrant *models.Entrant, prev oddsSnapshot, now time.Time) {
	changes := []struct {
		oddsType models.OddsType
		old, new *float64
	}{
		{models.OddsFixedWin, prev.fixedWin, entrant.FixedWinOdds},
		{models.OddsFixedPlace, prev.fixedPlace, entrant.FixedPlaceOdds},
		{models.OddsPoolWin, prev.poolWin, entrant.PoolWinOdds},
		{models.OddsPoolPlace, prev.poolPlace, entrant.PoolPlaceOdds},
	}

	for _, ch := range changes {
		if !oddsChanged(ch.old, ch.new) {
			continue
		}
		err := p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
			return p.store.AppendOddsHistory(ctx, entrant.EntrantID, entrant.RaceID, ch.oddsType, *ch.new, now)
		})
		if err != nil {
			log.Warn("append odds history failed",
				zap.String("entrant", entrant.ExternalID),
				zap.String("type", string(ch.oddsType)),
				zap.Error(err))
		}
	}
}

func oddsChanged(old, new *float64) bool {
	if new == nil {
		return false
	}
	return old == nil || *old != *new
}
