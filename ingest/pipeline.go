// Package ingest turns provider race payloads into persisted race, entrant,
// odds-history and money-flow state. Failures are contained per entrant and
// per pool: one malformed record never aborts the rest of a payload.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/provider"
	"github.com/padraicbc/raceflow/resilience"
	"github.com/padraicbc/raceflow/store"
)

// Fetcher is the slice of the provider client the pipeline needs.
type Fetcher interface {
	Race(ctx context.Context, externalID string) (*provider.RaceDetail, error)
}

// Storage is the slice of the persistence gateway the pipeline writes through.
// Every call, reads included, goes through the persistence breaker so a
// degraded database opens it instead of burning ticks.
type Storage interface {
	UpsertRace(ctx context.Context, r *models.Race) error
	RaceByExternalID(ctx context.Context, externalID string) (*models.Race, error)
	UpdateRaceStatus(ctx context.Context, raceID int64, status models.RaceStatus, at time.Time) error
	SetLastPolled(ctx context.Context, raceID int64, at time.Time) error
	AttachResults(ctx context.Context, raceID int64, results json.RawMessage) error
	UpsertEntrant(ctx context.Context, e *models.Entrant) error
	EntrantsByRace(ctx context.Context, raceID int64) ([]models.Entrant, error)
	AppendOddsHistory(ctx context.Context, entrantID, raceID int64, oddsType models.OddsType, odds float64, at time.Time) error
	InsertBucket(ctx context.Context, b *models.MoneyFlowBucket) (bool, error)
	NearestEarlierBucket(ctx context.Context, entrantID, raceID, key int64) (*models.MoneyFlowBucket, error)
}

// Pipeline ingests provider payloads for single races.
type Pipeline struct {
	store    Storage
	provider Fetcher

	providerBreaker *resilience.CircuitBreaker
	storeBreaker    *resilience.CircuitBreaker
	retry           resilience.RetryConfig

	firstBucketMinKey int64
	log               *zap.Logger
}

// New wires a Pipeline with its resilience guards. Each dependency gets an
// independent breaker; retries run inside a single breaker execution.
func New(cfg *config.Config, st *store.Store, fetcher Fetcher, log *zap.Logger) *Pipeline {
	return &Pipeline{
		store:             st,
		provider:          fetcher,
		providerBreaker:   resilience.NewBreaker("provider", cfg.ProviderFailureThreshold, cfg.BreakerResetTimeout, log),
		storeBreaker:      resilience.NewBreaker("persistence", cfg.StoreFailureThreshold, cfg.BreakerResetTimeout, log),
		retry:             resilience.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay},
		firstBucketMinKey: cfg.FirstBucketMinKey,
		log:               log.Named("ingest"),
	}
}

// Breakers exposes the pipeline's breaker snapshots for the ops surface.
func (p *Pipeline) Breakers() []resilience.Snapshot {
	return []resilience.Snapshot{
		p.providerBreaker.Snapshot(),
		p.storeBreaker.Snapshot(),
	}
}

// PollRace performs one tick for a race: fetch the detail payload through the
// provider breaker (with retries inside), ingest it, and stamp last_polled_at
// on success. The returned status lets the scheduler retire terminal races.
func (p *Pipeline) PollRace(ctx context.Context, externalID string) (models.RaceStatus, error) {
	var detail *provider.RaceDetail
	err := p.providerBreaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, p.log, "fetch race "+externalID, p.retry, func(ctx context.Context) error {
			d, err := p.provider.Race(ctx, externalID)
			if err != nil {
				return err
			}
			detail = d
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("poll race %s: %w", externalID, err)
	}

	status, err := p.Ingest(ctx, detail)
	if err != nil {
		return status, err
	}

	race, err := p.raceByExternalID(ctx, externalID)
	if err != nil {
		return status, err
	}
	if err := p.setLastPolled(ctx, race.RaceID, time.Now()); err != nil {
		return status, err
	}
	return status, nil
}

// Ingest persists one race detail payload: status transition, entrant
// upserts with odds history, pool validation and money-flow buckets.
func (p *Pipeline) Ingest(ctx context.Context, detail *provider.RaceDetail) (models.RaceStatus, error) {
	now := time.Now()
	status := provider.NormalizeStatus(detail.Status)
	log := p.log.With(zap.String("race", detail.ID), zap.String("status", string(status)))

	race, err := p.raceByExternalID(ctx, detail.ID)
	if errors.Is(err, store.ErrRaceNotFound) {
		// Not seeded by the daily baseline; create it so live data is kept.
		race = &models.Race{
			ExternalID:      detail.ID,
			Name:            detail.Name,
			Number:          detail.Number,
			AdvertisedStart: detail.AdvertisedStart,
			Status:          models.StatusUpcoming,
		}
		log.Warn("race not seeded, creating from live payload")
		if uerr := p.upsertRace(ctx, race); uerr != nil {
			return status, uerr
		}
	} else if err != nil {
		return status, err
	}

	if race.Status.Terminal() && status != race.Status {
		log.Warn("ignoring status change on terminal race",
			zap.String("persisted", string(race.Status)))
		status = race.Status
	}

	if status != race.Status {
		if err := p.updateStatus(ctx, race.RaceID, status, now); err != nil {
			return status, err
		}
		log.Info("race status changed", zap.String("from", string(race.Status)))
	}

	if status.HasResults() && len(detail.Results) > 0 {
		if err := p.attachResults(ctx, race.RaceID, detail.Results); err != nil {
			// Results re-arrive on every interim/final poll; next tick retries.
			log.Warn("attach results failed", zap.Error(err))
		}
	}

	entrants := p.ingestEntrants(ctx, race, detail, now)

	winTotal, placeTotal := poolTotals(detail.Pools)
	consistent := p.validatePools(log, detail, winTotal)

	p.ingestMoneyFlow(ctx, log, race, detail, entrants, winTotal, placeTotal, consistent, now)

	return status, nil
}

func (p *Pipeline) upsertRace(ctx context.Context, race *models.Race) error {
	return p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		return p.store.UpsertRace(ctx, race)
	})
}

func (p *Pipeline) raceByExternalID(ctx context.Context, externalID string) (*models.Race, error) {
	var race *models.Race
	var missing bool
	err := p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		r, rerr := p.store.RaceByExternalID(ctx, externalID)
		if errors.Is(rerr, store.ErrRaceNotFound) {
			// A miss is an answer, not a dependency failure.
			missing = true
			return nil
		}
		race = r
		return rerr
	})
	switch {
	case err != nil:
		return nil, err
	case missing:
		return nil, store.ErrRaceNotFound
	}
	return race, nil
}

func (p *Pipeline) entrantsByRace(ctx context.Context, raceID int64) ([]models.Entrant, error) {
	var entrants []models.Entrant
	err := p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		var rerr error
		entrants, rerr = p.store.EntrantsByRace(ctx, raceID)
		return rerr
	})
	return entrants, err
}

func (p *Pipeline) nearestEarlierBucket(ctx context.Context, entrantID, raceID, key int64) (*models.MoneyFlowBucket, error) {
	var bucket *models.MoneyFlowBucket
	err := p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		var rerr error
		bucket, rerr = p.store.NearestEarlierBucket(ctx, entrantID, raceID, key)
		return rerr
	})
	return bucket, err
}

func (p *Pipeline) setLastPolled(ctx context.Context, raceID int64, at time.Time) error {
	return p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		return p.store.SetLastPolled(ctx, raceID, at)
	})
}

func (p *Pipeline) updateStatus(ctx context.Context, raceID int64, status models.RaceStatus, at time.Time) error {
	return p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		return p.store.UpdateRaceStatus(ctx, raceID, status, at)
	})
}

func (p *Pipeline) attachResults(ctx context.Context, raceID int64, results []provider.ResultPlace) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results for race %d: %w", raceID, err)
	}
	return p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
		return p.store.AttachResults(ctx, raceID, payload)
	})
}

// poolTotals extracts win and place tote totals from the pools slice.
func poolTotals(pools []provider.Pool) (win, place float64) {
	for _, pool := range pools {
		switch pool.ProductType {
		case "win":
			win = pool.Total
		case "place":
			place = pool.Total
		}
	}
	return win, place
}
