package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/provider"
)

// ingestMoneyFlow appends one money-flow bucket per tracked entrant for the
// current poll cycle. The incremental amount is the difference against the
// chronologically previous bucket; the first-ever bucket records its absolute
// amount as the baseline, and a missing predecessor outside the plausible
// first-bucket range falls back to a zero increment. Buckets already on the
// grid are never rewritten.
func (p *Pipeline) ingestMoneyFlow(ctx context.Context, log *zap.Logger, race *models.Race, detail *provider.RaceDetail, entrants map[string]*models.Entrant, winTotal, placeTotal float64, poolsConsistent bool, now time.Time) {
	if len(detail.MoneyTracker) == 0 {
		return
	}

	key := BucketKey(detail.AdvertisedStart.Sub(now))

	for _, ml := range detail.MoneyTracker {
		entrant, ok := entrants[ml.EntrantID]
		if !ok {
			log.Warn("money tracker references unknown entrant",
				zap.String("entrant", ml.EntrantID))
			continue
		}

		bucket := &models.MoneyFlowBucket{
			EntrantID:       entrant.EntrantID,
			RaceID:          race.RaceID,
			IntervalKey:     key,
			HoldPercentage:  ml.HoldPercentage,
			BetPercentage:   ml.BetPercentage,
			WinPoolAmount:   winTotal * ml.HoldPercentage / 100,
			PlacePoolAmount: placeTotal * ml.HoldPercentage / 100,
			DataQuality:     models.QualityOK,
			PolledAt:        now,
		}

		prev, err := p.nearestEarlierBucket(ctx, entrant.EntrantID, race.RaceID, key)
		if err != nil {
			log.Warn("previous bucket lookup failed, skipping entrant",
				zap.String("entrant", ml.EntrantID), zap.Error(err))
			continue
		}

		p.applyIncrement(bucket, prev)
		if bucket.DataQuality == models.QualityGapFallback {
			log.Info("no earlier bucket found, recording zero increment",
				zap.String("entrant", ml.EntrantID), zap.Int64("interval_key", key))
		}

		if !poolsConsistent {
			bucket.DataQuality = models.QualityPoolMismatch
		}

		err = p.storeBreaker.Execute(ctx, func(ctx context.Context) error {
			_, ierr := p.store.InsertBucket(ctx, bucket)
			return ierr
		})
		if err != nil {
			log.Warn("bucket insert failed, skipping entrant",
				zap.String("entrant", ml.EntrantID), zap.Error(err))
		}
	}
}

// applyIncrement derives the incremental amounts for a new bucket. With a
// chronologically previous bucket the increment is the difference of absolute
// amounts. Without one, a bucket still inside the plausible first-observation
// range records its absolute amount as the baseline; closer to the start a
// missing predecessor means missed polls, so zero flow is recorded for the
// gap rather than inventing a spike.
func (p *Pipeline) applyIncrement(bucket, prev *models.MoneyFlowBucket) {
	switch {
	case prev != nil:
		bucket.IncrementalWinAmount = bucket.WinPoolAmount - prev.WinPoolAmount
		bucket.IncrementalPlaceAmount = bucket.PlacePoolAmount - prev.PlacePoolAmount
	case bucket.IntervalKey >= p.firstBucketMinKey:
		bucket.IncrementalWinAmount = bucket.WinPoolAmount
		bucket.IncrementalPlaceAmount = bucket.PlacePoolAmount
		bucket.DataQuality = models.QualityBaseline
	default:
		bucket.IncrementalWinAmount = 0
		bucket.IncrementalPlaceAmount = 0
		bucket.DataQuality = models.QualityGapFallback
	}
}
