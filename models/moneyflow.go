package models

import (
	"time"

	"github.com/uptrace/bun"
)

// MoneyFlowBucket is one append-only point in an entrant's money-flow time
// series, keyed by a discretized seconds-to-start interval. IntervalKey is the
// lower edge of the bucket; keys are negative once the advertised start has
// passed. Incremental amounts are computed against the chronologically
// previous bucket at insert time and never rewritten.
type MoneyFlowBucket struct {
	bun.BaseModel `bun:"table:money_flow_buckets,alias:mf"`

	ID          int64 `bun:"id,pk,autoincrement" json:"id"`
	EntrantID   int64 `bun:"entrant_id,notnull,unique:money_flow_no_dupes" json:"entrantID"`
	RaceID      int64 `bun:"race_id,notnull" json:"raceID"`
	IntervalKey int64 `bun:"interval_key,notnull,unique:money_flow_no_dupes" json:"intervalKey"`

	HoldPercentage float64 `bun:"hold_percentage,notnull" json:"holdPercentage"`
	BetPercentage  float64 `bun:"bet_percentage,notnull" json:"betPercentage"`

	WinPoolAmount   float64 `bun:"win_pool_amount,notnull" json:"winPoolAmount"`
	PlacePoolAmount float64 `bun:"place_pool_amount,notnull" json:"placePoolAmount"`

	IncrementalWinAmount   float64 `bun:"incremental_win_amount,notnull" json:"incrementalWinAmount"`
	IncrementalPlaceAmount float64 `bun:"incremental_place_amount,notnull" json:"incrementalPlaceAmount"`

	// DataQuality is "ok", "baseline", "gap_fallback" or "pool_mismatch".
	DataQuality string    `bun:"data_quality,notnull,default:'ok'" json:"dataQuality"`
	PolledAt    time.Time `bun:"polled_at,notnull,type:timestamptz" json:"polledAt"`
}

// Bucket data-quality markers.
const (
	QualityOK           = "ok"
	QualityBaseline     = "baseline"
	QualityGapFallback  = "gap_fallback"
	QualityPoolMismatch = "pool_mismatch"
)
