package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OddsType identifies which price an OddsHistory row records.
type OddsType string

const (
	OddsFixedWin   OddsType = "fixed_win"
	OddsFixedPlace OddsType = "fixed_place"
	OddsPoolWin    OddsType = "pool_win"
	OddsPoolPlace  OddsType = "pool_place"
)

// OddsHistory is an append-only log of odds changes, one row per distinct
// change per odds type.
type OddsHistory struct {
	bun.BaseModel `bun:"table:odds_history,alias:oh"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	EntrantID  int64     `bun:"entrant_id,notnull" json:"entrantID"`
	RaceID     int64     `bun:"race_id,notnull" json:"raceID"`
	Type       OddsType  `bun:"type,notnull" json:"type"`
	Odds       float64   `bun:"odds,notnull" json:"odds"`
	RecordedAt time.Time `bun:"recorded_at,notnull,type:timestamptz" json:"recordedAt"`
}
