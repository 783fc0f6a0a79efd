package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Entrant represents a single runner in a race with its latest odds snapshot.
// Fixed odds take precedence for display but pool-derived odds are retained.
type Entrant struct {
	bun.BaseModel `bun:"table:entrants,alias:e"`

	EntrantID  int64  `bun:"entrant_id,pk,autoincrement" json:"entrantID"`
	ExternalID string `bun:"external_id,notnull,unique:entrants_no_dupes" json:"externalID"`
	RaceID     int64  `bun:"race_id,notnull,unique:entrants_no_dupes" json:"raceID"`
	Name       string `bun:"name,notnull" json:"name"`
	Number     int    `bun:"number,notnull" json:"number"`
	Barrier    int    `bun:"barrier,default:0" json:"barrier"`

	Scratched   bool       `bun:"scratched,notnull,default:false" json:"scratched"`
	ScratchedAt *time.Time `bun:"scratched_at,type:timestamptz" json:"scratchedAt,omitempty"`

	FixedWinOdds   *float64 `bun:"fixed_win_odds" json:"fixedWinOdds,omitempty"`
	FixedPlaceOdds *float64 `bun:"fixed_place_odds" json:"fixedPlaceOdds,omitempty"`
	PoolWinOdds    *float64 `bun:"pool_win_odds" json:"poolWinOdds,omitempty"`
	PoolPlaceOdds  *float64 `bun:"pool_place_odds" json:"poolPlaceOdds,omitempty"`

	HoldPercentage *float64 `bun:"hold_percentage" json:"holdPercentage,omitempty"`
	BetPercentage  *float64 `bun:"bet_percentage" json:"betPercentage,omitempty"`

	Jockey  *string `bun:"jockey" json:"jockey,omitempty"`
	Trainer *string `bun:"trainer" json:"trainer,omitempty"`

	Race *Race `bun:"rel:belongs-to,join:race_id=race_id" json:"-"`
}

// DisplayWinOdds returns the fixed win price when set, otherwise the pool price.
func (e *Entrant) DisplayWinOdds() *float64 {
	if e.FixedWinOdds != nil {
		return e.FixedWinOdds
	}
	return e.PoolWinOdds
}
