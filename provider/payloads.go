package provider

import (
	"strings"
	"time"

	"github.com/padraicbc/raceflow/models"
)

// Meeting is a normalized provider meeting with its race summaries.
type Meeting struct {
	ID       string        `json:"meeting"`
	Name     string        `json:"name"`
	Country  string        `json:"country"`
	Venue    string        `json:"venue"`
	Category string        `json:"category_name"`
	Date     string        `json:"date"`
	Races    []RaceSummary `json:"races"`
}

// RaceSummary is the per-race slice of a meetings payload.
type RaceSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Number          int       `json:"race_number"`
	Status          string    `json:"status"`
	AdvertisedStart time.Time `json:"advertised_start"`
}

// RaceDetail is a full race payload: entrants, pools and the money tracker.
type RaceDetail struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Number          int                `json:"race_number"`
	MeetingID       string             `json:"meeting_id"`
	Status          string             `json:"status"`
	AdvertisedStart time.Time          `json:"advertised_start"`
	ActualStart     *time.Time         `json:"actual_start,omitempty"`
	Entrants        []Entrant          `json:"entrants"`
	Pools           []Pool             `json:"pools"`
	MoneyTracker    []EntrantLiquidity `json:"money_tracker,omitempty"`
	Results         []ResultPlace      `json:"results,omitempty"`
}

// Entrant is a single runner in a race detail payload.
type Entrant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Number      int        `json:"runner_number"`
	Barrier     int        `json:"barrier"`
	Scratched   bool       `json:"is_scratched"`
	ScratchTime *time.Time `json:"scratch_time,omitempty"`
	Jockey      *string    `json:"jockey,omitempty"`
	Trainer     *string    `json:"trainer_name,omitempty"`

	FixedWinOdds   *float64 `json:"fixed_win_odds,omitempty"`
	FixedPlaceOdds *float64 `json:"fixed_place_odds,omitempty"`
	PoolWinOdds    *float64 `json:"win_odds,omitempty"`
	PoolPlaceOdds  *float64 `json:"place_odds,omitempty"`
}

// Pool is an absolute tote pool total for one product type.
type Pool struct {
	ProductType string  `json:"product_type"`
	Total       float64 `json:"total"`
}

// EntrantLiquidity is one money-tracker snapshot row for an entrant.
type EntrantLiquidity struct {
	EntrantID      string  `json:"entrant_id"`
	HoldPercentage float64 `json:"hold_percentage"`
	BetPercentage  float64 `json:"bet_percentage"`
}

// ResultPlace is one placing in a results payload.
type ResultPlace struct {
	EntrantID string `json:"entrant_id"`
	Position  int    `json:"position"`
}

// NormalizeStatus maps a provider status string onto the internal enum.
// Unknown values fall back to upcoming so a new provider status never stalls a
// race that still needs polling.
func NormalizeStatus(raw string) models.RaceStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "betting":
		return models.StatusOpen
	case "closed":
		return models.StatusClosed
	case "interim":
		return models.StatusInterim
	case "final", "finalized", "paying":
		return models.StatusFinal
	case "abandoned", "cancelled":
		return models.StatusAbandoned
	default:
		return models.StatusUpcoming
	}
}
