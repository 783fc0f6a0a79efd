package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// RaceStatus is the lifecycle status reported by the provider.
type RaceStatus string

const (
	StatusUpcoming  RaceStatus = "upcoming"
	StatusOpen      RaceStatus = "open"
	StatusClosed    RaceStatus = "closed"
	StatusInterim   RaceStatus = "interim"
	StatusFinal     RaceStatus = "final"
	StatusAbandoned RaceStatus = "abandoned"
)

// Terminal reports whether the status admits no further transitions.
func (s RaceStatus) Terminal() bool {
	return s == StatusFinal || s == StatusAbandoned
}

// HasResults reports whether results data is expected to be available.
func (s RaceStatus) HasResults() bool {
	return s == StatusInterim || s == StatusFinal
}

// Race represents a single race within a meeting.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	RaceID          int64           `bun:"race_id,pk,autoincrement" json:"raceID"`
	ExternalID      string          `bun:"external_id,notnull,unique" json:"externalID"`
	MeetingID       int64           `bun:"meeting_id,notnull" json:"meetingID"`
	Number          int             `bun:"number,notnull" json:"number"`
	Name            string          `bun:"name,notnull" json:"name"`
	AdvertisedStart time.Time       `bun:"advertised_start,notnull,type:timestamptz" json:"advertisedStart"`
	ActualStart     *time.Time      `bun:"actual_start,type:timestamptz" json:"actualStart,omitempty"`
	Status          RaceStatus      `bun:"status,notnull,default:'upcoming'" json:"status"`
	StatusChangedAt *time.Time      `bun:"status_changed_at,type:timestamptz" json:"statusChangedAt,omitempty"`
	LastPolledAt    *time.Time      `bun:"last_polled_at,type:timestamptz" json:"lastPolledAt,omitempty"`
	ResultsData     json.RawMessage `bun:"results_data,type:jsonb" json:"resultsData,omitempty"`

	Meeting *Meeting `bun:"rel:belongs-to,join:meeting_id=meeting_id" json:"-"`
}
