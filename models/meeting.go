package models

import "github.com/uptrace/bun"

// Meeting represents a race meeting at a single venue on a single day.
type Meeting struct {
	bun.BaseModel `bun:"table:meetings,alias:m"`

	MeetingID  int64  `bun:"meeting_id,pk,autoincrement" json:"meetingID"`
	ExternalID string `bun:"external_id,notnull,unique" json:"externalID"`
	Name       string `bun:"name,notnull" json:"name"`
	Country    string `bun:"country,notnull" json:"country"`
	Venue      string `bun:"venue,notnull" json:"venue"`
	Category   string `bun:"category,notnull" json:"category"`
	Date       string `bun:"date,notnull,type:date" json:"date"`
}
