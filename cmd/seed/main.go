// cmd/seed/main.go
// Daily baseline ingestion: fetches all meetings for a date from the provider
// and upserts meetings and races so the scheduler has rows to poll.
//
// Usage:
//
//	go run ./cmd/seed -date 2026-08-30
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
	bundb "github.com/padraicbc/raceflow/db"
	applog "github.com/padraicbc/raceflow/logger"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/provider"
	"github.com/padraicbc/raceflow/resilience"
	"github.com/padraicbc/raceflow/store"
)

func main() {
	date := flag.String("date", time.Now().Format("2006-01-02"), "meeting date (YYYY-MM-DD)")
	flag.Parse()

	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		log.Fatal("logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	db := bundb.Setup(cfg)
	defer db.Close()

	ctx := context.Background()
	if err := bundb.CreateTables(ctx, db); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	st := store.New(db)
	client := provider.New(cfg, logger)
	retry := resilience.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay}

	var meetings []provider.Meeting
	err = resilience.Do(ctx, logger, "fetch meetings "+*date, retry, func(ctx context.Context) error {
		m, ferr := client.Meetings(ctx, *date)
		if ferr != nil {
			return ferr
		}
		meetings = m
		return nil
	})
	if err != nil {
		logger.Fatal("fetch meetings failed", zap.Error(err))
	}

	var races int
	for _, pm := range meetings {
		if pm.ID == "" {
			logger.Warn("skipping meeting with missing identifier", zap.String("name", pm.Name))
			continue
		}
		meeting := &models.Meeting{
			ExternalID: pm.ID,
			Name:       pm.Name,
			Country:    pm.Country,
			Venue:      pm.Venue,
			Category:   pm.Category,
			Date:       *date,
		}
		if err := st.UpsertMeeting(ctx, meeting); err != nil {
			logger.Warn("meeting upsert failed, skipping its races",
				zap.String("meeting", pm.ID), zap.Error(err))
			continue
		}

		for _, pr := range pm.Races {
			if pr.ID == "" {
				logger.Warn("skipping race with missing identifier",
					zap.String("meeting", pm.ID), zap.Int("number", pr.Number))
				continue
			}
			race := &models.Race{
				ExternalID:      pr.ID,
				MeetingID:       meeting.MeetingID,
				Number:          pr.Number,
				Name:            pr.Name,
				AdvertisedStart: pr.AdvertisedStart,
				Status:          provider.NormalizeStatus(pr.Status),
			}
			if err := st.UpsertRace(ctx, race); err != nil {
				logger.Warn("race upsert failed", zap.String("race", pr.ID), zap.Error(err))
				continue
			}
			races++
		}
	}

	logger.Info("baseline ingestion complete",
		zap.String("date", *date),
		zap.Int("meetings", len(meetings)),
		zap.Int("races", races))
}
