package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/resilience"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ProviderBaseURL: srv.URL,
		ProviderTimeout: 5 * time.Second,
		BatchSpacing:    time.Millisecond,
	}
	return New(cfg, zap.NewNop())
}

func TestRaceDetailFetch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events/race-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"race": {
			"id": "race-1",
			"name": "Addington Pace",
			"race_number": 4,
			"status": "Open",
			"advertised_start": "2026-08-30T04:15:00Z",
			"entrants": [{"id": "ent-1", "name": "Steady Eddie", "runner_number": 1, "fixed_win_odds": 3.4}],
			"pools": [{"product_type": "win", "total": 15200.5}],
			"money_tracker": [{"entrant_id": "ent-1", "hold_percentage": 22.5, "bet_percentage": 19.1}]
		}}`))
	}))

	detail, err := c.Race(context.Background(), "race-1")
	require.NoError(t, err)
	require.Equal(t, "race-1", detail.ID)
	require.Equal(t, 4, detail.Number)
	require.Len(t, detail.Entrants, 1)
	require.NotNil(t, detail.Entrants[0].FixedWinOdds)
	require.Equal(t, 3.4, *detail.Entrants[0].FixedWinOdds)
	require.Equal(t, 15200.5, detail.Pools[0].Total)
	require.Equal(t, 22.5, detail.MoneyTracker[0].HoldPercentage)
}

func TestRaceNotFoundIsNotRetryable(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such race", http.StatusNotFound)
	}))

	_, err := c.Race(context.Background(), "gone")
	require.Error(t, err)
	require.False(t, resilience.Retryable(err))
	require.Equal(t, resilience.ReasonClient, resilience.Classify(err))
}

func TestServerErrorIsRetryable(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream sad", http.StatusBadGateway)
	}))

	_, err := c.Race(context.Background(), "race-1")
	require.Error(t, err)
	require.True(t, resilience.Retryable(err))
}

func TestRacesBatchContainsFailures(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events/bad" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"race": {"id": "ignored", "status": "Open", "advertised_start": "2026-08-30T04:15:00Z"}}`))
	}))

	details, failures := c.Races(context.Background(), []string{"good-1", "bad", "good-2"})
	require.Len(t, details, 2)
	require.Len(t, failures, 1)
	require.Contains(t, failures, "bad")
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]models.RaceStatus{
		"Open":      models.StatusOpen,
		"CLOSED":    models.StatusClosed,
		"interim":   models.StatusInterim,
		"Final":     models.StatusFinal,
		"Abandoned": models.StatusAbandoned,
		"":          models.StatusUpcoming,
		"Mystery":   models.StatusUpcoming,
	}
	for raw, want := range cases {
		require.Equal(t, want, NormalizeStatus(raw), "raw %q", raw)
	}
}
