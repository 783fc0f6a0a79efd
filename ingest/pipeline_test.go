package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/provider"
	"github.com/padraicbc/raceflow/resilience"
	"github.com/padraicbc/raceflow/store"
)

type fakeFetcher struct {
	detail *provider.RaceDetail
	err    error
}

func (f *fakeFetcher) Race(ctx context.Context, externalID string) (*provider.RaceDetail, error) {
	return f.detail, f.err
}

// fakeStorage keeps one race in memory. A non-nil err makes every call fail,
// standing in for an unreachable database.
type fakeStorage struct {
	mu           sync.Mutex
	err          error
	race         *models.Race
	raceLookups  int
	lastPolledID int64
}

func (f *fakeStorage) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raceLookups
}

func (f *fakeStorage) RaceByExternalID(ctx context.Context, externalID string) (*models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raceLookups++
	if f.err != nil {
		return nil, f.err
	}
	if f.race == nil {
		return nil, store.ErrRaceNotFound
	}
	cp := *f.race
	return &cp, nil
}

func (f *fakeStorage) UpsertRace(ctx context.Context, r *models.Race) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	r.RaceID = 1
	cp := *r
	f.race = &cp
	return nil
}

func (f *fakeStorage) UpdateRaceStatus(ctx context.Context, raceID int64, status models.RaceStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.race != nil {
		f.race.Status = status
	}
	return nil
}

func (f *fakeStorage) SetLastPolled(ctx context.Context, raceID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.lastPolledID = raceID
	return nil
}

func (f *fakeStorage) AttachResults(ctx context.Context, raceID int64, results json.RawMessage) error {
	return f.err
}

func (f *fakeStorage) UpsertEntrant(ctx context.Context, e *models.Entrant) error {
	return f.err
}

func (f *fakeStorage) EntrantsByRace(ctx context.Context, raceID int64) ([]models.Entrant, error) {
	return nil, f.err
}

func (f *fakeStorage) AppendOddsHistory(ctx context.Context, entrantID, raceID int64, oddsType models.OddsType, odds float64, at time.Time) error {
	return f.err
}

func (f *fakeStorage) InsertBucket(ctx context.Context, b *models.MoneyFlowBucket) (bool, error) {
	return false, f.err
}

func (f *fakeStorage) NearestEarlierBucket(ctx context.Context, entrantID, raceID, key int64) (*models.MoneyFlowBucket, error) {
	return nil, f.err
}

func testPipeline(st Storage, fetch Fetcher) *Pipeline {
	log := zap.NewNop()
	return &Pipeline{
		store:             st,
		provider:          fetch,
		providerBreaker:   resilience.NewBreaker("provider", 3, time.Minute, log),
		storeBreaker:      resilience.NewBreaker("persistence", 3, time.Minute, log),
		retry:             resilience.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond},
		firstBucketMinKey: 600,
		log:               log,
	}
}

func persistenceSnapshot(t *testing.T, p *Pipeline) resilience.Snapshot {
	t.Helper()
	for _, snap := range p.Breakers() {
		if snap.Name == "persistence" {
			return snap
		}
	}
	t.Fatal("no persistence breaker snapshot")
	return resilience.Snapshot{}
}

func openRaceDetail(externalID string) *provider.RaceDetail {
	return &provider.RaceDetail{
		ID:              externalID,
		Name:            "Addington Pace",
		Number:          4,
		Status:          "Open",
		AdvertisedStart: time.Now().Add(10 * time.Minute),
	}
}

func TestPollRaceOpensPersistenceBreaker(t *testing.T) {
	st := &fakeStorage{err: errors.New("connection refused")}
	p := testPipeline(st, &fakeFetcher{detail: openRaceDetail("race-1")})
	ctx := context.Background()

	// The first store touch of every tick fails; three ticks trip the breaker.
	for i := 0; i < 3; i++ {
		_, err := p.PollRace(ctx, "race-1")
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, persistenceSnapshot(t, p).State)

	// With the breaker open the store is no longer touched at all.
	before := st.lookups()
	_, err := p.PollRace(ctx, "race-1")
	require.ErrorIs(t, err, resilience.ErrBreakerOpen)
	require.Equal(t, before, st.lookups())
}

func TestPollRaceUnseededMissIsNotABreakerFailure(t *testing.T) {
	st := &fakeStorage{}
	p := testPipeline(st, &fakeFetcher{detail: openRaceDetail("race-9")})

	status, err := p.PollRace(context.Background(), "race-9")
	require.NoError(t, err)
	require.Equal(t, models.StatusOpen, status)

	// The race was created from the live payload and stamped as polled.
	require.NotNil(t, st.race)
	require.Equal(t, int64(1), st.lastPolledID)

	snap := persistenceSnapshot(t, p)
	require.Equal(t, resilience.StateClosed, snap.State)
	require.Zero(t, snap.Failures)
}
