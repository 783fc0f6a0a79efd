package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/resilience"
)

type fakeRaceSource struct {
	mu    sync.Mutex
	races []models.Race
}

func (f *fakeRaceSource) set(races ...models.Race) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.races = races
}

func (f *fakeRaceSource) ActiveRaces(ctx context.Context, now time.Time, lookahead time.Duration, keepIDs []int64) ([]models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Race, len(f.races))
	copy(out, f.races)
	return out, nil
}

type fakePoller struct {
	mu     sync.Mutex
	status models.RaceStatus
	err    error
	polled []string
}

func (f *fakePoller) PollRace(ctx context.Context, externalID string) (models.RaceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, externalID)
	return f.status, f.err
}

func (f *fakePoller) Breakers() []resilience.Snapshot { return nil }

func testConfig() *config.Config {
	return &config.Config{
		PollFast:        15 * time.Second,
		PollMedium:      30 * time.Second,
		PollSlow:        60 * time.Second,
		Lookahead:       24 * time.Hour,
		EvaluateEvery:   60 * time.Second,
		HeartbeatEvery:  45 * time.Second,
		LockStaleAfter:  2 * time.Minute,
		ProviderTimeout: time.Second,
	}
}

func testScheduler(src RaceSource, poller Poller) *Scheduler {
	s := &Scheduler{
		cfg:         testConfig(),
		races:       src,
		poller:      poller,
		tiers:       Tiers{Fast: 15 * time.Second, Medium: 30 * time.Second, Slow: 60 * time.Second},
		cron:        cron.New(),
		log:         zap.NewNop(),
		assignments: make(map[int64]*assignment),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func race(id int64, externalID string, startIn time.Duration, status models.RaceStatus) models.Race {
	return models.Race{
		RaceID:          id,
		ExternalID:      externalID,
		Status:          status,
		AdvertisedStart: time.Now().Add(startIn),
	}
}

func assignmentFor(t *testing.T, s *Scheduler, raceID int64) AssignmentView {
	t.Helper()
	for _, a := range s.Assignments() {
		if a.RaceID == raceID {
			return a
		}
	}
	t.Fatalf("no assignment for race %d", raceID)
	return AssignmentView{}
}

func TestEvaluateAssignsTierIntervals(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	defer s.cancel()

	src.set(
		race(1, "r-near", 200*time.Second, models.StatusOpen),
		race(2, "r-mid", 600*time.Second, models.StatusOpen),
		race(3, "r-far", 1200*time.Second, models.StatusUpcoming),
	)
	require.NoError(t, s.Evaluate(s.ctx))

	require.Equal(t, 15*time.Second, assignmentFor(t, s, 1).Interval)
	require.Equal(t, 30*time.Second, assignmentFor(t, s, 2).Interval)
	require.Equal(t, 60*time.Second, assignmentFor(t, s, 3).Interval)
}

func TestEvaluateRearmsOnTierChange(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	defer s.cancel()

	src.set(race(1, "r1", 20*time.Minute, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))
	require.Equal(t, 60*time.Second, assignmentFor(t, s, 1).Interval)

	// The race has moved inside the medium window.
	src.set(race(1, "r1", 10*time.Minute, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))
	require.Equal(t, 30*time.Second, assignmentFor(t, s, 1).Interval)

	// Still exactly one assignment for the race.
	require.Len(t, s.Assignments(), 1)
}

func TestEvaluateRetiresTerminalRace(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	defer s.cancel()

	src.set(race(1, "r1", 100*time.Second, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))
	require.Len(t, s.Assignments(), 1)

	src.set(race(1, "r1", -30*time.Second, models.StatusFinal))
	require.NoError(t, s.Evaluate(s.ctx))
	require.Empty(t, s.Assignments())
}

func TestEvaluateDropsVanishedRace(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	defer s.cancel()

	src.set(race(1, "r1", 100*time.Second, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))
	require.Len(t, s.Assignments(), 1)

	src.set()
	require.NoError(t, s.Evaluate(s.ctx))
	require.Empty(t, s.Assignments())
}

func TestStartedRaceKeepsFastTier(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	defer s.cancel()

	// Past the advertised start but still open: polling continues at the
	// fastest tier rather than dropping the race.
	src.set(race(1, "r1", -2*time.Minute, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))
	require.Equal(t, 15*time.Second, assignmentFor(t, s, 1).Interval)
}

func TestTickRetiresOnTerminalStatus(t *testing.T) {
	src := &fakeRaceSource{}
	poller := &fakePoller{status: models.StatusFinal}
	s := testScheduler(src, poller)
	defer s.cancel()

	src.set(race(1, "r1", 30*time.Second, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))

	s.tick(1)
	require.Empty(t, s.Assignments())
	require.Equal(t, []string{"r1"}, poller.polled)
}

func TestTickFailureKeepsAssignment(t *testing.T) {
	src := &fakeRaceSource{}
	poller := &fakePoller{err: context.DeadlineExceeded}
	s := testScheduler(src, poller)
	defer s.cancel()

	src.set(race(1, "r1", 30*time.Second, models.StatusOpen))
	require.NoError(t, s.Evaluate(s.ctx))

	s.tick(1)
	require.Len(t, s.Assignments(), 1)
	require.Equal(t, 1, assignmentFor(t, s, 1).Ticks)
}

func TestAssignmentsSortedByRaceID(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	defer s.cancel()

	src.set(
		race(3, "r3", 100*time.Second, models.StatusOpen),
		race(1, "r1", 700*time.Second, models.StatusOpen),
		race(2, "r2", 1300*time.Second, models.StatusOpen),
	)
	require.NoError(t, s.Evaluate(s.ctx))

	views := s.Assignments()
	ids := make([]int64, len(views))
	for i, v := range views {
		ids[i] = v.RaceID
	}
	require.Equal(t, []int64{1, 2, 3}, ids)
}

func TestStartStopLockLifecycle(t *testing.T) {
	ls := &fakeLockStore{}
	src := &fakeRaceSource{}

	s := testScheduler(src, &fakePoller{status: models.StatusOpen})
	s.locker = NewLocker(ls, 2*time.Minute, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, s.exec.ID, ls.current().ExecutionID)

	// A second instance collides, exits, and leaves the first's row alone.
	second := testScheduler(src, &fakePoller{status: models.StatusOpen})
	second.locker = NewLocker(ls, 2*time.Minute, zap.NewNop())
	require.ErrorIs(t, second.Start(context.Background()), ErrAlreadyRunning)
	require.Equal(t, s.exec.ID, ls.current().ExecutionID)

	s.Stop("completed")
	require.Nil(t, ls.current())
}

func TestStopCancelsAllTimers(t *testing.T) {
	src := &fakeRaceSource{}
	s := testScheduler(src, &fakePoller{status: models.StatusOpen})

	src.set(
		race(1, "r1", 100*time.Second, models.StatusOpen),
		race(2, "r2", 700*time.Second, models.StatusOpen),
	)
	require.NoError(t, s.Evaluate(s.ctx))
	require.Len(t, s.Assignments(), 2)

	s.Stop("completed")
	require.Empty(t, s.Assignments())
}
