// Package scheduler assigns each active race a polling timer whose interval
// tightens as the advertised start approaches, re-evaluates every assignment
// on a fixed period, and retires races once a terminal status is observed.
// System-wide single execution is enforced by the persisted lock in lock.go.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
	"github.com/padraicbc/raceflow/ingest"
	"github.com/padraicbc/raceflow/metrics"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/resilience"
	"github.com/padraicbc/raceflow/store"
)

// assignment is the in-memory record of one race's polling timer. At most one
// exists per race id; the timer handle is owned exclusively by the Scheduler.
type assignment struct {
	raceID        int64
	externalID    string
	interval      time.Duration
	timer         *time.Timer
	ticks         int
	lastEvaluated time.Time
	cancelled     bool
}

// RaceSource is the slice of the persistence gateway the scheduler queries.
type RaceSource interface {
	ActiveRaces(ctx context.Context, now time.Time, lookahead time.Duration, keepIDs []int64) ([]models.Race, error)
}

// Poller executes one ingestion tick for a race.
type Poller interface {
	PollRace(ctx context.Context, externalID string) (models.RaceStatus, error)
	Breakers() []resilience.Snapshot
}

// Scheduler owns the assignment map and the periodic evaluate/heartbeat
// loops. Timer callbacks run concurrently; the map is the only shared mutable
// state and is guarded by mu.
type Scheduler struct {
	cfg    *config.Config
	races  RaceSource
	poller Poller
	locker *Locker
	tiers  Tiers
	cron   *cron.Cron
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	exec   *Execution

	mu           sync.Mutex
	assignments  map[int64]*assignment
	ticksTotal   int
	tickFailures int
	lastEvaluate time.Time
}

// New creates a Scheduler. Start must be called to acquire the lock and begin
// polling.
func New(cfg *config.Config, st *store.Store, pipeline *ingest.Pipeline, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		races:  st,
		poller: pipeline,
		locker: NewLocker(st, cfg.LockStaleAfter, log),
		tiers:  Tiers{Fast: cfg.PollFast, Medium: cfg.PollMedium, Slow: cfg.PollSlow},
		cron:   cron.New(),
		log:    log.Named("scheduler"),

		assignments: make(map[int64]*assignment),
	}
}

// Start acquires the execution lock, runs one evaluation immediately, then
// schedules the evaluate and heartbeat loops. A lock collision is returned as
// ErrAlreadyRunning; the caller must exit without further work.
func (s *Scheduler) Start(ctx context.Context) error {
	// Tasks are registered before the lock is taken: no step after Acquire
	// can fail, so the lock row is only ever released through Stop.
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.EvaluateEvery), s.evaluateTask); err != nil {
		return fmt.Errorf("register evaluate task: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.HeartbeatEvery), s.heartbeatTask); err != nil {
		return fmt.Errorf("register heartbeat task: %w", err)
	}

	exec, err := s.locker.Acquire(ctx)
	if err != nil {
		return err
	}
	s.exec = exec
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.Evaluate(s.ctx); err != nil {
		s.log.Error("initial evaluation failed", zap.Error(err))
	}
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.Duration("evaluate_every", s.cfg.EvaluateEvery),
		zap.Duration("heartbeat_every", s.cfg.HeartbeatEvery))
	return nil
}

// Stop cancels every outstanding timer, stops the periodic loops and releases
// the lock. Safe to call once after a successful Start.
func (s *Scheduler) Stop(finalStatus string) {
	s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	for id, a := range s.assignments {
		a.cancelled = true
		a.timer.Stop()
		delete(s.assignments, id)
	}
	s.mu.Unlock()
	metrics.ActiveAssignments.Set(0)

	if s.exec != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(ctx, s.exec, finalStatus); err != nil {
			s.log.Error("lock release failed", zap.Error(err))
		}
	}
	s.log.Info("scheduler stopped", zap.String("final_status", finalStatus))
}

// Evaluate reconciles the assignment map against the persisted race set:
// races inside the lookahead window gain assignments, tier changes rearm
// timers, and terminal races are retired.
func (s *Scheduler) Evaluate(ctx context.Context) error {
	now := time.Now()

	s.mu.Lock()
	keep := make([]int64, 0, len(s.assignments))
	for id := range s.assignments {
		keep = append(keep, id)
	}
	s.mu.Unlock()

	races, err := s.races.ActiveRaces(ctx, now, s.cfg.Lookahead, keep)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	seen := make(map[int64]bool, len(races))
	for _, race := range races {
		seen[race.RaceID] = true
		if race.Status.Terminal() {
			s.retire(race.RaceID, string(race.Status))
			continue
		}
		interval := s.tiers.IntervalFor(race.AdvertisedStart.Sub(now))
		s.assign(race, interval, now)
	}

	// Assignments for races that vanished from every query window. The query
	// always includes currently assigned ids, so a missing row means the race
	// was removed externally; drop the timer rather than poll forever.
	s.mu.Lock()
	var gone []int64
	for id := range s.assignments {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	s.mu.Unlock()
	for _, id := range gone {
		s.retire(id, "disappeared")
	}

	s.mu.Lock()
	s.lastEvaluate = now
	active := len(s.assignments)
	s.mu.Unlock()
	metrics.ActiveAssignments.Set(float64(active))

	s.log.Debug("evaluation complete",
		zap.Int("races", len(races)),
		zap.Int("assignments", active))
	return nil
}

// assign creates or rearms the assignment for one race.
func (s *Scheduler) assign(race models.Race, interval time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[race.RaceID]
	if !ok {
		a = &assignment{
			raceID:        race.RaceID,
			externalID:    race.ExternalID,
			interval:      interval,
			lastEvaluated: now,
		}
		raceID := race.RaceID
		a.timer = time.AfterFunc(interval, func() { s.tick(raceID) })
		s.assignments[race.RaceID] = a
		s.log.Info("race assigned",
			zap.String("race", race.ExternalID),
			zap.Duration("interval", interval),
			zap.Time("advertised_start", race.AdvertisedStart))
		return
	}

	a.lastEvaluated = now
	if a.interval == interval {
		return
	}

	// Cancel-then-rearm. If Stop returns false the timer already fired and
	// the in-flight tick will rearm itself with the updated interval.
	old := a.interval
	a.interval = interval
	if a.timer.Stop() {
		raceID := race.RaceID
		a.timer = time.AfterFunc(interval, func() { s.tick(raceID) })
	}
	s.log.Info("race interval changed",
		zap.String("race", race.ExternalID),
		zap.Duration("from", old),
		zap.Duration("to", interval))
}

// tick polls one race and rearms its timer. A failed tick is logged and
// contained; it never touches any other race's timer.
func (s *Scheduler) tick(raceID int64) {
	s.mu.Lock()
	a, ok := s.assignments[raceID]
	if !ok || a.cancelled {
		s.mu.Unlock()
		return
	}
	externalID := a.externalID
	a.ticks++
	s.ticksTotal++
	s.mu.Unlock()

	metrics.TicksTotal.Inc()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ProviderTimeout+10*time.Second)
	defer cancel()

	status, err := s.poller.PollRace(ctx, externalID)
	if err != nil {
		metrics.TickFailures.Inc()
		s.mu.Lock()
		s.tickFailures++
		s.mu.Unlock()
		s.log.Warn("tick failed", zap.String("race", externalID), zap.Error(err))
	} else if status.Terminal() {
		s.retire(raceID, string(status))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok = s.assignments[raceID]
	if !ok || a.cancelled {
		return
	}
	id := raceID
	a.timer = time.AfterFunc(a.interval, func() { s.tick(id) })
}

// retire cancels a race's timer and removes its assignment.
func (s *Scheduler) retire(raceID int64, reason string) {
	s.mu.Lock()
	a, ok := s.assignments[raceID]
	if ok {
		a.cancelled = true
		a.timer.Stop()
		delete(s.assignments, raceID)
	}
	s.mu.Unlock()
	if ok {
		metrics.ActiveAssignments.Dec()
		s.log.Info("race retired",
			zap.String("race", a.externalID),
			zap.String("reason", reason),
			zap.Int("ticks_executed", a.ticks))
	}
}

func (s *Scheduler) evaluateTask() {
	if err := s.Evaluate(s.ctx); err != nil {
		s.log.Error("evaluation failed", zap.Error(err))
	}
}

func (s *Scheduler) heartbeatTask() {
	for _, snap := range s.poller.Breakers() {
		open := 0.0
		if snap.State == resilience.StateOpen {
			open = 1
		}
		metrics.BreakerOpen.WithLabelValues(snap.Name).Set(open)
	}

	if err := s.locker.Heartbeat(s.ctx, s.exec, s.Progress()); err != nil {
		s.log.Error("heartbeat failed", zap.Error(err))
		return
	}
	metrics.Heartbeats.Inc()
}

// Progress is the blob written into the lock row on every heartbeat and
// served by the ops API.
type Progress struct {
	ExecutionID       string    `json:"executionID"`
	ActiveAssignments int       `json:"activeAssignments"`
	TicksTotal        int       `json:"ticksTotal"`
	TickFailures      int       `json:"tickFailures"`
	LastEvaluateAt    time.Time `json:"lastEvaluateAt"`
}

// Progress returns a snapshot of the scheduler's counters.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		ExecutionID:       s.exec.ID,
		ActiveAssignments: len(s.assignments),
		TicksTotal:        s.ticksTotal,
		TickFailures:      s.tickFailures,
		LastEvaluateAt:    s.lastEvaluate,
	}
}

// AssignmentView is the read-only shape of one assignment for the ops API.
type AssignmentView struct {
	RaceID        int64         `json:"raceID"`
	ExternalID    string        `json:"externalID"`
	Interval      time.Duration `json:"interval"`
	Ticks         int           `json:"ticks"`
	LastEvaluated time.Time     `json:"lastEvaluated"`
}

// Assignments returns the current assignment set sorted by race id.
func (s *Scheduler) Assignments() []AssignmentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]AssignmentView, 0, len(s.assignments))
	for _, a := range s.assignments {
		views = append(views, AssignmentView{
			RaceID:        a.raceID,
			ExternalID:    a.externalID,
			Interval:      a.interval,
			Ticks:         a.ticks,
			LastEvaluated: a.lastEvaluated,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].RaceID < views[j].RaceID })
	return views
}
