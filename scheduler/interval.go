package scheduler

import "time"

// Tiers maps time-to-start onto a polling interval. A race inside five
// minutes of its start, or one that has already started but is not yet
// terminal, polls at the fast tier; polling never stops at t=0.
type Tiers struct {
	Fast   time.Duration // timeToStart <= 5m, including post-start
	Medium time.Duration // 5m < timeToStart <= 15m
	Slow   time.Duration // timeToStart > 15m
}

// Tier boundaries. Comparisons are inclusive at the lower tier, so exactly
// 300s polls fast and exactly 900s polls medium.
const (
	fastBoundary   = 5 * time.Minute
	mediumBoundary = 15 * time.Minute
)

// IntervalFor returns the polling interval for a time-to-start. Total over
// all durations: negative values mean the race has started and keep the fast
// tier until a terminal status retires the race.
func (t Tiers) IntervalFor(timeToStart time.Duration) time.Duration {
	switch {
	case timeToStart <= fastBoundary:
		return t.Fast
	case timeToStart <= mediumBoundary:
		return t.Medium
	default:
		return t.Slow
	}
}
