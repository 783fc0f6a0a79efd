// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts scheduled race polls, successful or not.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raceflow_ticks_total",
		Help: "Number of race poll ticks executed.",
	})

	// TickFailures counts poll ticks that ended in an error.
	TickFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raceflow_tick_failures_total",
		Help: "Number of race poll ticks that failed.",
	})

	// ActiveAssignments tracks how many races currently hold a timer.
	ActiveAssignments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raceflow_active_assignments",
		Help: "Races with an active polling assignment.",
	})

	// BreakerOpen is 1 while the named dependency's circuit breaker is open.
	BreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "raceflow_breaker_open",
		Help: "Whether the circuit breaker for a dependency is open.",
	}, []string{"dependency"})

	// Heartbeats counts successful lock heartbeats.
	Heartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raceflow_lock_heartbeats_total",
		Help: "Number of successful scheduler lock heartbeats.",
	})
)
