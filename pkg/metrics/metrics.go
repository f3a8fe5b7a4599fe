// Package metrics wires a tally scope into the counters and gauges the
// scheduler and its collaborators emit, grounded on the teacher's
// common/metrics.InitMetricScope call shape and the offerpool gauge-map
// idiom (incQuantity/decQuantity against GaugeMaps in
// hostmgr/offer/offerpool/pool.go).
package metrics

import "github.com/uber-go/tally"

// Metrics holds every counter/gauge the scheduler package touches during a
// round. One instance is shared across a Scheduler's lifetime.
type Metrics struct {
	Rounds          tally.Counter
	RoundErrors     tally.Counter
	RoundDuration   tally.Timer
	OffersAdded     tally.Counter
	OffersRejected  tally.Counter
	TasksAssigned   tally.Counter
	TasksFailed     tally.Counter
	TrialsPerRound  tally.Gauge
	IdleHosts       tally.Gauge
	TotalHosts      tally.Gauge
}

// New builds a Metrics struct under scope.SubScope("scheduler"), matching
// the teacher's rootScope.SubScope convention in hostmgr/main/main.go.
func New(scope tally.Scope) *Metrics {
	s := scope.SubScope("scheduler")
	return &Metrics{
		Rounds:         s.Counter("rounds"),
		RoundErrors:    s.Counter("round_errors"),
		RoundDuration:  s.Timer("round_duration"),
		OffersAdded:    s.Counter("offers_added"),
		OffersRejected: s.Counter("offers_rejected"),
		TasksAssigned:  s.Counter("tasks_assigned"),
		TasksFailed:    s.Counter("tasks_failed"),
		TrialsPerRound: s.Gauge("trials_per_round"),
		IdleHosts:      s.Gauge("idle_hosts"),
		TotalHosts:     s.Gauge("total_hosts"),
	}
}

// NewNoop returns a Metrics backed by tally's no-op scope, for tests and
// for callers that do not wire a real metrics backend.
func NewNoop() *Metrics {
	return New(tally.NoopScope)
}
