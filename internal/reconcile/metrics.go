package reconcile

import "github.com/prometheus/client_golang/prometheus"

const (
	resultCommitted = "committed"
	resultNoop      = "noop"
	resultError     = "error"
)

var (
	syncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walkwins_agent",
		Subsystem: "sync",
		Name:      "attempts_total",
		Help:      "Number of reconciliation attempts grouped by outcome.",
	}, []string{"result"})

	syncsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walkwins_agent",
		Subsystem: "sync",
		Name:      "dropped_total",
		Help:      "Number of sync attempts dropped because one was already in flight.",
	})

	stepsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walkwins_agent",
		Subsystem: "sync",
		Name:      "steps_committed_total",
		Help:      "Total lifetime-step increments committed to the remote ledger.",
	})

	boostFolded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walkwins_agent",
		Subsystem: "sync",
		Name:      "boost_steps_folded_total",
		Help:      "Boosted steps folded into remote records.",
	})

	daysFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walkwins_agent",
		Subsystem: "sync",
		Name:      "days_finalized_total",
		Help:      "Number of previous-day finalization commits.",
	})
)

func init() {
	prometheus.MustRegister(syncsTotal, syncsDropped, stepsCommitted, boostFolded, daysFinalized)
}

func recordSyncResult(result string) {
	syncsTotal.WithLabelValues(result).Inc()
}

func recordSyncDropped() {
	syncsDropped.Inc()
}

func recordSyncCommitted(increment int64) {
	stepsCommitted.Add(float64(increment))
}

func recordBoostFolded(n int64) {
	boostFolded.Add(float64(n))
}

func recordDayFinalized() {
	daysFinalized.Inc()
}
