package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	sentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walkwins",
		Subsystem: "notifier",
		Name:      "pushes_sent_total",
		Help:      "Number of pushes accepted by the gateway, labeled by cohort.",
	}, []string{"cohort"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walkwins",
		Subsystem: "notifier",
		Name:      "pushes_failed_total",
		Help:      "Number of pushes that failed and were parked for retry, labeled by cohort.",
	}, []string{"cohort"})

	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walkwins",
		Subsystem: "notifier",
		Name:      "pushes_skipped_total",
		Help:      "Number of pushes skipped for unregistered devices, labeled by cohort.",
	}, []string{"cohort"})

	quarantinedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walkwins",
		Subsystem: "notifier",
		Name:      "pushes_quarantined_total",
		Help:      "Number of retry entries quarantined after exhausting attempts.",
	})
)

func init() {
	prometheus.MustRegister(sentCounter, failedCounter, skippedCounter, quarantinedCounter)
}

func recordPushSent(cohort string)    { sentCounter.WithLabelValues(cohort).Inc() }
func recordPushFailed(cohort string)  { failedCounter.WithLabelValues(cohort).Inc() }
func recordPushSkipped(cohort string) { skippedCounter.WithLabelValues(cohort).Inc() }
func recordPushQuarantined()          { quarantinedCounter.Inc() }
