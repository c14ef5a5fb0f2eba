// Package observability holds shared platform metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stepsPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "walkwins",
		Subsystem: "ledger",
		Name:      "last_steps_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent step commit persisted to Postgres.",
	})
	eventPublishGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "walkwins",
		Subsystem: "ledger",
		Name:      "last_event_published_timestamp_seconds",
		Help:      "Unix timestamp of the most recent step event published to Kafka.",
	})
)

func init() {
	prometheus.MustRegister(stepsPersistGauge, eventPublishGauge)
}

// RecordStepsPersisted updates the persistence watermark gauge.
func RecordStepsPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	stepsPersistGauge.Set(float64(ts.Unix()))
}

// RecordEventPublished updates the publish watermark gauge.
func RecordEventPublished(ts time.Time) {
	if ts.IsZero() {
		return
	}
	eventPublishGauge.Set(float64(ts.Unix()))
}
