// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tryoffset/registry/internal/domain"
)

var (
	initOnce sync.Once

	recordsCreatedCounter   prometheus.Counter
	recordEventsCounter     *prometheus.CounterVec
	createDuplicatesCounter prometheus.Counter
	createConflictsCounter  prometheus.Counter
	lookupDurationMetric    prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		recordsCreatedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "records_created_total",
				Help: "Total number of records inserted (first-time creates only).",
			},
		)

		recordEventsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "record_events_total",
				Help: "Total number of ledger events appended by type.",
			},
			[]string{"type"},
		)

		createDuplicatesCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "record_create_duplicates_total",
				Help: "Total number of create calls reconciled to an existing record.",
			},
		)

		createConflictsCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "record_create_conflicts_total",
				Help: "Total number of create calls rejected on a secondary unique constraint.",
			},
		)

		lookupDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "record_lookup_duration_seconds",
				Help:    "Duration of record get operations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			recordsCreatedCounter,
			recordEventsCounter,
			createDuplicatesCounter,
			createConflictsCounter,
			lookupDurationMetric,
		)

		// Ensure the vector is visible at /metrics before first increment.
		for _, eventType := range []domain.EventType{
			domain.EventCreated,
			domain.EventRetired,
		} {
			recordEventsCounter.WithLabelValues(string(eventType))
		}
	})
}

func IncRecordCreated() {
	Init()
	recordsCreatedCounter.Inc()
}

func IncRecordEvent(eventType string) {
	Init()
	recordEventsCounter.WithLabelValues(eventType).Inc()
}

func IncCreateDuplicate() {
	Init()
	createDuplicatesCounter.Inc()
}

func IncCreateConflict() {
	Init()
	createConflictsCounter.Inc()
}

func ObserveLookupDuration(d time.Duration) {
	Init()
	lookupDurationMetric.Observe(d.Seconds())
}
