package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_observations_total",
			Help: "Plate observations by gate outcome",
		},
		[]string{"source", "outcome"}, // accepted, suppressed, rejected, failed
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_alerts_total",
			Help: "Watchlist alerts raised",
		},
		[]string{"alert_type"},
	)

	RecordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lpr_record_duration_seconds",
			Help:    "Time spent persisting an accepted observation",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	DedupEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lpr_dedup_entries",
			Help: "Plates tracked by the cooldown gate",
		},
		[]string{"source"},
	)

	EventsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_events_deleted_total",
			Help: "Detection events removed",
		},
		[]string{"policy"}, // single, plate, age, confidence, all
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lpr_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

func RecordObservation(source, outcome string) {
	ObservationsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
