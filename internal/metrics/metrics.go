package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeNoMatch = "no_match"
	OutcomeFailure = "failure"
)

type Metrics struct {
	Resolutions    *prometheus.CounterVec
	APIErrors      *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
	InFlight       prometheus.Gauge
	ActiveWorkers  prometheus.Gauge
	Stops          *prometheus.GaugeVec
	PersistErrors  prometheus.Counter
	CacheLookups   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Resolutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_resolutions_total",
			Help: "Total number of address resolutions by outcome.",
		}, []string{"outcome"}),
		APIErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_provider_api_errors_total",
			Help: "Total number of errors received from the place-search provider API.",
		}, []string{"provider"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hermes_provider_request_duration_seconds",
			Help:    "Duration of requests to the place-search provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hermes_resolutions_in_flight",
			Help: "Current number of capture resolutions waiting on OCR or the provider.",
		}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hermes_import_active_workers",
			Help: "Current number of active workers resolving imported addresses.",
		}),
		Stops: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "hermes_stops",
			Help: "Current number of stops by status.",
		}, []string{"status"}),
		PersistErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hermes_persistence_errors_total",
			Help: "Total number of failed writes to durable storage.",
		}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_resolution_cache_lookups_total",
			Help: "Total number of resolution cache lookups by result.",
		}, []string{"result"}),
	}
}
