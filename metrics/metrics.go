// Package metrics holds the Prometheus metrics of the backend and exposes them over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registration outcomes
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

var durationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type Metrics struct {
	Registrations        *prometheus.CounterVec
	RegistrationConflict *prometheus.CounterVec
	RegistrationDuration prometheus.Histogram
	CompensationFailures prometheus.Counter
	ProxyRequests        *prometheus.CounterVec
	ProxyDuration        prometheus.Histogram
	AssetUploads         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with a new registry, which also holds the Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(registry, registry)
}

func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beetamin_registrations_total",
			Help: "Total number of identity registrations by role and outcome",
		}, []string{"role", "outcome"}),
		RegistrationConflict: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beetamin_registration_conflicts_total",
			Help: "Total number of registration uniqueness conflicts by field",
		}, []string{"field"}),
		RegistrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beetamin_registration_duration_seconds",
			Help:    "Duration of identity registrations",
			Buckets: durationBuckets,
		}),
		CompensationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "beetamin_registration_compensation_failures_total",
			Help: "Total number of FHIR resources left orphaned because the compensating delete failed",
		}),
		ProxyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beetamin_proxy_requests_total",
			Help: "Total number of proxied requests by method and status code",
		}, []string{"method", "code"}),
		ProxyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beetamin_proxy_duration_seconds",
			Help:    "Duration of proxied requests",
			Buckets: durationBuckets,
		}),
		AssetUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beetamin_asset_uploads_total",
			Help: "Total number of asset uploads by outcome",
		}, []string{"outcome"}),
		gatherer: gatherer,
	}
}

func (m *Metrics) ObserveRegistration(role string, outcome string, start time.Time) {
	m.Registrations.WithLabelValues(role, outcome).Inc()
	m.RegistrationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementConflict(field string) {
	m.RegistrationConflict.WithLabelValues(field).Inc()
}

func (m *Metrics) IncrementCompensationFailure() {
	m.CompensationFailures.Inc()
}

func (m *Metrics) ObserveProxyRequest(method string, statusCode int, start time.Time) {
	m.ProxyRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	m.ProxyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementAssetUpload(outcome string) {
	m.AssetUploads.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
