package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var statuses = []string{"healthy", "degraded", "unhealthy"}

// Metrics wraps Prometheus collectors for phenotype-health.
type Metrics struct {
	registry             *prometheus.Registry
	evaluationsTotal     *prometheus.CounterVec
	probeDurationSeconds *prometheus.HistogramVec
	probeFailuresTotal   *prometheus.CounterVec
	rateLimitHitsTotal   *prometheus.CounterVec
	phenotypeCount       prometheus.Gauge
	status               *prometheus.GaugeVec
	alertsTotal          *prometheus.CounterVec
	lastEvaluationGauge  prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phenotype_health_evaluations_total",
			Help: "Total health evaluations by resulting status.",
		}, []string{"status"}),
		probeDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phenotype_health_probe_duration_seconds",
			Help:    "Duration of dependency probes in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"probe"}),
		probeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phenotype_health_probe_failures_total",
			Help: "Total failed dependency probes.",
		}, []string{"probe"}),
		rateLimitHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phenotype_health_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter.",
		}, []string{"route"}),
		phenotypeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phenotype_health_phenotypes",
			Help: "Phenotype records counted by the last evaluation.",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "phenotype_health_status",
			Help: "1 for the status of the last evaluation, 0 otherwise.",
		}, []string{"status"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phenotype_health_alerts_total",
			Help: "Total alerts emitted by component and status.",
		}, []string{"component", "status"}),
		lastEvaluationGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phenotype_health_last_evaluation_timestamp",
			Help: "Unix timestamp of the last completed evaluation.",
		}),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.probeDurationSeconds,
		m.probeFailuresTotal,
		m.rateLimitHitsTotal,
		m.phenotypeCount,
		m.status,
		m.alertsTotal,
		m.lastEvaluationGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProbe counts a failed check.
func (m *Metrics) ObserveProbe(name string, healthy bool) {
	if m == nil || healthy {
		return
	}
	m.probeFailuresTotal.WithLabelValues(name).Inc()
}

// ObserveProbeLatency records how long a check took. Only measured runs
// are recorded so failures do not drag the distribution towards zero.
func (m *Metrics) ObserveProbeLatency(name string, latency time.Duration) {
	if m == nil {
		return
	}
	m.probeDurationSeconds.WithLabelValues(name).Observe(latency.Seconds())
}

// ObserveEvaluation records the outcome of one evaluation. A negative
// phenotypeCount leaves the catalog gauge at its last known value.
func (m *Metrics) ObserveEvaluation(status string, phenotypeCount int64) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(status).Inc()
	if phenotypeCount >= 0 {
		m.phenotypeCount.Set(float64(phenotypeCount))
	}
	for _, s := range statuses {
		value := 0.0
		if s == status {
			value = 1
		}
		m.status.WithLabelValues(s).Set(value)
	}
	m.lastEvaluationGauge.Set(float64(time.Now().Unix()))
}

// IncRateLimitHits increments the rejected request counter for route.
func (m *Metrics) IncRateLimitHits(route string) {
	if m == nil {
		return
	}
	m.rateLimitHitsTotal.WithLabelValues(route).Inc()
}

// IncAlertsTotal increments the alerts counter for the given component/status.
func (m *Metrics) IncAlertsTotal(component string, status string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(component, status).Inc()
}
