package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	passRuns       *prometheus.CounterVec // total reconciliation passes, by outcome
	passDuration   prometheus.Histogram   // time to complete a pass
	dnsOperations  *prometheus.CounterVec // create/delete operations applied
	dnsRequests    *prometheus.CounterVec // provider API requests (list/create/delete)
	statusRequests *prometheus.CounterVec // badger status-store requests
	eligibleNodes  prometheus.Gauge       // currently eligible nodes
	knownZones     prometheus.Gauge       // zones visible to the credential
	activeSpecs    prometheus.Gauge       // hostname specs after conflict resolution
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "epictetus"

	m := &Metrics{
		registry: registry,

		passRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Total number of reconciliation passes by outcome",
		}, []string{"outcome"}),

		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_pass_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		dnsOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_operations_total",
			Help:      "Total DNS record mutations applied by the engine",
		}, []string{"operation", "zone", "status"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_provider_requests_total",
			Help:      "Total requests made to the DNS provider API",
		}, []string{"operation", "zone", "status"}),

		statusRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_store_requests_total",
			Help:      "Total requests to the embedded status store",
		}, []string{"operation", "status"}),

		eligibleNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eligible_nodes",
			Help:      "Number of nodes currently eligible to receive traffic",
		}),

		knownZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_zones",
			Help:      "Number of DNS zones visible to the configured credential",
		}),

		activeSpecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_hostname_specs",
			Help:      "Number of hostname specs after conflict resolution",
		}),
	}

	if register {
		registry.MustRegister(
			m.passRuns,
			m.passDuration,
			m.dnsOperations,
			m.dnsRequests,
			m.statusRequests,
			m.eligibleNodes,
			m.knownZones,
			m.activeSpecs,
		)
	}
	return m
}

func (m *Metrics) IncPassRun(outcome string) {
	m.passRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePassDuration(d time.Duration) {
	m.passDuration.Observe(d.Seconds())
}

func (m *Metrics) IncDNSOperation(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	m.dnsOperations.WithLabelValues(operation, zone, boolToResult(success)).Inc()
}

func (m *Metrics) IncDNSRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	m.dnsRequests.WithLabelValues(operation, zone, boolToResult(success)).Inc()
}

func (m *Metrics) IncStatusRequest(operation string, success bool) {
	m.statusRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) SetEligibleNodes(n int) {
	m.eligibleNodes.Set(float64(n))
}

func (m *Metrics) SetKnownZones(n int) {
	m.knownZones.Set(float64(n))
}

func (m *Metrics) SetActiveSpecs(n int) {
	m.activeSpecs.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "list", "create", "delete", "replace":
		return true
	}
	return false
}
