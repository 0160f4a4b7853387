// Package metrics exposes the ingest worker's Prometheus instrumentation,
// mirroring the data-storage service's NewMetricsWithRegistry shape: one
// struct of label-scoped counters/histograms built against a caller-owned
// registry so tests never fight global registration.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Packet pipeline status label values (mirrors pkg/worker.Status).
const (
	StatusOk        = "ok"
	StatusRejected  = "rejected"
	StatusDuplicate = "duplicate"
	StatusDeferred  = "deferred"
	StatusPositErr  = "positerror"
)

// Cache/SQL resolve-result label values.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultStored = "stored"
	ResultFailed = "failed"
)

// Metrics holds every counter/histogram the ingest worker exports.
type Metrics struct {
	PacketsTotal      *prometheus.CounterVec
	RejectsTotal      *prometheus.CounterVec
	ResolveTotal      *prometheus.CounterVec
	ResolveDuration   *prometheus.HistogramVec
	InjectDuration    *prometheus.HistogramVec
	BrokerErrorsTotal *prometheus.CounterVec
	LocatorsSeenGauge prometheus.Gauge
}

// NewMetricsWithRegistry constructs and registers a Metrics struct against
// registry, namespacing every metric name under namespace. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate-registration panics;
// cmd/ingestd likewise builds its own prometheus.NewRegistry() and serves
// it through promhttp.HandlerFor.
func NewMetricsWithRegistry(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PacketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Packet lines processed, by APRS packet type and terminal pipeline status.",
		}, []string{"packet_type", "status"}),

		RejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejects_total",
			Help:      "Packet lines rejected or deferred, by reason.",
		}, []string{"reason"}),

		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Two-tier cache/SQL ID resolutions, by namespace and result.",
		}, []string{"namespace", "result"}),

		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Latency of a single cache/SQL ID resolution, by namespace.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"namespace"}),

		InjectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inject_duration_seconds",
			Help:      "Latency of the inject sequence for a packet, by packet type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"packet_type"}),

		BrokerErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_errors_total",
			Help:      "Broker receive/publish/ack errors, by operation.",
		}, []string{"operation"}),

		LocatorsSeenGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locators_seen",
			Help:      "Grid squares witnessed since the last locator flush.",
		}),
	}

	registry.MustRegister(
		m.PacketsTotal,
		m.RejectsTotal,
		m.ResolveTotal,
		m.ResolveDuration,
		m.InjectDuration,
		m.BrokerErrorsTotal,
		m.LocatorsSeenGauge,
	)

	return m
}
