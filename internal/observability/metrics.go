package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the risk service.
type Metrics struct {
	// Source fan-out metrics.
	SourceFetches       *prometheus.CounterVec   // labels: domain, outcome={success,error,timeout}
	SourceFetchDuration *prometheus.HistogramVec // labels: domain

	// Snapshot metrics.
	SnapshotsProduced     prometheus.Counter
	CompositeScore        prometheus.Gauge
	DomainsUnavailable    prometheus.Gauge
	SnapshotPublishErrors prometheus.Counter
	PublisherEnabled      prometheus.Gauge

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Copilot metrics.
	ChatAnswers   *prometheus.CounterVec // labels: question_type, provenance={model,fallback}
	ModelDuration prometheus.Histogram
	ModelEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "source_fetches_total",
			Help:      "Upstream source fetches by domain and outcome.",
		}, []string{"domain", "outcome"}),
		SourceFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civic_risk",
			Name:      "source_fetch_duration_seconds",
			Help:      "Upstream source fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"domain"}),
		SnapshotsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "snapshots_produced_total",
			Help:      "Total risk snapshots computed.",
		}),
		CompositeScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_risk",
			Name:      "composite_score",
			Help:      "Composite risk score of the most recent snapshot.",
		}),
		DomainsUnavailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_risk",
			Name:      "domains_unavailable",
			Help:      "Number of domains that failed in the most recent snapshot.",
		}),
		SnapshotPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "snapshot_publish_errors_total",
			Help:      "Total failures publishing snapshots to Kafka.",
		}),
		PublisherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_risk",
			Name:      "snapshot_publisher_enabled",
			Help:      "1 when snapshots are published to Kafka, 0 otherwise.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		ChatAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_risk",
			Name:      "chat_answers_total",
			Help:      "Copilot answers by question type and provenance.",
		}, []string{"question_type", "provenance"}),
		ModelDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "civic_risk",
			Name:      "model_request_duration_seconds",
			Help:      "Language model request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ModelEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_risk",
			Name:      "model_enabled",
			Help:      "1 when a language model credential is configured, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.SourceFetches,
		m.SourceFetchDuration,
		m.SnapshotsProduced,
		m.CompositeScore,
		m.DomainsUnavailable,
		m.SnapshotPublishErrors,
		m.PublisherEnabled,
		m.CacheLookups,
		m.ChatAnswers,
		m.ModelDuration,
		m.ModelEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SourceFetches:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_risk", Name: "source_fetches_total"}, []string{"domain", "outcome"}),
		SourceFetchDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "civic_risk", Name: "source_fetch_duration_seconds"}, []string{"domain"}),
		SnapshotsProduced:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "civic_risk", Name: "snapshots_produced_total"}),
		CompositeScore:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "civic_risk", Name: "composite_score"}),
		DomainsUnavailable:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "civic_risk", Name: "domains_unavailable"}),
		SnapshotPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "civic_risk", Name: "snapshot_publish_errors_total"}),
		PublisherEnabled:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "civic_risk", Name: "snapshot_publisher_enabled"}),
		CacheLookups:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_risk", Name: "cache_lookups_total"}, []string{"result"}),
		ChatAnswers:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_risk", Name: "chat_answers_total"}, []string{"question_type", "provenance"}),
		ModelDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "civic_risk", Name: "model_request_duration_seconds"}),
		ModelEnabled:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "civic_risk", Name: "model_enabled"}),
	}
}
