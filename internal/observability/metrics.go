package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sentinel"

// Metrics holds the Prometheus counters, histograms, and gauges for the engine.
type Metrics struct {
	ReadingsConsumed prometheus.Counter
	ReadingsRejected *prometheus.CounterVec // labels: reason={parse,validate}
	EngineRunning    prometheus.Gauge
	BatchSize        prometheus.Histogram

	// Evaluation cycle metrics.
	Cycles             prometheus.Counter
	CycleDuration      prometheus.Histogram
	StreamsScored      prometheus.Counter
	ModelVerdicts      *prometheus.CounterVec // labels: model, outcome={anomalous,normal,abstained}
	ConfirmedAnomalies *prometheus.CounterVec // labels: source

	// Alert lifecycle metrics.
	AlertTransitions *prometheus.CounterVec // labels: state={OPEN,ESCALATED,RESOLVED}
	ActiveAlerts     prometheus.Gauge
	JournalErrors    *prometheus.CounterVec // labels: op={save,get,prune,restore}

	// Notification metrics.
	Notifications        *prometheus.CounterVec // labels: sink, outcome={success,error}
	NotificationsDropped prometheus.Counter

	// Zone localisation metrics.
	ZoneLookups       *prometheus.CounterVec // labels: method={centroid,mapbox}, outcome={success,error,empty}
	ZoneCache         *prometheus.CounterVec // labels: result={hit,miss}
	MapboxAPIDuration prometheus.Histogram
	MapboxEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_consumed_total",
			Help:      "Total messages read from the readings topic.",
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Readings rejected at the ingestion boundary by reason.",
		}, []string{"reason"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_running",
			Help:      "1 when the evaluation loop is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_size",
			Help:      "Number of messages per batch fetched from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_cycles_total",
			Help:      "Completed evaluation cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_cycle_duration_seconds",
			Help:      "Duration of a complete score-vote-aggregate-lifecycle cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		StreamsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_scored_total",
			Help:      "Feature vectors scored by the model bank.",
		}),
		ModelVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_verdicts_total",
			Help:      "Per-model verdicts by outcome.",
		}, []string{"model", "outcome"}),
		ConfirmedAnomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmed_anomalies_total",
			Help:      "Consensus-confirmed anomalies by source type.",
		}, []string{"source"}),
		AlertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert lifecycle transitions by resulting state.",
		}, []string{"state"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts currently OPEN or ESCALATED.",
		}),
		JournalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_journal_errors_total",
			Help:      "Alert journal failures by operation.",
		}, []string{"op"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Lifecycle events delivered per sink by outcome.",
		}, []string{"sink", "outcome"}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Lifecycle events dropped because the outbound queue was full.",
		}),
		ZoneLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_lookups_total",
			Help:      "Coordinate-to-zone lookups by method and outcome.",
		}, []string{"method", "outcome"}),
		ZoneCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_cache_total",
			Help:      "Zone lookup cache results.",
		}, []string{"result"}),
		MapboxAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mapbox_api_duration_seconds",
			Help:      "Mapbox reverse-geocoding request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		MapboxEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mapbox_enabled",
			Help:      "1 when Mapbox zone resolution is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReadingsConsumed,
		m.ReadingsRejected,
		m.EngineRunning,
		m.BatchSize,
		m.Cycles,
		m.CycleDuration,
		m.StreamsScored,
		m.ModelVerdicts,
		m.ConfirmedAnomalies,
		m.AlertTransitions,
		m.ActiveAlerts,
		m.JournalErrors,
		m.Notifications,
		m.NotificationsDropped,
		m.ZoneLookups,
		m.ZoneCache,
		m.MapboxAPIDuration,
		m.MapboxEnabled,
	}
}
