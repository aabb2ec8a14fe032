package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ingestion runs. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	// Records handed to a run by kind and outcome
	Records *prometheus.CounterVec

	// Registry outcomes by entity and outcome (created, merged, ambiguous)
	Entities *prometheus.CounterVec

	// Upserts issued to the graph by target and outcome
	Upserts *prometheus.CounterVec

	// Upsert latency by target
	UpsertLatency *prometheus.HistogramVec

	// Pending ids in the crawl frontier after the last save
	FrontierPending prometheus.Gauge

	// Whole-batch latency by source kind
	BatchLatency *prometheus.HistogramVec
}

// New registers the ingestion metrics against reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uhnw_ingest_records_total",
			Help: "Total records processed by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "ok", "skipped"

		Entities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uhnw_registry_entities_total",
			Help: "Total registry resolutions by entity and outcome",
		}, []string{"entity", "outcome"}),

		Upserts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uhnw_graph_upserts_total",
			Help: "Total graph upserts by target and outcome",
		}, []string{"target", "outcome"}),

		UpsertLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uhnw_graph_upsert_duration_seconds",
			Help:    "Duration of single graph upserts by target",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"target"}),

		FrontierPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uhnw_frontier_pending_ids",
			Help: "Number of ids awaiting expansion in the crawl frontier",
		}),

		BatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uhnw_ingest_batch_duration_seconds",
			Help:    "Duration of processing one source batch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source_kind"}),
	}
}

// IncRecord records one processed record.
func (m *Metrics) IncRecord(kind, outcome string) {
	if m != nil {
		m.Records.WithLabelValues(kind, outcome).Inc()
	}
}

// AddEntities adds n registry outcomes.
func (m *Metrics) AddEntities(entity, outcome string, n int) {
	if m != nil && n > 0 {
		m.Entities.WithLabelValues(entity, outcome).Add(float64(n))
	}
}

// ObserveUpsert records one upsert and its latency.
func (m *Metrics) ObserveUpsert(target string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Upserts.WithLabelValues(target, outcome).Inc()
	m.UpsertLatency.WithLabelValues(target).Observe(d.Seconds())
}

// SetFrontierPending records the size of the pending frontier.
func (m *Metrics) SetFrontierPending(n int) {
	if m != nil {
		m.FrontierPending.Set(float64(n))
	}
}

// ObserveBatch records the duration of one batch.
func (m *Metrics) ObserveBatch(sourceKind string, d time.Duration) {
	if m != nil {
		m.BatchLatency.WithLabelValues(sourceKind).Observe(d.Seconds())
	}
}
