package automa

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus-compatible metrics for a running
// GraphAutoma, namespaced "automa_":
//
//   - inflight_workers (gauge): workers currently executing, labeled automa_id.
//   - worker_latency_ms (histogram): worker duration, labeled automa_id, worker_key, status.
//   - interactions_pending (gauge): unresolved interact_with_human calls, labeled automa_id.
//   - ferries_total (counter): ferry_to invocations, labeled automa_id, target.
//   - topology_mutations_total (counter): labeled automa_id, kind; registered,
//     but no code path in this package increments it.
//
//	registry := prometheus.NewRegistry()
//	metrics := automa.NewPrometheusMetrics(registry)
//	g, err := automa.New("pipeline", automa.WithMetrics(metrics))
type PrometheusMetrics struct {
	mu sync.RWMutex

	inflightWorkers  *prometheus.GaugeVec
	workerLatency    *prometheus.HistogramVec
	interactionsPend *prometheus.GaugeVec
	ferries          *prometheus.CounterVec
	topologyMutation *prometheus.CounterVec
}

// NewPrometheusMetrics registers automa_* collectors on registry.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(registry)
	return &PrometheusMetrics{
		inflightWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "automa_inflight_workers",
			Help: "Number of workers currently executing.",
		}, []string{"automa_id"}),
		workerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "automa_worker_latency_ms",
			Help:    "Worker execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"automa_id", "worker_key", "status"}),
		interactionsPend: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "automa_interactions_pending",
			Help: "Number of unresolved interact_with_human calls.",
		}, []string{"automa_id"}),
		ferries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "automa_ferries_total",
			Help: "Cumulative ferry_to invocations.",
		}, []string{"automa_id", "target"}),
		topologyMutation: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "automa_topology_mutations_total",
			Help: "Cumulative add_worker/remove_worker/add_dependency calls.",
		}, []string{"automa_id", "kind"}),
	}
}

func (m *PrometheusMetrics) workerStarted(automaID string) {
	m.inflightWorkers.WithLabelValues(automaID).Inc()
}

func (m *PrometheusMetrics) workerFinished(automaID, workerKey string, d time.Duration, err error) {
	m.inflightWorkers.WithLabelValues(automaID).Dec()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.workerLatency.WithLabelValues(automaID, workerKey, status).Observe(float64(d.Milliseconds()))
}

func (m *PrometheusMetrics) setInteractionsPending(automaID string, n int) {
	m.interactionsPend.WithLabelValues(automaID).Set(float64(n))
}

func (m *PrometheusMetrics) ferryRecorded(automaID, target string) {
	m.ferries.WithLabelValues(automaID, target).Inc()
}

func (m *PrometheusMetrics) topologyMutationRecorded(automaID, kind string) {
	m.topologyMutation.WithLabelValues(automaID, kind).Inc()
}
