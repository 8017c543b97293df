package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the experiment pipeline.
//
// Tracked:
//   - embedding and chat request latency/outcomes per model
//   - chunks written per namespace
//   - retrieval latency per reranker policy
//   - sweep cell outcomes
type Metrics struct {
	// EmbeddingRequests counts embedding API calls.
	// Labels: model, status (success|error)
	EmbeddingRequests *prometheus.CounterVec

	// EmbeddingDuration measures embedding call latency in seconds.
	// Labels: model
	EmbeddingDuration *prometheus.HistogramVec

	// ChatRequests counts chat completion calls.
	// Labels: provider, model, status (success|error)
	ChatRequests *prometheus.CounterVec

	// ChatDuration measures chat completion latency in seconds.
	// Labels: provider, model
	ChatDuration *prometheus.HistogramVec

	// ChunksIngested counts chunks upserted into the vector store.
	// Labels: namespace
	ChunksIngested *prometheus.CounterVec

	// RetrievalDuration measures end-to-end retrieval latency in seconds.
	// Labels: reranker
	RetrievalDuration *prometheus.HistogramVec

	// SweepCells counts sweep cell outcomes.
	// Labels: status (scored|failed|skipped)
	SweepCells *prometheus.CounterVec
}

// NewMetrics creates and registers pipeline metrics on a new registry.
// The registry is returned so the CLI can expose it or dump it on exit.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragsweep",
			Name:      "embedding_requests_total",
			Help:      "Embedding API calls by model and status.",
		}, []string{"model", "status"}),

		EmbeddingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragsweep",
			Name:      "embedding_duration_seconds",
			Help:      "Embedding API call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"model"}),

		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragsweep",
			Name:      "chat_requests_total",
			Help:      "Chat completion calls by provider, model and status.",
		}, []string{"provider", "model", "status"}),

		ChatDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragsweep",
			Name:      "chat_duration_seconds",
			Help:      "Chat completion latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		ChunksIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragsweep",
			Name:      "chunks_ingested_total",
			Help:      "Chunks upserted into the vector store by namespace.",
		}, []string{"namespace"}),

		RetrievalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragsweep",
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency including reranking.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"reranker"}),

		SweepCells: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragsweep",
			Name:      "sweep_cells_total",
			Help:      "Sweep cell outcomes.",
		}, []string{"status"}),
	}

	return m, reg
}

// ObserveEmbedding records one embedding API call.
func (m *Metrics) ObserveEmbedding(model string, d time.Duration, err error) {
	m.EmbeddingRequests.WithLabelValues(model, statusLabel(err)).Inc()
	m.EmbeddingDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveChat records one chat completion call.
func (m *Metrics) ObserveChat(provider, model string, d time.Duration, err error) {
	m.ChatRequests.WithLabelValues(provider, model, statusLabel(err)).Inc()
	m.ChatDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
