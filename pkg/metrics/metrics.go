// Package metrics defines the Prometheus collectors shared by the extract,
// index and chat commands, and serves them on /metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsearch"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Metrics holds every collector the pipeline records into.
type Metrics struct {
	Registry *prometheus.Registry

	Blobs         *prometheus.CounterVec   // extract: outcome
	Documents     *prometheus.CounterVec   // index: outcome
	Chunks        *prometheus.CounterVec   // index: outcome
	UploadBatches *prometheus.CounterVec   // index: outcome
	RunDuration   *prometheus.HistogramVec // stage
	EmbedDuration *prometheus.HistogramVec // backend
	EmbedCalls    *prometheus.CounterVec   // backend, outcome
	Searches      *prometheus.CounterVec   // outcome
	SearchLatency prometheus.Histogram
	SQLRequests   *prometheus.CounterVec // outcome
	IndexRuns     *prometheus.CounterVec // outcome, from index completion events
	BreakerState  *prometheus.GaugeVec   // service
}

// New registers all collectors, plus Go runtime and process collectors, on
// a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Blobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extract_blobs_total",
			Help: "Blobs handled by the extraction stage",
		}, []string{"outcome"}),
		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_documents_total",
			Help: "Documents handled by the indexer",
		}, []string{"outcome"}),
		Chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_chunks_total",
			Help: "Chunks embedded or dropped by the indexer",
		}, []string{"outcome"}),
		UploadBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_upload_batches_total",
			Help: "Per-document upsert batches sent to the vector index",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help:    "Wall time of a full pipeline stage run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"stage"}),
		EmbedDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "embed_duration_seconds",
			Help:    "Latency of single embedding calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		EmbedCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "embed_calls_total",
			Help: "Embedding calls by backend and outcome",
		}, []string{"backend", "outcome"}),
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_requests_total",
			Help: "Semantic search requests",
		}, []string{"outcome"}),
		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_duration_seconds",
			Help:    "End-to-end semantic search latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sql_requests_total",
			Help: "Natural-language to SQL generation requests",
		}, []string{"outcome"}),
		IndexRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_runs_observed_total",
			Help: "Index rebuild completion events received",
		}, []string{"outcome"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "breaker_state",
			Help: "Circuit breaker state per service (0 closed, 1 open, 2 half-open)",
		}, []string{"service"}),
	}
}

// ObserveSince records the seconds elapsed since start.
func ObserveSince(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Serve runs a /metrics server on port until ctx is done.
func (m *Metrics) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeAsync starts Serve in a goroutine. A port of 0 disables it.
func (m *Metrics) ServeAsync(ctx context.Context, port int, logger *slog.Logger) {
	if port <= 0 {
		return
	}
	go func() {
		if err := m.Serve(ctx, port); err != nil {
			logger.Error("metrics server failed", "port", port, "error", err)
		}
	}()
	logger.Info("metrics server started", "port", port)
}
