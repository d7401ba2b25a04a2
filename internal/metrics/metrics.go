// Package metrics exports the pipeline's Prometheus gauges/counters/
// histograms and serves them over HTTP, grounded on
// starsinc1708-TorrX/services/torrent-engine/internal/metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gwlsn/pipeline/internal/logging"
)

var (
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pipeline",
		Name:      "queue_depth",
		Help:      "Number of jobs currently in the pending queue.",
	})

	DeadLetterDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pipeline",
		Name:      "dead_letter_depth",
		Help:      "Number of jobs currently in the dead-letter queue.",
	})

	InProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pipeline",
		Name:      "jobs_in_progress",
		Help:      "Number of jobs currently being worked.",
	})

	EncodesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "encodes_total",
		Help:      "Total encode outcomes by result.",
	}, []string{"result"}) // success | failure | dead_letter

	EncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "encode_duration_seconds",
		Help:      "Wall-clock duration of a completed encode job.",
		Buckets:   []float64{60, 300, 600, 1800, 3600, 7200, 14400},
	})

	SizeReductionRatio = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "size_reduction_ratio",
		Help:      "input_bytes / output_bytes for completed jobs.",
		Buckets:   []float64{1, 1.5, 2, 2.5, 3, 4, 5, 10},
	})

	QualityScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "quality_score",
		Help:      "Reported encoder quality score for completed jobs, when available.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})
)

// Register attaches all pipeline metrics to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		QueueDepth,
		DeadLetterDepth,
		InProgress,
		EncodesTotal,
		EncodeDuration,
		SizeReductionRatio,
		QualityScore,
	)
}

// Serve starts the metrics HTTP endpoint and blocks until ctx is
// cancelled, the same shutdown shape the supervisor uses for every other
// background loop.
func Serve(ctx context.Context, addr string) error {
	Register(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
