package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type serverMetrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	evaluations       *prometheus.CounterVec
	evaluationSeconds prometheus.Histogram
	rejected          prometheus.Counter
	activeWorkers     prometheus.Gauge
}

func newServerMetrics() *serverMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &serverMetrics{
		registry: reg,
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evald_requests_total",
				Help: "Total number of requests received, by request type",
			},
			[]string{"type"},
		),
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evald_evaluations_total",
				Help: "Total number of evaluations processed, by outcome",
			},
			[]string{"outcome"},
		),
		evaluationSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "evald_evaluation_duration_seconds",
				Help:    "Duration of evaluation processing in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		rejected: f.NewCounter(
			prometheus.CounterOpts{
				Name: "evald_rejected_connections_total",
				Help: "Connections closed because every worker was busy",
			},
		),
		activeWorkers: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "evald_active_workers",
				Help: "Number of connections currently being handled",
			},
		),
	}
}

func (m *serverMetrics) observeEvaluation(success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.evaluationSeconds.Observe(elapsed.Seconds())
}

// serveMetrics exposes the registry on addr until ctx is done.
func (m *serverMetrics) serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", zap.Error(err))
	}
}
