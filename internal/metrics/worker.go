package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	cleanupTotal    *prometheus.CounterVec
	cleanupDuration *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	cleanupTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "blob_cleanup_total",
			Help:      "Orphaned blob cleanup attempts by status.",
		},
		[]string{"service", "status"},
	)
	cleanupDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "blob_cleanup_duration_seconds",
			Help:      "Orphaned blob cleanup duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	registry.MustRegister(cleanupTotal, cleanupDuration)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		cleanupTotal:    cleanupTotal,
		cleanupDuration: cleanupDuration,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FinishCleanup records one cleanup attempt. status is "deleted",
// "already_gone" or "error".
func (m *WorkerMetrics) FinishCleanup(status string, duration time.Duration) {
	m.cleanupTotal.WithLabelValues(m.service, status).Inc()
	m.cleanupDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}
