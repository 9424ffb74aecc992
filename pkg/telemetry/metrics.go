package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Formulary.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec

	// Fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Environment metrics
	environmentBuilds *prometheus.CounterVec
	environmentBytes  *prometheus.GaugeVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	// System metrics
	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Run metrics
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of install runs started",
			},
			[]string{"formula"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of install runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of install run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Step metrics
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of plan steps executed",
			},
			[]string{"action", "status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of lifecycle phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),

		// Fetch metrics
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of source artifact fetches",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of source artifact fetches in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),

		// Environment metrics
		environmentBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "environment_builds_total",
				Help:      "Total number of environment builds",
			},
			[]string{"status"},
		),
		environmentBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "environment_payload_bytes",
				Help:      "Declared payload size of built environments in bytes",
			},
			[]string{"formula"},
		),

		// Error metrics
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// System metrics
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active install runs",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepsExecuted,
		m.phaseDuration,
		m.fetchesTotal,
		m.fetchDuration,
		m.environmentBuilds,
		m.environmentBytes,
		m.errorsByCode,
		m.activeRuns,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(formulaName string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(formulaName).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Step Metrics

// RecordStepExecution records the terminal status of one plan step.
func (m *Metrics) RecordStepExecution(action, status string) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(action, status).Inc()
}

// RecordPhaseDuration records how long one lifecycle phase took.
func (m *Metrics) RecordPhaseDuration(phase string, duration time.Duration) {
	if m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// Fetch Metrics

// RecordFetch records one source artifact fetch with its outcome
// (hit, fetched, unreachable, integrity_mismatch).
func (m *Metrics) RecordFetch(outcome string, duration time.Duration) {
	if m.fetchesTotal == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Environment Metrics

// RecordEnvironmentBuild records an environment build attempt.
func (m *Metrics) RecordEnvironmentBuild(status string) {
	if m.environmentBuilds == nil {
		return
	}
	m.environmentBuilds.WithLabelValues(status).Inc()
}

// SetEnvironmentPayload records the declared payload size of a formula's
// environment.
func (m *Metrics) SetEnvironmentPayload(formulaName string, bytes float64) {
	if m.environmentBytes == nil {
		return
	}
	m.environmentBytes.WithLabelValues(formulaName).Set(bytes)
}

// Error Metrics

// RecordError records an error by code.
func (m *Metrics) RecordError(errorCode string) {
	if m.errorsByCode == nil {
		return
	}
	m.errorsByCode.WithLabelValues(errorCode).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
