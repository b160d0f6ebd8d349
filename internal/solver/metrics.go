package solver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the Prometheus collectors for a scheduler run (spec §9
// design note on observability), styled after the teacher repo's
// MetricsService but scoped to the solve pipeline instead of HTTP/cache.
type Metrics struct {
	registry           *prometheus.Registry
	solveDuration      *prometheus.HistogramVec
	solveTotal         *prometheus.CounterVec
	variableCount      prometheus.Gauge
	constraintAdaptive prometheus.Gauge
}

// NewMetrics registers the solver's Prometheus collectors against a fresh
// registry so repeated runs in tests never collide on global registration.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_solve_duration_seconds",
		Help:    "Duration of CP-SAT solve invocations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	solveTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_solve_total",
		Help: "Total number of scheduler runs by outcome status",
	}, []string{"status"})

	variableCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_variables_last_run",
		Help: "Number of decision variables in the most recent run",
	})

	constraintAdaptive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_adaptive_mode_last_run",
		Help: "1 if the most recent run fell back to adaptive coverage mode, else 0",
	})

	registry.MustRegister(solveDuration, solveTotal, variableCount, constraintAdaptive)

	return &Metrics{
		registry:           registry,
		solveDuration:      solveDuration,
		solveTotal:         solveTotal,
		variableCount:      variableCount,
		constraintAdaptive: constraintAdaptive,
	}
}

// Registry exposes the underlying registry, e.g. for wiring into promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSolve records a completed run's duration and outcome status.
func (m *Metrics) ObserveSolve(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.solveTotal.WithLabelValues(status).Inc()
}

// SetModelSize records the variable count and adaptive-mode flag for the
// run currently in flight.
func (m *Metrics) SetModelSize(variables int, adaptive bool) {
	if m == nil {
		return
	}
	m.variableCount.Set(float64(variables))
	if adaptive {
		m.constraintAdaptive.Set(1)
	} else {
		m.constraintAdaptive.Set(0)
	}
}
