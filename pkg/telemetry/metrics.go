package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the orchestration substrate.
// A disabled Metrics value is a no-op; all record methods are nil-safe.
type Metrics struct {
	config MetricsConfig

	// Planning metrics
	plansCreated prometheus.Counter
	tasksPlanned *prometheus.CounterVec

	// Lifecycle metrics
	transitions        *prometheus.CounterVec
	invalidTransitions prometheus.Counter
	deadLetters        *prometheus.CounterVec

	// Worker metrics
	workerExecutions *prometheus.CounterVec
	workerCacheHits  *prometheus.CounterVec
	workerLocked     *prometheus.CounterVec
	workerDuration   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		plansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_created_total",
			Help:      "Total number of task plans compiled from intents",
		}),
		tasksPlanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_planned_total",
				Help:      "Total number of tasks emitted by the planner",
			},
			[]string{"task_type"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_transitions_total",
				Help:      "Total number of task lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		invalidTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_transitions_total",
			Help:      "Total number of rejected lifecycle transitions",
		}),
		deadLetters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deadletter_tasks_total",
				Help:      "Total number of tasks promoted to the dead-letter store",
			},
			[]string{"task_type"},
		),
		workerExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_executions_total",
				Help:      "Total number of wrapped handler executions",
			},
			[]string{"task_type", "status"},
		),
		workerCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_cache_hits_total",
				Help:      "Total number of memoized worker results served",
			},
			[]string{"task_type"},
		),
		workerLocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_locked_total",
				Help:      "Total number of worker invocations that observed a held lock",
			},
			[]string{"task_type"},
		),
		workerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_duration_seconds",
				Help:      "Duration of wrapped handler execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task_type"},
		),
	}

	collectors := []prometheus.Collector{
		m.plansCreated,
		m.tasksPlanned,
		m.transitions,
		m.invalidTransitions,
		m.deadLetters,
		m.workerExecutions,
		m.workerCacheHits,
		m.workerLocked,
		m.workerDuration,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// enabled reports whether this instance records anything.
func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordPlanCreated records a compiled plan and its tasks.
func (m *Metrics) RecordPlanCreated(taskTypes []string) {
	if !m.enabled() {
		return
	}
	m.plansCreated.Inc()
	for _, taskType := range taskTypes {
		m.tasksPlanned.WithLabelValues(taskType).Inc()
	}
}

// RecordTransition records a successful lifecycle transition.
func (m *Metrics) RecordTransition(from, to string) {
	if !m.enabled() {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordInvalidTransition records a rejected lifecycle transition.
func (m *Metrics) RecordInvalidTransition() {
	if !m.enabled() {
		return
	}
	m.invalidTransitions.Inc()
}

// RecordDeadLetter records a task promoted to the dead-letter store.
func (m *Metrics) RecordDeadLetter(taskType string) {
	if !m.enabled() {
		return
	}
	m.deadLetters.WithLabelValues(taskType).Inc()
}

// RecordWorkerExecution records a wrapped handler execution outcome.
func (m *Metrics) RecordWorkerExecution(taskType, status string, seconds float64) {
	if !m.enabled() {
		return
	}
	m.workerExecutions.WithLabelValues(taskType, status).Inc()
	m.workerDuration.WithLabelValues(taskType).Observe(seconds)
}

// RecordWorkerCacheHit records a memoized result served without execution.
func (m *Metrics) RecordWorkerCacheHit(taskType string) {
	if !m.enabled() {
		return
	}
	m.workerCacheHits.WithLabelValues(taskType).Inc()
}

// RecordWorkerLocked records an invocation that observed a held lock.
func (m *Metrics) RecordWorkerLocked(taskType string) {
	if !m.enabled() {
		return
	}
	m.workerLocked.WithLabelValues(taskType).Inc()
}

// Handler returns the HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
