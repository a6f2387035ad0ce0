package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eschatch"

// Relay directions.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// Metrics holds the session collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Relay
	BytesRelayed      *prometheus.CounterVec
	TranscriptDropped *prometheus.CounterVec
	EscapeActivations prometheus.Counter

	// Generation
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	Directives         *prometheus.CounterVec

	// Injection
	Injections          *prometheus.CounterVec
	DestructiveVerdicts *prometheus.CounterVec

	// Backend
	BreakerTransitions *prometheus.CounterVec

	startTime time.Time
	Uptime    prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry:  registry,
		startTime: time.Now(),

		BytesRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relayed_bytes_total",
				Help:      "Bytes relayed between the terminal and the child",
			},
			[]string{"direction"},
		),
		TranscriptDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transcript_rejected_appends_total",
				Help:      "Appends rejected by a frozen transcript window",
			},
			[]string{"direction"},
		),
		EscapeActivations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escape_activations_total",
				Help:      "Times the escape key opened the task prompt",
			},
		),
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Generation requests by kind and status",
			},
			[]string{"kind", "status"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Latency of generation requests",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		Directives: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "directives_total",
				Help:      "Slash directives handled by name",
			},
			[]string{"directive"},
		),
		Injections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "injections_total",
				Help:      "Commands written into the child by action",
			},
			[]string{"action"},
		),
		DestructiveVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "destructive_verdicts_total",
				Help:      "Generated commands matching a destructive pattern",
			},
			[]string{"pattern"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state changes",
			},
			[]string{"to"},
		),
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Wall time since the session started",
			},
		),
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRelayed.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) RecordRejected(direction string) {
	if m == nil {
		return
	}
	m.TranscriptDropped.WithLabelValues(direction).Inc()
}

func (m *Metrics) RecordEscape() {
	if m == nil {
		return
	}
	m.EscapeActivations.Inc()
}

// RecordGeneration counts one backend round trip.
func (m *Metrics) RecordGeneration(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(kind, status).Inc()
	m.GenerationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordDirective(name string) {
	if m == nil {
		return
	}
	m.Directives.WithLabelValues(name).Inc()
}

func (m *Metrics) RecordInjection(action string) {
	if m == nil {
		return
	}
	m.Injections.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordDestructive(pattern string) {
	if m == nil {
		return
	}
	m.DestructiveVerdicts.WithLabelValues(pattern).Inc()
}

func (m *Metrics) RecordBreakerTransition(to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(to).Inc()
}

// WriteTextfile stamps the session duration and writes the registry to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	m.Uptime.Set(time.Since(m.startTime).Seconds())
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
