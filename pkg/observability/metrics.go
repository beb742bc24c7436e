package observability

import (
	"context"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	StepErrors   *prometheus.CounterVec
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	Suspensions  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_steps_total",
				Help: "Total number of executed steps",
			},
			[]string{"step"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tollgate_step_duration_seconds",
				Help:    "Duration of step executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		StepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_step_errors_total",
				Help: "Total number of failed steps",
			},
			[]string{"step"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_tool_calls_total",
				Help: "Total number of tool executions by outcome",
			},
			[]string{"tool_name", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tollgate_tool_duration_seconds",
				Help:    "Duration of tool executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),
		Suspensions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tollgate_suspensions_total",
				Help: "Total number of times a conversation parked at the approval gate",
			},
		),
	}
	reg.MustRegister(m.Steps, m.StepDuration, m.StepErrors, m.ToolCalls, m.ToolDuration, m.Suspensions)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			step := string(e.Step)
			m.Steps.WithLabelValues(step).Inc()
			m.StepDuration.WithLabelValues(step).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.StepErrors.WithLabelValues(step).Inc()
			}
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			status := string(domain.ToolStatusOK)
			if e.IsError {
				status = string(domain.ToolStatusError)
			}
			m.ToolCalls.WithLabelValues(e.ToolName, status).Inc()
			m.ToolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
		OnSuspend: func(ctx context.Context, e *domain.SuspendEvent) {
			m.Suspensions.Inc()
		},
	}
}
