package observability

import (
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	NodesEvaluated *prometheus.CounterVec
	NodeErrors     *prometheus.CounterVec
	NodeDuration   prometheus.Histogram
	Passes         *prometheus.CounterVec
	PassDuration   *prometheus.HistogramVec
	PassChanges    prometheus.Histogram
	Rejected       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxgraph_nodes_evaluated_total",
				Help: "Computed node evaluations by resulting status",
			},
			[]string{"status"},
		),
		NodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxgraph_node_errors_total",
				Help: "Compute rule failures per node",
			},
			[]string{"node_id"},
		),
		NodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taxgraph_node_duration_seconds",
				Help:    "Duration of a single node evaluation",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
		),
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxgraph_passes_total",
				Help: "Compute passes by kind",
			},
			[]string{"kind"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taxgraph_pass_duration_seconds",
				Help:    "Duration of a compute pass",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"kind"},
		),
		PassChanges: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taxgraph_pass_changes",
				Help:    "Nodes whose snapshot changed in a pass",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxgraph_events_rejected_total",
				Help: "Input events rejected by the validator, by first error code",
			},
			[]string{"code"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.NodesEvaluated, m.NodeErrors, m.NodeDuration,
		m.Passes, m.PassDuration, m.PassChanges, m.Rejected,
	}
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEvaluated: func(e *domain.NodeEvent) {
			m.NodesEvaluated.WithLabelValues(string(e.Status)).Inc()
			m.NodeDuration.Observe(e.Duration.Seconds())
			if e.Status == domain.StatusError {
				m.NodeErrors.WithLabelValues(e.NodeID).Inc()
			}
		},
		OnPassComplete: func(e *domain.PassEvent) {
			kind := "event"
			if e.Initial {
				kind = "initialize"
			}
			m.Passes.WithLabelValues(kind).Inc()
			if e.Frame != nil {
				m.PassDuration.WithLabelValues(kind).Observe(e.Frame.Duration.Seconds())
				m.PassChanges.Observe(float64(len(e.Frame.Changes)))
			}
		},
		OnEventRejected: func(_ *domain.InputEvent, res domain.ValidationResult) {
			code := "unknown"
			if len(res.Errors) > 0 {
				code = res.Errors[0].Code
			}
			m.Rejected.WithLabelValues(code).Inc()
		},
	}
}
