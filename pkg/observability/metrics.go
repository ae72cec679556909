package observability

import (
	"net/http"

	"github.com/aretw0/ifgate/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session end reasons.
const (
	ReasonTerminated = "terminated"
	ReasonEvicted    = "evicted"
	ReasonFailed     = "failed"
)

// Turn outcomes.
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeError    = "error"
)

// Metrics holds the ifgate collectors on a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	created      prometheus.Counter
	ended        *prometheus.CounterVec
	turns        *prometheus.CounterVec
	turnDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors, plus the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ifgate_sessions_created_total",
			Help: "Total number of sessions whose interpreter started",
		}),
		ended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifgate_sessions_ended_total",
				Help: "Total number of sessions that lost their interpreter, by reason",
			},
			[]string{"reason"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifgate_turns_total",
				Help: "Total number of command turns, by outcome",
			},
			[]string{"outcome"},
		),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ifgate_turn_duration_seconds",
			Help:    "Duration of command turns",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
	m.registry.MustRegister(
		m.created, m.ended, m.turns, m.turnDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveActive exports the number of live sessions as reported by active.
// Call it at most once.
func (m *Metrics) ObserveActive(active func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ifgate_sessions_active",
			Help: "Number of sessions with a running interpreter",
		},
		func() float64 { return float64(active()) },
	))
}

// Hooks returns registry callbacks that record into m.
func (m *Metrics) Hooks() session.Hooks {
	return session.Hooks{
		OnCreate: func(string) { m.created.Inc() },
		OnTurn: func(ev session.TurnEvent) {
			outcome := OutcomeComplete
			switch {
			case ev.Err != nil:
				outcome = OutcomeError
			case ev.Partial:
				outcome = OutcomePartial
			}
			m.turns.WithLabelValues(outcome).Inc()
			m.turnDuration.Observe(ev.Duration.Seconds())
		},
		OnEvict:     func(string) { m.ended.WithLabelValues(ReasonEvicted).Inc() },
		OnTerminate: func(string) { m.ended.WithLabelValues(ReasonTerminated).Inc() },
		OnFailure:   func(string, error) { m.ended.WithLabelValues(ReasonFailed).Inc() },
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
