package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "multicall_indexer"

// Metrics counts handler outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	events     *prometheus.CounterVec
	actions    *prometheus.CounterVec
	multicalls prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Allocation events handled, by event kind and outcome",
		}, []string{"event", "outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "actions_total",
			Help:      "Classified actions inside multicall transactions",
		}, []string{"action"}),
		multicalls: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "transactions_total",
			Help:      "Multicall transactions first observed",
		}),
	}
	registry.MustRegister(m.events, m.actions, m.multicalls)
	return m
}

func (m *Metrics) IncEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) IncAction(action string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action).Inc()
}

func (m *Metrics) IncMulticall() {
	if m == nil {
		return
	}
	m.multicalls.Inc()
}
