// Package metrics exports controller events to Prometheus and serves the
// controller's status over HTTP.
package metrics

import (
	"dispenser/standalone"
	"dispenser/standalone/store"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dispenser"

// Metrics is a standalone.Observer backed by Prometheus collectors
type Metrics struct {
	commands  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	visits    prometheus.Counter
	dispensed prometheus.Counter
	mode      *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands executed, by keyword",
			},
			[]string{"command"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Execution failures, by event",
			},
			[]string{"event"},
		),
		visits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "positions_visited_total",
				Help:      "Positions visited by scheduled sweeps",
			},
		),
		dispensed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispense_seconds_total",
				Help:      "Scheduled pump run time",
			},
		),
		mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mode",
				Help:      "1 for the current controller mode",
			},
			[]string{"mode"},
		),
	}

	for _, c := range []prometheus.Collector{m.commands, m.failures, m.visits, m.dispensed, m.mode} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	m.ModeChanged(standalone.ModeScheduled)
	return m, nil
}

func (m *Metrics) CommandHandled(name string) {
	m.commands.
		WithLabelValues(name).
		Inc()
}

func (m *Metrics) ModeChanged(mode standalone.Mode) {
	for _, other := range []standalone.Mode{standalone.ModeScheduled, standalone.ModeManual} {
		v := 0.0
		if other == mode {
			v = 1
		}
		m.mode.WithLabelValues(other.String()).Set(v)
	}
}

func (m *Metrics) PositionVisited(index int, pos store.Position) {
	m.visits.Inc()
	m.dispensed.Add(pos.Duration().Seconds())
}

func (m *Metrics) Failure(event string, err error) {
	m.failures.
		WithLabelValues(event).
		Inc()
}
