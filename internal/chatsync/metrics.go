package chatsync

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts replay activity. A nil registerer leaves the collectors
// unregistered, which is how tests construct them.
type Metrics struct {
	eventsSeen     *prometheus.CounterVec
	replaysSkipped *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsSeen: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_sync_events_total",
				Help: "Events consumed from the source feed, by kind.",
			},
			[]string{"kind"},
		),
		replaysSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_sync_replays_skipped_total",
				Help: "Replay actions skipped because the referenced chat was missing.",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.eventsSeen, m.replaysSkipped)
	}
	return m
}

func (m *Metrics) eventSeen(kind EventKind) {
	if m == nil {
		return
	}
	m.eventsSeen.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) replaySkipped(kind EventKind) {
	if m == nil {
		return
	}
	m.replaysSkipped.WithLabelValues(kind.String()).Inc()
}
