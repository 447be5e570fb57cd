package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"tokenvest/core/events"
)

// Collector counts emitted platform events per type. It plugs into the
// engines as an events.Emitter so the business logic stays metric-free.
type Collector struct {
	events *prometheus.CounterVec
}

// NewCollector registers the event counter with the provided registerer. A
// nil registerer falls back to the default prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenvest",
			Name:      "events_total",
			Help:      "Number of platform events emitted, by event type.",
		}, []string{"type"}),
	}
	reg.MustRegister(c.events)
	return c
}

// Emit implements the events.Emitter interface.
func (c *Collector) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	c.events.WithLabelValues(evt.EventType()).Inc()
}
