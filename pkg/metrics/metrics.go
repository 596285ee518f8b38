// Package metrics exports battery levels and event counts to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/charlie0129/splitbatt/pkg/events"
)

// Recorder is a listener that records every event it is offered.
type Recorder struct {
	peripheral prometheus.Gauge
	central    prometheus.Gauge
	events     *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		peripheral: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "splitbatt",
			Name:      "peripheral_state_of_charge",
			Help:      "Last state of charge reported by the peripheral, in percent.",
		}),
		central: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "splitbatt",
			Name:      "central_state_of_charge",
			Help:      "Last state of charge of the central, in percent.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitbatt",
			Name:      "events_total",
			Help:      "Events raised, by kind and dispatch result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(r.peripheral, r.central, r.events)
	return r
}

// OnEvent updates the level gauges. It never claims the event.
func (r *Recorder) OnEvent(ev events.Event) events.Result {
	switch e := ev.(type) {
	case events.PeripheralBatteryStateChanged:
		r.peripheral.Set(float64(e.StateOfCharge))
	case events.BatteryStateChanged:
		r.central.Set(float64(e.StateOfCharge))
	}
	return events.Bubble
}

// Register subscribes the recorder to all battery events.
func (r *Recorder) Register(em *events.Manager) {
	em.Subscribe("metrics", r, events.KindPeripheralBatteryStateChanged, events.KindBatteryStateChanged)
}

// ObserveResult counts a dispatched event with its final result.
func (r *Recorder) ObserveResult(kind events.Kind, result events.Result) {
	r.events.WithLabelValues(string(kind), result.String()).Inc()
}
