package daemon

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/splitbatt/pkg/events"
)

const (
	sourcePeripheral = "peripheral"
	sourceCentral    = "central"
)

// lowBatteryWatcher warns once each time a battery drops below the
// threshold. It re-arms when the level is back at or above it.
//
// The event manager serializes OnEvent, so fired needs no lock.
type lowBatteryWatcher struct {
	threshold func() int
	hub       *events.EventHub
	fired     map[string]bool
}

func newLowBatteryWatcher(threshold func() int, hub *events.EventHub) *lowBatteryWatcher {
	return &lowBatteryWatcher{
		threshold: threshold,
		hub:       hub,
		fired:     make(map[string]bool),
	}
}

func (w *lowBatteryWatcher) OnEvent(ev events.Event) events.Result {
	var source string
	var level uint8

	switch e := ev.(type) {
	case events.PeripheralBatteryStateChanged:
		source, level = sourcePeripheral, e.StateOfCharge
	case events.BatteryStateChanged:
		source, level = sourceCentral, e.StateOfCharge
	default:
		return events.Bubble
	}

	threshold := w.threshold()
	if int(level) >= threshold {
		w.fired[source] = false
		return events.Bubble
	}
	if w.fired[source] {
		return events.Bubble
	}
	w.fired[source] = true

	logrus.WithFields(logrus.Fields{
		"source":        source,
		"stateOfCharge": level,
		"threshold":     threshold,
	}).Warn("battery is low")

	w.hub.Publish(events.BatteryLow, events.BatteryLowMessage{
		Source:        source,
		StateOfCharge: level,
		Threshold:     uint8(threshold),
		Ts:            time.Now().Unix(),
	})

	return events.Bubble
}

func (w *lowBatteryWatcher) Register(em *events.Manager) {
	em.Subscribe("low-battery-watcher", w, events.KindPeripheralBatteryStateChanged, events.KindBatteryStateChanged)
}
