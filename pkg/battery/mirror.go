package battery

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/splitbatt/pkg/events"
)

// PeripheralMirror caches the last state of charge reported by the
// peripheral. It is the only writer of its Cell; any number of goroutines
// may read it.
type PeripheralMirror struct {
	cell Cell
}

func NewPeripheralMirror() *PeripheralMirror { return &PeripheralMirror{} }

// StateOfCharge returns the cached percentage. It is 0 until the first
// peripheral report arrives; use Last to tell the two apart.
func (m *PeripheralMirror) StateOfCharge() uint8 { return m.cell.Load() }

// Last returns the cached percentage and whether a report was ever received.
func (m *PeripheralMirror) Last() (uint8, bool) { return m.cell.Snapshot() }

// OnEvent stores the state of charge of a PeripheralBatteryStateChanged
// event as is. Values above 100 are not rejected. Other events are left for
// the next listener.
func (m *PeripheralMirror) OnEvent(ev events.Event) events.Result {
	e, ok := events.As[events.PeripheralBatteryStateChanged](ev)
	if !ok {
		return events.Bubble
	}
	logrus.Debugf("peripheral battery level event: %d", e.StateOfCharge)
	m.cell.Store(e.StateOfCharge)

	return events.Handled
}

// Register subscribes the mirror to peripheral battery events on em.
func (m *PeripheralMirror) Register(em *events.Manager) {
	em.Subscribe("peripheral-battery-mirror", m, events.KindPeripheralBatteryStateChanged)
}

// CentralMirror caches the central's own state of charge, as raised by
// LocalSource or the API. Like PeripheralMirror it is safe for concurrent
// readers.
type CentralMirror struct {
	cell Cell
}

func NewCentralMirror() *CentralMirror { return &CentralMirror{} }

// StateOfCharge returns the cached percentage. It is 0 until the first
// central report arrives; use Last to tell the two apart.
func (m *CentralMirror) StateOfCharge() uint8 { return m.cell.Load() }

// Last returns the cached percentage and whether a report was ever received.
func (m *CentralMirror) Last() (uint8, bool) { return m.cell.Snapshot() }

// OnEvent stores the state of charge of a BatteryStateChanged event as is.
// Other events are left for the next listener.
func (m *CentralMirror) OnEvent(ev events.Event) events.Result {
	e, ok := events.As[events.BatteryStateChanged](ev)
	if !ok {
		return events.Bubble
	}
	logrus.Debugf("central battery level event: %d", e.StateOfCharge)
	m.cell.Store(e.StateOfCharge)

	return events.Handled
}

// Register subscribes the mirror to central battery events on em.
func (m *CentralMirror) Register(em *events.Manager) {
	em.Subscribe("central-battery-mirror", m, events.KindBatteryStateChanged)
}
