package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/splitbatt/pkg/events"
)

func lowMessages(t *testing.T, hub *events.EventHub) []events.BatteryLowMessage {
	t.Helper()
	var ret []events.BatteryLowMessage
	for _, m := range hub.Since(0) {
		if m.Name != events.BatteryLow {
			continue
		}
		p, err := events.DecodeAs[events.BatteryLowMessage](m)
		require.NoError(t, err)
		ret = append(ret, p)
	}
	return ret
}

func TestLowBatteryWatcher(t *testing.T) {
	hub := events.NewEventHub(0)
	threshold := 20
	w := newLowBatteryWatcher(func() int { return threshold }, hub)

	em := events.NewManager()
	w.Register(em)

	for _, l := range []uint8{50, 30, 19, 15, 10} {
		assert.Equal(t, events.Bubble, em.Raise(events.PeripheralBatteryStateChanged{StateOfCharge: l}))
	}
	msgs := lowMessages(t, hub)
	require.Len(t, msgs, 1)
	assert.Equal(t, events.BatteryLowMessage{
		Source:        sourcePeripheral,
		StateOfCharge: 19,
		Threshold:     20,
		Ts:            msgs[0].Ts,
	}, msgs[0])

	// Back above the threshold re-arms the warning.
	em.Raise(events.PeripheralBatteryStateChanged{StateOfCharge: 20})
	em.Raise(events.PeripheralBatteryStateChanged{StateOfCharge: 5})
	assert.Len(t, lowMessages(t, hub), 2)

	// Sources are tracked separately.
	em.Raise(events.BatteryStateChanged{StateOfCharge: 3})
	msgs = lowMessages(t, hub)
	require.Len(t, msgs, 3)
	assert.Equal(t, sourceCentral, msgs[2].Source)
}

func TestLowBatteryWatcherThresholdReload(t *testing.T) {
	hub := events.NewEventHub(0)
	threshold := 0
	w := newLowBatteryWatcher(func() int { return threshold }, hub)

	w.OnEvent(events.PeripheralBatteryStateChanged{StateOfCharge: 0})
	assert.Empty(t, lowMessages(t, hub))

	threshold = 50
	w.OnEvent(events.PeripheralBatteryStateChanged{StateOfCharge: 40})
	assert.Len(t, lowMessages(t, hub), 1)
}

func TestLowBatteryWatcherDoesNotStarveMirror(t *testing.T) {
	d := newTestDaemon(t, nil)

	r := d.Raise(events.PeripheralBatteryStateChanged{StateOfCharge: 1})
	assert.Equal(t, events.Handled, r)
	assert.Equal(t, uint8(1), d.peripheral.StateOfCharge())
	assert.Len(t, lowMessages(t, d.hub), 1)
}
