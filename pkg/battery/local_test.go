package battery

import (
	"errors"
	"testing"

	"github.com/distatus/battery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/splitbatt/pkg/events"
)

func TestLocalSourceRead(t *testing.T) {
	tests := []struct {
		name    string
		bats    []*battery.Battery
		err     error
		want    uint8
		wantErr bool
	}{
		{name: "half", bats: []*battery.Battery{{Current: 25000, Full: 50000}}, want: 50},
		{name: "rounds", bats: []*battery.Battery{{Current: 333, Full: 1000}}, want: 33},
		{name: "clamps above full", bats: []*battery.Battery{{Current: 1200, Full: 1000}}, want: 100},
		{name: "skips unusable", bats: []*battery.Battery{nil, {Full: 0}, {Current: 10, Full: 100}}, want: 10},
		{name: "none", bats: nil, wantErr: true},
		{name: "read error", err: errors.New("boom"), wantErr: true},
		{name: "partial error with data", bats: []*battery.Battery{{Current: 80, Full: 100}}, err: errors.New("partial"), want: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLocalSource(events.NewManager())
			s.readAll = func() ([]*battery.Battery, error) { return tt.bats, tt.err }

			got, err := s.Read()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalSourcePollRaises(t *testing.T) {
	em := events.NewManager()
	central := NewCentralMirror()
	peripheral := NewPeripheralMirror()
	central.Register(em)
	peripheral.Register(em)

	s := NewLocalSource(em)
	s.readAll = func() ([]*battery.Battery, error) {
		return []*battery.Battery{{Current: 90, Full: 100}}, nil
	}

	require.NoError(t, s.Poll())
	assert.Equal(t, uint8(90), central.StateOfCharge())

	// The peripheral mirror is not fed by the host battery.
	_, ok := peripheral.Last()
	assert.False(t, ok)
}

func TestLocalSourcePollNoBattery(t *testing.T) {
	s := NewLocalSource(events.NewManager())
	s.readAll = func() ([]*battery.Battery, error) { return nil, nil }

	assert.ErrorIs(t, s.Poll(), ErrNoBattery)
}
