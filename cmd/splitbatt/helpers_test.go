package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/splitbatt/pkg/events"
)

func TestParseKindArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    events.Kind
		wantErr bool
	}{
		{arg: "peripheral", want: events.KindPeripheralBatteryStateChanged},
		{arg: "central", want: events.KindBatteryStateChanged},
		{arg: "peripheral_battery_state_changed", want: events.KindPeripheralBatteryStateChanged},
		{arg: "battery_state_changed", want: events.KindBatteryStateChanged},
		{arg: "keycode", wantErr: true},
		{arg: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseKindArg(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevelArg(t *testing.T) {
	v, err := parseLevelArg("255")
	require.NoError(t, err)
	assert.Equal(t, 255, v)

	v, err = parseLevelArg("0")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	for _, bad := range []string{"256", "-1", "abc", ""} {
		_, err := parseLevelArg(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatMessage(t *testing.T) {
	m := events.Message{
		ID:   3,
		Name: events.BatteryLevel,
		Data: []byte(`{"source":"peripheral","stateOfCharge":64,"valid":true}`),
	}
	assert.Contains(t, formatMessage(m), "peripheral")
	assert.Contains(t, formatMessage(m), "64%")

	unknown := events.Message{ID: 4, Name: "other", Data: []byte(`{"x":1}`)}
	assert.Contains(t, formatMessage(unknown), `{"x":1}`)
}

func TestNextRunText(t *testing.T) {
	assert.Equal(t, "disabled", nextRunText(time.Time{}))
	assert.Contains(t, nextRunText(time.Now().Add(time.Hour)), "in ")
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{"daemon", "level", "status", "raise", "watch", "schedule", "version", "install", "uninstall", "set"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestSubcommands(t *testing.T) {
	cmd := NewCommand()
	for _, path := range [][]string{
		{"set", "threshold"},
		{"set", "report-schedule"},
		{"set", "local-poll-schedule"},
		{"set", "non-root-access"},
		{"schedule", "skip"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[1], sub.Name())
	}
}
