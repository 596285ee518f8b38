package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/splitbatt/pkg/events"
)

// serveUnix serves h on a short unix socket path and returns the path.
func serveUnix(t *testing.T, h http.Handler) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "sb")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "d.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(h)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)

	return sock
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.GetPeripheralCharge()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestGetters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/peripheral-charge", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "73")
	})
	mux.HandleFunc("/peripheral-battery", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"stateOfCharge": 73, "valid": true}`)
	})
	mux.HandleFunc("/central-charge", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"stateOfCharge": 0, "valid": false}`)
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `"v1.2.3"`)
	})
	mux.HandleFunc("/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"lowBatteryThreshold": 25}`)
	})
	c := NewClient(serveUnix(t, mux))

	charge, err := c.GetPeripheralCharge()
	require.NoError(t, err)
	assert.Equal(t, uint8(73), charge)

	p, err := c.GetPeripheralBattery()
	require.NoError(t, err)
	assert.Equal(t, Level{StateOfCharge: 73, Valid: true}, *p)

	central, err := c.GetCentralCharge()
	require.NoError(t, err)
	assert.False(t, central.Valid)

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)

	conf, err := c.GetConfig()
	require.NoError(t, err)
	require.NotNil(t, conf.LowBatteryThreshold)
	assert.Equal(t, 25, *conf.LowBatteryThreshold)

	_, err = c.GetSchedule()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRaise(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.JSONEq(t, `{"kind":"peripheral_battery_state_changed","stateOfCharge":255}`, string(b))
		fmt.Fprint(w, `{"result":"handled"}`)
	})
	c := NewClient(serveUnix(t, mux))

	res, err := c.Raise(events.KindPeripheralBatteryStateChanged, 255)
	require.NoError(t, err)
	assert.Equal(t, "handled", res)

	_, err = c.Raise(events.KindPeripheralBatteryStateChanged, 1)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.Header.Get("Last-Event-ID"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ready\n\n")
		fmt.Fprint(w, "id: 5\nevent: battery.level\ndata: {\"source\":\"peripheral\",\"stateOfCharge\":9}\n\n")
		// gin-contrib/sse writes fields without a space after the colon.
		fmt.Fprint(w, "id:6\nevent:battery.low\ndata:{\"source\":\"peripheral\",\"stateOfCharge\":9,\"threshold\":10}\n\n")
	})
	c := NewClient(serveUnix(t, mux))

	var got []events.Message
	err := c.Stream(context.Background(), 4, func(m events.Message) error {
		got = append(got, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].ID)
	assert.Equal(t, events.BatteryLevel, got[0].Name)

	low, err := events.DecodeAs[events.BatteryLowMessage](got[1])
	require.NoError(t, err)
	assert.Equal(t, uint8(10), low.Threshold)
}

func TestReadStreamStopsOnCallbackError(t *testing.T) {
	input := "event: a\ndata: 1\n\nevent: b\ndata: 2\n\n"
	stop := errors.New("stop")

	n := 0
	err := readStream(bufio.NewScanner(strings.NewReader(input)), func(events.Message) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestReadStreamMultilineData(t *testing.T) {
	input := "event: a\ndata: [1,\ndata: 2]\n\n"

	var got events.Message
	err := readStream(bufio.NewScanner(strings.NewReader(input)), func(m events.Message) error {
		got = m
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "[1,\n2]", string(got.Data))
}

func TestSetters(t *testing.T) {
	bodies := make(map[string]string)
	mux := http.NewServeMux()
	mux.HandleFunc("/config/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		b, _ := io.ReadAll(r.Body)
		bodies[r.URL.Path] = string(b)
		if string(b) == "300" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `"low battery threshold must be between 0 and 100, got 300"`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `"ok"`)
	})
	c := NewClient(serveUnix(t, mux))

	msg, err := c.SetLowBatteryThreshold(15)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)

	_, err = c.SetReportSchedule("@every 1h")
	require.NoError(t, err)
	_, err = c.SetLocalPollSchedule("")
	require.NoError(t, err)
	_, err = c.SetAllowNonRootAccess(true)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"/config/low-battery-threshold": "15",
		"/config/report-schedule":       `"@every 1h"`,
		"/config/local-poll-schedule":   `""`,
		"/config/allow-non-root-access": "true",
	}, bodies)

	_, err = c.SetLowBatteryThreshold(300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 400")
}

func TestSkipSchedule(t *testing.T) {
	next := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/schedule/report/skip", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		b, _ := json.Marshal(next)
		_, _ = w.Write(b)
	})
	c := NewClient(serveUnix(t, mux))

	got, err := c.SkipSchedule("report")
	require.NoError(t, err)
	assert.True(t, next.Equal(got))

	_, err = c.SkipSchedule("local-poll")
	assert.ErrorIs(t, err, ErrNotFound)
}
