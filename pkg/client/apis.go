package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/splitbatt/pkg/config"
	"github.com/charlie0129/splitbatt/pkg/events"
)

// Level is a battery level as reported by the daemon. Valid is false until
// the daemon has seen a report for that battery.
type Level struct {
	StateOfCharge uint8 `json:"stateOfCharge"`
	Valid         bool  `json:"valid"`
}

// Schedule holds the next run of the daemon's scheduled tasks.
type Schedule struct {
	Report    time.Time `json:"report"`
	LocalPoll time.Time `json:"localPoll"`
}

func (c *Client) GetPeripheralCharge() (uint8, error) {
	ret, err := c.Get("/peripheral-charge")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get peripheral charge")
	}
	charge, err := strconv.ParseUint(ret, 10, 8)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to unmarshal peripheral charge")
	}
	return uint8(charge), nil
}

func (c *Client) GetPeripheralBattery() (*Level, error) {
	return c.getLevel("/peripheral-battery")
}

func (c *Client) GetCentralCharge() (*Level, error) {
	return c.getLevel("/central-charge")
}

func (c *Client) getLevel(path string) (*Level, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", strings.TrimPrefix(path, "/"))
	}

	var l Level
	if err := json.Unmarshal([]byte(ret), &l); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", strings.TrimPrefix(path, "/"))
	}
	return &l, nil
}

// Raise asks the daemon to raise an event and returns the dispatch result
// ("bubble", "handled" or "captured").
func (c *Client) Raise(kind events.Kind, stateOfCharge int) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"kind":          kind,
		"stateOfCharge": stateOfCharge,
	})
	if err != nil {
		return "", err
	}

	ret, err := c.Post("/events", string(payload))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to raise %s", kind)
	}

	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(ret), &resp); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal raise response")
	}
	return resp.Result, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetSchedule() (*Schedule, error) {
	ret, err := c.Get("/schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get schedule")
	}

	var s Schedule
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal schedule")
	}
	return &s, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

// Stream reads the daemon event stream and calls fn for each message until
// ctx is done, the daemon closes the stream or fn returns an error.
// Messages after lastID are replayed if the daemon still has them.
func (c *Client) Stream(ctx context.Context, lastID int64, fn func(events.Message) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("got %d from event stream", resp.StatusCode)
	}

	err = readStream(bufio.NewScanner(resp.Body), fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readStream parses server-sent events. Comment lines are skipped.
func readStream(sc *bufio.Scanner, fn func(events.Message) error) error {
	var msg events.Message
	var data []string

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if msg.Name == "" && len(data) == 0 {
				continue
			}
			msg.Data = json.RawMessage(strings.Join(data, "\n"))
			if err := fn(msg); err != nil {
				return err
			}
			msg, data = events.Message{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id, err := strconv.ParseInt(strings.TrimSpace(line[3:]), 10, 64)
			if err == nil {
				msg.ID = id
			}
		case strings.HasPrefix(line, "event:"):
			msg.Name = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line[5:], " "))
		}
	}

	return sc.Err()
}

func (c *Client) SetLowBatteryThreshold(threshold int) (string, error) {
	return c.put("/config/low-battery-threshold", threshold)
}

func (c *Client) SetReportSchedule(expr string) (string, error) {
	return c.put("/config/report-schedule", expr)
}

// SetLocalPollSchedule sets the host battery poll schedule. An empty
// expression disables polling.
func (c *Client) SetLocalPollSchedule(expr string) (string, error) {
	return c.put("/config/local-poll-schedule", expr)
}

func (c *Client) SetAllowNonRootAccess(allow bool) (string, error) {
	return c.put("/config/allow-non-root-access", allow)
}

func (c *Client) put(path string, value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	ret, err := c.Send(http.MethodPut, path, string(payload))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to set %s", strings.TrimPrefix(path, "/config/"))
	}

	var msg string
	if err := json.Unmarshal([]byte(ret), &msg); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal response")
	}
	return msg, nil
}

// SkipSchedule skips the next run of a scheduled task ("report" or
// "local-poll") and returns the run after it.
func (c *Client) SkipSchedule(task string) (time.Time, error) {
	ret, err := c.Post("/schedule/"+task+"/skip", "")
	if err != nil {
		return time.Time{}, pkgerrors.Wrapf(err, "failed to skip %s", task)
	}

	var next time.Time
	if err := json.Unmarshal([]byte(ret), &next); err != nil {
		return time.Time{}, pkgerrors.Wrapf(err, "failed to unmarshal next run")
	}
	return next, nil
}
