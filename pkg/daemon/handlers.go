package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/splitbatt/pkg/config"
	"github.com/charlie0129/splitbatt/pkg/events"
	"github.com/charlie0129/splitbatt/pkg/version"
)

const streamHeartbeat = 15 * time.Second

// LevelResponse is returned by the battery level routes.
type LevelResponse struct {
	StateOfCharge uint8 `json:"stateOfCharge"`
	Valid         bool  `json:"valid"`
}

// RaiseRequest is the body of POST /events.
type RaiseRequest struct {
	Kind          events.Kind `json:"kind"`
	StateOfCharge *int        `json:"stateOfCharge"`
}

// RaiseResponse reports how the listeners treated a raised event.
type RaiseResponse struct {
	Result string `json:"result"`
}

// ScheduleResponse holds the next run of each scheduled task. Zero times
// mean the task is disabled.
type ScheduleResponse struct {
	Report    time.Time `json:"report"`
	LocalPoll time.Time `json:"localPoll"`
}

func (d *Daemon) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(d.conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (d *Daemon) getPeripheralCharge(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.peripheral.StateOfCharge())
}

func (d *Daemon) getPeripheralBattery(c *gin.Context) {
	level, ok := d.peripheral.Last()
	c.IndentedJSON(http.StatusOK, LevelResponse{StateOfCharge: level, Valid: ok})
}

func (d *Daemon) getCentralCharge(c *gin.Context) {
	level, ok := d.central.Last()
	c.IndentedJSON(http.StatusOK, LevelResponse{StateOfCharge: level, Valid: ok})
}

func (d *Daemon) raiseEvent(c *gin.Context) {
	if !d.limiter.Allow() {
		err := fmt.Errorf("event rate limit exceeded")
		c.IndentedJSON(http.StatusTooManyRequests, err.Error())
		_ = c.AbortWithError(http.StatusTooManyRequests, err)
		return
	}

	var req RaiseRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if req.StateOfCharge == nil {
		err := fmt.Errorf("stateOfCharge is required")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	// Anything that fits in a byte is passed through. The mirror stores
	// values above 100 as is.
	soc := *req.StateOfCharge
	if soc < 0 || soc > 255 {
		err := fmt.Errorf("stateOfCharge must be between 0 and 255, got %d", soc)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var ev events.Event
	switch req.Kind {
	case events.KindPeripheralBatteryStateChanged:
		ev = events.PeripheralBatteryStateChanged{StateOfCharge: uint8(soc)}
	case events.KindBatteryStateChanged:
		ev = events.BatteryStateChanged{StateOfCharge: uint8(soc)}
	default:
		err := fmt.Errorf("unknown event kind %q", req.Kind)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	r := d.Raise(ev)
	logrus.WithFields(logrus.Fields{
		"kind":          req.Kind,
		"stateOfCharge": soc,
		"result":        r,
	}).Debug("raised event from api")

	c.IndentedJSON(http.StatusOK, RaiseResponse{Result: r.String()})
}

func (d *Daemon) streamEvents(c *gin.Context) {
	var lastID int64
	resume := false
	if s := c.GetHeader("Last-Event-ID"); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id >= 0 {
			lastID = id
			resume = true
		}
	}

	id, ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(id)

	// An ID the hub has not reached yet comes from an earlier daemon run.
	if latest := d.hub.LastID(); lastID > latest {
		logrus.WithFields(logrus.Fields{
			"lastEventID": lastID,
			"latestID":    latest,
		}).Debug("stale Last-Event-ID, replaying from the start")
		lastID = 0
	}

	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	write := func(m events.Message) bool {
		if m.ID <= lastID {
			return true
		}
		lastID = m.ID
		c.Render(-1, sse.Event{
			Id:    strconv.FormatInt(m.ID, 10),
			Event: m.Name,
			Data:  m.Data,
		})
		if c.IsAborted() {
			return false
		}
		c.Writer.Flush()
		return true
	}

	comment := func(text string) bool {
		if _, err := c.Writer.WriteString(": " + text + "\n\n"); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	// Subscribe before replaying so nothing published in between is lost.
	// write skips what the replay already sent.
	if resume {
		for _, m := range d.hub.Since(lastID) {
			if !write(m) {
				return
			}
		}
	}
	if !comment("ready") {
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-d.done:
			// Flush what was already queued for this subscriber.
			for {
				select {
				case m, ok := <-ch:
					if !ok || !write(m) {
						return
					}
				default:
					return
				}
			}
		case <-ticker.C:
			if !comment("ping") {
				return
			}
		case m, ok := <-ch:
			if !ok || !write(m) {
				return
			}
		}
	}
}

func (d *Daemon) getSchedule(c *gin.Context) {
	report, _ := d.reporter.Status()
	poll, _ := d.poller.Status()
	c.IndentedJSON(http.StatusOK, ScheduleResponse{Report: report, LocalPoll: poll})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

// saveConfig persists conf and pushes the new values to the schedulers.
func (d *Daemon) saveConfig(c *gin.Context) bool {
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return false
	}
	d.applyConfig()
	return true
}

func (d *Daemon) setLowBatteryThreshold(c *gin.Context) {
	var t int
	if err := c.BindJSON(&t); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetLowBatteryThreshold(t); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if !d.saveConfig(c) {
		return
	}

	logrus.Infof("set low battery threshold to %d", t)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set low battery threshold to %d%%", t))
}

func (d *Daemon) setReportSchedule(c *gin.Context) {
	var s string
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetReportSchedule(s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if !d.saveConfig(c) {
		return
	}

	logrus.Infof("set report schedule to %q", s)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set report schedule to %q", s))
}

func (d *Daemon) setLocalPollSchedule(c *gin.Context) {
	var s string
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetLocalPollSchedule(s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if !d.saveConfig(c) {
		return
	}

	msg := fmt.Sprintf("set local poll schedule to %q", s)
	if s == "" {
		msg = "disabled local poll"
	}
	logrus.Info(msg)
	c.IndentedJSON(http.StatusCreated, msg)
}

func (d *Daemon) setAllowNonRootAccess(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	d.conf.SetAllowNonRootAccess(b)
	if !d.saveConfig(c) {
		return
	}

	logrus.Infof("set allow non-root access to %t", b)
	// Socket permissions are set when the daemon starts.
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set allow non-root access to %t, restart the daemon to apply", b))
}

func (d *Daemon) skipSchedule(c *gin.Context) {
	var s *Scheduler
	switch task := c.Param("task"); task {
	case "report":
		s = d.reporter
	case "local-poll":
		s = d.poller
	default:
		err := fmt.Errorf("unknown scheduled task %q", task)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := s.Skip(); err != nil {
		c.IndentedJSON(http.StatusConflict, err.Error())
		_ = c.AbortWithError(http.StatusConflict, err)
		return
	}

	next, _ := s.Status()
	logrus.WithField("task", c.Param("task")).Infof("skipped next run, next run at %s", next.Format(time.RFC3339))
	c.IndentedJSON(http.StatusCreated, next)
}
