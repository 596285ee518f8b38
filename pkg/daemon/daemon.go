package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/charlie0129/splitbatt/pkg/battery"
	"github.com/charlie0129/splitbatt/pkg/config"
	"github.com/charlie0129/splitbatt/pkg/events"
	"github.com/charlie0129/splitbatt/pkg/metrics"
)

// Daemon wires the battery mirrors to the event manager and serves them.
type Daemon struct {
	conf config.Config

	em         *events.Manager
	hub        *events.EventHub
	peripheral *battery.PeripheralMirror
	central    *battery.CentralMirror
	local      *battery.LocalSource
	recorder   *metrics.Recorder
	registry   *prometheus.Registry
	limiter    *rate.Limiter

	reporter *Scheduler
	poller   *Scheduler

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a daemon around conf. Collectors are registered on reg.
func New(conf config.Config, reg *prometheus.Registry) *Daemon {
	d := &Daemon{
		conf:       conf,
		em:         events.NewManager(),
		hub:        events.NewEventHub(conf.EventBacklog()),
		peripheral: battery.NewPeripheralMirror(),
		central:    battery.NewCentralMirror(),
		recorder:   metrics.NewRecorder(reg),
		registry:   reg,
		limiter:    rate.NewLimiter(rateLimit(conf.EventRateLimit()), conf.EventRateBurst()),
		done:       make(chan struct{}),
	}
	d.local = battery.NewLocalSource(d)

	// The watcher goes first so a low level is reported before anything
	// else reacts to it.
	newLowBatteryWatcher(conf.LowBatteryThreshold, d.hub).Register(d.em)
	d.peripheral.Register(d.em)
	d.central.Register(d.em)
	d.recorder.Register(d.em)

	onError := func(data any) {
		logrus.Errorf("scheduled task failed: %v", data)
	}
	d.reporter = NewScheduler("report", d.report, onError)
	d.poller = NewScheduler("local-poll", d.local.Poll, onError)

	return d
}

// Close stops the schedulers and ends open event streams.
func (d *Daemon) Close() {
	d.closeOnce.Do(func() {
		d.reporter.Stop()
		d.poller.Stop()
		close(d.done)
	})
}

func rateLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// Raise delivers ev to all listeners, counts it and publishes the new
// level to stream subscribers.
func (d *Daemon) Raise(ev events.Event) events.Result {
	r := d.em.Raise(ev)
	if ev == nil {
		return r
	}
	d.recorder.ObserveResult(ev.Kind(), r)

	// Publish the raised value. The mirror may already hold a newer one.
	switch e := ev.(type) {
	case events.PeripheralBatteryStateChanged:
		d.hub.Publish(events.BatteryLevel, raisedLevel(sourcePeripheral, e.StateOfCharge))
	case events.BatteryStateChanged:
		d.hub.Publish(events.BatteryLevel, raisedLevel(sourceCentral, e.StateOfCharge))
	}

	return r
}

func raisedLevel(source string, soc uint8) events.LevelMessage {
	return events.LevelMessage{
		Source:        source,
		StateOfCharge: soc,
		Valid:         true,
		Ts:            time.Now().Unix(),
	}
}

func (d *Daemon) levelMessage(source string) events.LevelMessage {
	var level uint8
	var ok bool
	if source == sourceCentral {
		level, ok = d.central.Last()
	} else {
		level, ok = d.peripheral.Last()
	}
	return events.LevelMessage{
		Source:        source,
		StateOfCharge: level,
		Valid:         ok,
		Ts:            time.Now().Unix(),
	}
}

// report logs both levels and publishes them.
func (d *Daemon) report() error {
	for _, source := range []string{sourcePeripheral, sourceCentral} {
		msg := d.levelMessage(source)
		logrus.WithFields(logrus.Fields{
			"source":        msg.Source,
			"stateOfCharge": msg.StateOfCharge,
			"valid":         msg.Valid,
		}).Info("battery level report")
		d.hub.Publish(events.BatteryReport, msg)
	}
	return nil
}

// applyConfig pushes config values that can change at runtime.
func (d *Daemon) applyConfig() {
	d.limiter.SetLimit(rateLimit(d.conf.EventRateLimit()))
	d.limiter.SetBurst(d.conf.EventRateBurst())

	if err := d.reporter.Schedule(d.conf.ReportSchedule()); err != nil {
		logrus.Errorf("invalid report schedule %q: %v", d.conf.ReportSchedule(), err)
	}
	if err := d.poller.Schedule(d.conf.LocalPollSchedule()); err != nil {
		logrus.Errorf("invalid local poll schedule %q: %v", d.conf.LocalPollSchedule(), err)
	}
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", d.getConfig)
	router.PUT("/config/low-battery-threshold", d.setLowBatteryThreshold)
	router.PUT("/config/report-schedule", d.setReportSchedule)
	router.PUT("/config/local-poll-schedule", d.setLocalPollSchedule)
	router.PUT("/config/allow-non-root-access", d.setAllowNonRootAccess)
	router.GET("/peripheral-charge", d.getPeripheralCharge)
	router.GET("/peripheral-battery", d.getPeripheralBattery)
	router.GET("/central-charge", d.getCentralCharge)
	router.POST("/events", d.raiseEvent)
	router.GET("/events/stream", d.streamEvents)
	router.GET("/schedule", d.getSchedule)
	router.POST("/schedule/:task/skip", d.skipSchedule)
	router.GET("/version", getVersion)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	return router
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d := New(conf, reg)
	router := d.setupRoutes()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			d.applyConfig()
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// A stale socket from a crashed daemon would make Listen fail.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove stale socket %s: %v", unixSocketPath, err)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	d.applyConfig()
	d.reporter.Start()
	d.poller.Start()

	// Read the host battery once right away instead of waiting for the
	// first poll.
	if conf.LocalPollSchedule() != "" {
		if err := d.local.Poll(); err != nil {
			logrus.Warnf("failed to read host battery: %v", err)
		}
	}

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("stopping schedulers and event streams")
	d.Close()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("exiting")
	return nil
}
