package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/splitbatt/pkg/config"
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler runs a task on a cron schedule.
type Scheduler struct {
	Name    string
	OnError NotifyFunc // called on task error
	Task    TaskFunc   // task callback

	parser cron.Parser

	expr     string
	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to schedule change
	ctrlSkip                           // next run skipped
	ctrlClear                          // schedule removed
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(name string, task TaskFunc, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	s := &Scheduler{
		Name:      name,
		OnError:   onError,
		Task:      task,
		parser:    config.ScheduleParser,
		controlCh: make(chan controlMsg, 4),
		stopCh:    make(chan struct{}),
	}
	return s
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

// Schedule sets the cron expression. An empty expression clears the
// schedule, so the task never runs. Setting the current expression again
// keeps the pending run, including a skip.
func (s *Scheduler) Schedule(cronExpr string) error {
	s.mu.Lock()
	unchanged := cronExpr == s.expr
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	var sh cron.Schedule
	if cronExpr != "" {
		var err error
		sh, err = s.parser.Parse(cronExpr)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.expr = cronExpr
	running := s.running
	if !running {
		s.schedule = sh
		s.nextRun = time.Time{}
		if sh != nil {
			s.nextRun = sh.Next(time.Now())
		}
	}
	s.mu.Unlock()

	if running {
		if sh == nil {
			s.trySendControl(ctrlClear, nil)
		} else {
			s.trySendControl(ctrlRecalculate, sh)
		}
	}
	return nil
}

// Skip skips the next scheduled run.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return fmt.Errorf("no active schedule to skip")
	}
	next := s.schedule.Next(s.nextRun)
	if !s.running {
		s.nextRun = next
		s.mu.Unlock()
		return nil
	}
	s.nextRun = next
	s.mu.Unlock()
	s.trySendControl(ctrlSkip, nil)
	return nil
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRun = s.nextRun
	running = s.running
	return
}

func (s *Scheduler) runScheduled() {
	log := logrus.WithField("scheduler", s.Name)

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		log.Debug("scheduler stopped")
	}()

	log.Debug("scheduler started")

	for {
		schedule, nextRun := s.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if schedule == nil || nextRun.IsZero() {
				continue
			}

			log.Debugf("running scheduled task at %s", nextRun.Format(time.DateTime))

			go func() {
				if err := s.Task(); err != nil {
					s.sendError(fmt.Errorf("task failed: %v", err))
				}
			}()
			s.advanceNextRun()
		case <-s.stopCh:
			timer.Stop()
			return
		case msg := <-s.controlCh: // internal control messages
			log.WithFields(logrus.Fields{
				"kind": msg.kind,
				"data": msg.data,
			}).Debug("received control msg")

			timer.Stop()
			switch msg.kind {
			case ctrlRecalculate:
				sh := msg.data.(cron.Schedule)
				s.mu.Lock()
				s.schedule = sh
				s.nextRun = sh.Next(time.Now())
				s.mu.Unlock()
			case ctrlClear:
				s.mu.Lock()
				s.schedule = nil
				s.nextRun = time.Time{}
				s.mu.Unlock()
			case ctrlSkip:
			}
		}
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(s.nextRun)
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
