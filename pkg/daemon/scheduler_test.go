package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestCronParse(t *testing.T) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse("@every 10m")
	if err != nil {
		t.Fatalf("failed to parse cron expression: %v", err)
	}

	now := time.Now()
	next1 := schedule.Next(now)
	t.Logf("next1: %v", next1)
	next2 := schedule.Next(next1)
	t.Logf("next2: %v", next2)

	if !next2.After(next1) {
		t.Fatalf("expected next2 to be after next1, got next1=%v next2=%v", next1, next2)
	}
}

func TestSchedulerScheduleStatus(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)

	if err := s.Schedule("@every 1m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	next, running := s.Status()
	if running {
		t.Fatalf("scheduler should not be running")
	}
	if next.IsZero() {
		t.Fatalf("next run should be set after scheduling")
	}

	if err := s.Schedule("bogus"); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
}

func TestSchedulerEmptyExpressionClears(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Schedule("@every 1m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if err := s.Schedule(""); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	next, _ := s.Status()
	if !next.IsZero() {
		t.Fatalf("expected no next run, got %v", next)
	}
	if err := s.Skip(); err == nil {
		t.Fatalf("expected skip to fail without a schedule")
	}
}

func TestSchedulerSkip(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Schedule("@every 10m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	orig, _ := s.Status()
	if orig.IsZero() {
		t.Fatalf("expected next run after scheduling")
	}

	s.Start()
	defer s.Stop()

	if err := s.Skip(); err != nil {
		t.Fatalf("Skip returned error: %v", err)
	}
	skipped, _ := s.Status()
	if !skipped.After(orig) {
		t.Fatalf("expected skip to move schedule forward, got %v <= %v", skipped, orig)
	}
}

func TestSchedulerRunTask(t *testing.T) {
	taskCh := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	task := func() error {
		select {
		case taskCh <- struct{}{}:
		default:
		}
		return nil
	}

	onError := func(data any) {
		if err, ok := data.(error); ok {
			errCh <- err
		}
	}

	s := NewScheduler("test", task, onError)
	if err := s.Schedule("@every 1s"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	s.mu.Lock()
	s.nextRun = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case <-taskCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not execute in time")
	}

	select {
	case err := <-errCh:
		t.Fatalf("unexpected error callback: %v", err)
	default:
	}
}

func TestSchedulerTaskFailure(t *testing.T) {
	errCh := make(chan error, 2)

	onError := func(data any) {
		if err, ok := data.(error); ok {
			select {
			case errCh <- err:
			default:
			}
		}
	}

	s := NewScheduler("test", func() error { return errors.New("boom") }, onError)
	if err := s.Schedule("@every 1s"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	s.mu.Lock()
	s.nextRun = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatalf("expected error callback from failed task")
	}
}

func TestSchedulerSameExpressionKeepsSkip(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Schedule("@every 10m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if err := s.Skip(); err != nil {
		t.Fatalf("Skip returned error: %v", err)
	}
	skipped, _ := s.Status()

	if err := s.Schedule("@every 10m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	next, _ := s.Status()
	if !next.Equal(skipped) {
		t.Fatalf("expected next run to stay at %v, got %v", skipped, next)
	}

	if err := s.Schedule("@every 1m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	next, _ = s.Status()
	if !next.Before(skipped) {
		t.Fatalf("expected a new expression to recalculate, got %v", next)
	}
}
