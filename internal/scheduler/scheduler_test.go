package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddRejectsBadSchedule(t *testing.T) {
	s := New(time.UTC, 0)
	err := s.Add(Job{Name: "bad", Schedule: "not a cron", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatalf("Add() expected error for invalid schedule")
	}
}

func TestEmptyScheduleIsDisabled(t *testing.T) {
	s := New(nil, 0)
	if err := s.Add(Job{Name: "off", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if s.Entries() != 0 {
		t.Fatalf("Entries() = %d, want 0", s.Entries())
	}
}

func TestRunsJobAndStopWaits(t *testing.T) {
	s := New(time.UTC, time.Second)
	var runs atomic.Int32
	finished := make(chan struct{})

	err := s.Add(Job{Name: "tick", Schedule: "@every 1s", Run: func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(finished)
		}
		return errors.New("logged, not fatal")
	}})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start()

	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}
	s.Stop()

	if runs.Load() < 1 {
		t.Fatalf("runs = %d", runs.Load())
	}
}

func TestJobContextCancelledOnStop(t *testing.T) {
	s := New(time.UTC, 0)
	started := make(chan struct{}, 1)
	var sawCancel atomic.Bool

	_ = s.Add(Job{Name: "long", Schedule: "@every 1s", Run: func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}})
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}
	s.Stop()

	if !sawCancel.Load() {
		t.Fatalf("Stop() returned before the job saw cancellation")
	}
}
