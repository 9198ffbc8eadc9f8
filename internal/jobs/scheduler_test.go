package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventify/eventify-api/internal/pkg/joblock"
)

func TestSchedulerRunsOnInterval(t *testing.T) {
	s := NewScheduler(joblock.NewLocal(), time.Second)

	var runs int32
	s.Add(Job{
		Name:       "tick",
		Schedule:   Every(10 * time.Millisecond),
		RunOnStart: true,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&runs) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if n := atomic.LoadInt32(&runs); n < 3 {
		t.Fatalf("runs = %d, want at least 3", n)
	}

	// no run after Stop returns
	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&runs); n != after {
		t.Fatalf("runs changed after Stop: %d -> %d", after, n)
	}
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	locker := joblock.NewLocal()
	s := NewScheduler(locker, time.Minute)

	ok, err := locker.TryAcquire(context.Background(), "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("pre-acquire: %v %v", ok, err)
	}

	called := false
	s.RunOnce(Job{Name: "sweep", Run: func(context.Context) error {
		called = true
		return nil
	}})
	if called {
		t.Fatal("job ran while another holder had the lock")
	}
}

func TestRunOnceBoundsRunAndReleases(t *testing.T) {
	locker := joblock.NewLocal()
	s := NewScheduler(locker, 20*time.Millisecond)

	s.RunOnce(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	// a failed run still gives the lock back
	ok, err := locker.TryAcquire(context.Background(), "slow", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock not released after failed run: %v %v", ok, err)
	}
}

func TestRunOnceSurvivesJobError(t *testing.T) {
	s := NewScheduler(joblock.NewLocal(), time.Second)
	var runs int
	job := Job{Name: "flaky", Run: func(context.Context) error {
		runs++
		return errors.New("db down")
	}}

	s.RunOnce(job)
	s.RunOnce(job)
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}
