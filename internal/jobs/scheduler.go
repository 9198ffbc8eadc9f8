// Package jobs runs the periodic sweeps that keep pending purchases and
// loyalty points consistent.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eventify/eventify-api/internal/pkg/joblock"
	"github.com/eventify/eventify-api/internal/pkg/metrics"
)

// Job is one named periodic task
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
	// RunOnStart fires the job once as soon as the scheduler starts
	RunOnStart bool
}

// Scheduler fires jobs on their schedules. Every run holds the job's lock,
// so a run that overlaps the previous one, here or on another instance, is
// skipped.
type Scheduler struct {
	locker  joblock.Locker
	timeout time.Duration
	jobs    []Job
	now     func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. timeout bounds each run and is also the
// lock lease.
func NewScheduler(locker joblock.Locker, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		locker:  locker,
		timeout: timeout,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Add registers a job; call before Start
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Jobs returns the registered jobs
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Start launches one loop per job
func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.jobs)).Msg("Starting job scheduler...")
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}
}

// Stop ends every loop and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping job scheduler...")
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		s.RunOnce(job)
	}

	for {
		wait := job.Schedule.Next(s.now()).Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			s.RunOnce(job)
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// RunOnce runs job under its lock with the configured timeout
func (s *Scheduler) RunOnce(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	ran, err := joblock.WithLock(ctx, s.locker, job.Name, s.timeout, job.Run)
	took := time.Since(started)

	switch {
	case err != nil:
		metrics.ObserveJobRun(job.Name, "failed", took)
		log.Error().Err(err).Str("job", job.Name).Dur("took", took).Msg("Job failed")
	case !ran:
		metrics.ObserveJobRun(job.Name, "skipped", took)
	default:
		metrics.ObserveJobRun(job.Name, "ok", took)
		log.Debug().Str("job", job.Name).Dur("took", took).Msg("Job finished")
	}
}
