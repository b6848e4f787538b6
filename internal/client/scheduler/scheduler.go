// Package scheduler runs the client's periodic jobs from one timer loop.
//
// Each job runs on its own goroutine when due; a job still running when its
// next turn comes is skipped for that turn rather than stacked.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

type Job func(ctx context.Context)

type job struct {
	name     string
	interval time.Duration
	fn       Job
	next     time.Time
	running  bool
}

type Scheduler struct {
	log logging.Logger

	mu   sync.Mutex
	jobs []*job
	wake chan struct{}
	wg   sync.WaitGroup
}

func New(log logging.Logger) *Scheduler {
	return &Scheduler{log: log.With("module", "scheduler"), wake: make(chan struct{}, 1)}
}

// Register adds a job. Its first run is due immediately.
func (s *Scheduler) Register(name string, interval time.Duration, fn Job) {
	s.mu.Lock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn, next: time.Now()})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the jobs until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.wg.Wait()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.dispatch(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// dispatch starts every due job and returns the time until the next one.
func (s *Scheduler) dispatch(ctx context.Context) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	wait := time.Hour

	for _, j := range s.jobs {
		if !j.next.After(now) {
			j.next = now.Add(j.interval)
			if j.running {
				s.log.Debug(ctx, "job still running, skipping turn", "job", j.name)
			} else {
				j.running = true
				s.wg.Add(1)
				go s.runJob(ctx, j)
			}
		}
		if d := j.next.Sub(now); d < wait {
			wait = d
		}
	}
	return wait
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer s.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			s.log.Error(ctx, "job panicked", "job", j.name, "panic", p)
		}
		s.mu.Lock()
		j.running = false
		s.mu.Unlock()
	}()

	j.fn(ctx)
}
