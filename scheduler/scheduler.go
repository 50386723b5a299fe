// Package scheduler drives serve-mode background work: periodic sampling and
// the once-a-day complaint run. Batch deployments keep using cron; this loop
// exists so a single serve process can do both.
package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one scheduled unit of work. Interval jobs run every Interval;
// daily jobs run once per calendar day at TimeOfDay ("HH:MM", local).
type Job struct {
	Name      string
	Interval  time.Duration
	TimeOfDay string
	Run       func(ctx context.Context) error
}

type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	lastRun map[string]time.Time
}

func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		lastRun: make(map[string]time.Time),
	}
}

// Start launches the schedule loop. It stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		logrus.Info("scheduler started")
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logrus.Info("scheduler stopped")
				return
			case now := <-ticker.C:
				s.check(ctx, now)
			}
		}
	}()
}

func (s *Scheduler) check(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if shouldRun(job, s.lastRun[job.Name], now) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.runJob(ctx, job, now)
	}
}

// runJob records lastRun only on success, so a failed job is retried on the
// next tick.
func (s *Scheduler) runJob(ctx context.Context, job Job, now time.Time) {
	if err := job.Run(ctx); err != nil {
		logrus.WithError(err).WithField("job", job.Name).Error("scheduled job failed")
		return
	}
	s.mu.Lock()
	s.lastRun[job.Name] = now
	s.mu.Unlock()
}

// LastRun returns when the named job last completed, if ever.
func (s *Scheduler) LastRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastRun[name]
	return t, ok
}

func shouldRun(job Job, lastRun, now time.Time) bool {
	switch {
	case job.Interval > 0:
		if lastRun.IsZero() {
			return true
		}
		return now.Sub(lastRun) >= job.Interval

	case job.TimeOfDay != "":
		hour, min, ok := parseTimeOfDay(job.TimeOfDay)
		if !ok {
			return false
		}
		loc := now.Location()
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, loc)
		if now.Before(target) {
			return false
		}
		// At most once per calendar day.
		return lastRun.IsZero() || !sameDay(lastRun.In(loc), now)

	default:
		return false
	}
}

func parseTimeOfDay(s string) (hour, min int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	hour, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, false
	}
	return hour, min, true
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
