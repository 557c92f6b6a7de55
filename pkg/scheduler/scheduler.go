package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ndtl/timereport/internal/utils"
	"github.com/ndtl/timereport/pkg/period"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownJob = errors.New("unknown job")

type Job func(ctx context.Context) error

// Scheduler runs its jobs once per calendar day, on the first tick at or
// after the configured hour. Each job is claimed in the RunStore before it
// runs, so restarted or parallel processes do not repeat a day's job.
type Scheduler struct {
	clock    utils.Clock
	hour     int
	interval time.Duration
	store    RunStore

	mu      sync.Mutex
	names   []string
	jobs    map[string]Job
	lastRun time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(clock utils.Clock, hour int, interval time.Duration, store RunStore) *Scheduler {
	return &Scheduler{
		clock:    clock,
		hour:     hour,
		interval: interval,
		store:    store,
		jobs:     make(map[string]Job),
	}
}

func (s *Scheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; !ok {
		s.names = append(s.names, name)
	}
	s.jobs[name] = job
}

// Select registers the named jobs from available, in the given order.
func (s *Scheduler) Select(names []string, available map[string]Job) error {
	for _, name := range names {
		job, ok := available[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownJob, name)
		}
		s.Register(name, job)
	}
	return nil
}

// Start runs the tick loop in a background goroutine until ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		log.Infof("Scheduler started: %d jobs daily at %02d:00, checking every %s", len(s.names), s.hour, s.interval)

		s.Tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Scheduler stopped")
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for a running cycle to return.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Tick runs every job when the day's run is due. It reports whether it ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.clock.Now()
	today := utils.DateOf(now)

	s.mu.Lock()
	if now.Hour() < s.hour || !s.lastRun.Before(today) {
		s.mu.Unlock()
		return false
	}
	s.lastRun = today
	names := append([]string(nil), s.names...)
	s.mu.Unlock()

	start := time.Now()
	log.Infof("Starting scheduled jobs for %s", today.Format(period.DateLayout))
	for _, name := range names {
		if ctx.Err() != nil {
			log.Warnf("Scheduled run interrupted before %s", name)
			break
		}
		if !s.claim(ctx, name, today) {
			continue
		}
		s.run(ctx, name)
	}
	log.Infof("Scheduled jobs completed in %s", time.Since(start).Round(time.Millisecond))
	return true
}

func (s *Scheduler) claim(ctx context.Context, name string, today time.Time) bool {
	if s.store == nil {
		return true
	}
	claimed, err := s.store.ClaimRun(ctx, name, today)
	if err != nil {
		log.Errorf("Job %s not run: %v", name, err)
		return false
	}
	if !claimed {
		log.Infof("Job %s already ran on %s", name, today.Format(period.DateLayout))
	}
	return claimed
}

func (s *Scheduler) run(ctx context.Context, name string) {
	s.mu.Lock()
	job := s.jobs[name]
	s.mu.Unlock()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return job(ctx)
	}()

	switch {
	case err == nil:
		log.Infof("Job %s finished", name)
	case errors.Is(err, period.ErrNotDue):
		log.Debugf("Job %s skipped: %v", name, err)
	default:
		log.Errorf("Job %s failed: %v", name, err)
	}
}
