package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"podcast-insights/pkg/logger"
)

// Scheduler runs one job on a cron schedule with timezone support.
// A tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	mu       sync.Mutex
	entryID  cron.EntryID
	runCtx   context.Context
}

// NewScheduler creates a new scheduler for the given timezone
func NewScheduler(timezone string, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if log == nil {
		log = logger.Discard()
	}

	cronLog := cron.PrintfLogger(log.WithComponent("scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		location: loc,
	}, nil
}

// Schedule registers job under a standard five-field cron spec, replacing any previous job.
// The job receives the context passed to Run.
func (s *Scheduler) Schedule(spec string, job func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}

	entryID, err := s.cron.AddFunc(spec, func() { job(s.jobContext()) })
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	s.entryID = entryID
	return nil
}

// Next returns the next activation time, or the zero time if nothing is scheduled
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now().In(s.location))
}

// Run starts the scheduler and blocks until ctx is done, then waits for a running job to finish
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}
