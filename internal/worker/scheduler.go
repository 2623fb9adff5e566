package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// ErrSchedulerStarted is returned when Start is called twice.
var ErrSchedulerStarted = errors.New("scheduler already started")

// Scheduler runs the collection job every configured interval. The first
// run starts immediately and runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *CollectJob
	interval  time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewScheduler creates a new Scheduler for job.
func NewScheduler(job *CollectJob, logger zerolog.Logger) *Scheduler {
	interval := job.Config().Interval
	if interval <= 0 {
		interval = DefaultCollectConfig().Interval
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the collection job and starts the underlying scheduler.
// Runs are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.logger.Debug().Msg("scheduler: running collection job")
		s.job.Run(runCtx)
	})
	if err != nil {
		cancel()
		return err
	}

	s.cancel = cancel
	s.started = true
	s.scheduler.StartAsync()

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("collection scheduler started")
	return nil
}

// Stop cancels the running collection, if any, and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	s.cancel()
	s.scheduler.Stop()
	s.started = false

	s.logger.Info().Msg("collection scheduler stopped")
}
