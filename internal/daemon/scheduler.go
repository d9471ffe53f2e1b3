package daemon

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Scheduler wraps a gocron scheduler for periodic full rebuilds.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.DaemonError("create scheduler").WithCause(err).Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// ScheduleFullRebuild runs task every interval. Overlapping runs are skipped.
func (s *Scheduler) ScheduleFullRebuild(interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("rebuild interval must be > 0").
			WithContext("interval", interval.String()).
			Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("full-rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.DaemonError("schedule full rebuild").WithCause(err).Build()
	}
	s.logger.Info("Scheduled periodic full rebuild", slog.Duration("interval", interval), slog.String("job_id", job.ID().String()))
	return job.ID().String(), nil
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int { return len(s.scheduler.Jobs()) }

// Start begins running scheduled jobs.
func (s *Scheduler) Start() { s.scheduler.Start() }

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Warn("Scheduler shutdown error", logfields.Error(err))
		return ferrors.DaemonError("stop scheduler").WithCause(err).Build()
	}
	return nil
}
