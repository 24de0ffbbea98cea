package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"go_screener_backend/services/syncjobs"
)

// Scheduler runs the nightly sync jobs on a fixed timetable in the
// exchange's timezone. The same job instances back the admin trigger
// endpoints, so a manual run and a scheduled run are identical.
type Scheduler struct {
	cron      *gocron.Scheduler
	delta     *syncjobs.DeltaSyncJob
	rotation  *syncjobs.RotationUpdater
	retry     *syncjobs.RetryProcessor
	retention *syncjobs.RetentionTrimmer
	logger    *logrus.Entry
}

// New builds a scheduler in the given IANA timezone.
func New(timezone string, delta *syncjobs.DeltaSyncJob, rotation *syncjobs.RotationUpdater,
	retry *syncjobs.RetryProcessor, retention *syncjobs.RetentionTrimmer, logger *logrus.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		cron:      gocron.NewScheduler(loc),
		delta:     delta,
		rotation:  rotation,
		retry:     retry,
		retention: retention,
		logger:    logger.WithField("component", "scheduler"),
	}, nil
}

// Start registers all jobs and starts the scheduler asynchronously.
// SingletonMode keeps a slow run from overlapping its next trigger.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")

	// Delta price sync nightly after market close.
	s.cron.Every(1).Day().At("21:00").SingletonMode().Do(func() {
		ctx := context.Background()
		if _, err := s.delta.Run(ctx); err != nil {
			s.logger.Errorf("Delta sync failed: %v", err)
			return
		}
		// Sweep the retry queue once fresh data has landed.
		if _, err := s.retry.Run(ctx); err != nil {
			s.logger.Errorf("Retry sweep failed: %v", err)
		}
	})

	// Fundamentals rotation an hour later, one segment per night.
	s.cron.Every(1).Day().At("22:00").SingletonMode().Do(func() {
		if _, err := s.rotation.Run(context.Background()); err != nil {
			s.logger.Errorf("Fundamentals rotation failed: %v", err)
		}
	})

	// Retention trim weekly, off-hours.
	s.cron.Every(1).Week().Sunday().At("03:00").SingletonMode().Do(func() {
		if _, err := s.retention.Run(); err != nil {
			s.logger.Errorf("Retention trim failed: %v", err)
		}
	})

	s.cron.StartAsync()
	s.logger.Info("Scheduler started")
}

// Stop stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}
