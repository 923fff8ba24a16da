package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/config"
)

// WindowSweeper drops idle failed-login windows
type WindowSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// LogCleaner deletes activity entries past retention
type LogCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler runs the periodic maintenance jobs: the anomaly window sweep and
// activity log retention
type Scheduler struct {
	sweeper   WindowSweeper
	cleaner   LogCleaner
	security  config.SecurityConfig
	retention config.RetentionConfig
	logger    *logrus.Logger
	cron      *cron.Cron
	mu        sync.Mutex
	running   bool

	lastSwept   int
	lastDeleted int64
}

func NewScheduler(
	sweeper WindowSweeper,
	cleaner LogCleaner,
	security config.SecurityConfig,
	retention config.RetentionConfig,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		sweeper:   sweeper,
		cleaner:   cleaner,
		security:  security,
		retention: retention,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron runner
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New(cron.WithSeconds())

	if _, err := c.AddFunc(withSeconds(s.security.SweepSchedule, "0 0 * * * *"), s.runSweep); err != nil {
		s.logger.WithError(err).Error("Failed to schedule anomaly sweep job")
		return err
	}

	if s.retention.CleanupEnabled {
		if _, err := c.AddFunc(withSeconds(s.retention.CleanupSchedule, "0 0 3 * * *"), s.runCleanup); err != nil {
			s.logger.WithError(err).Error("Failed to schedule activity log cleanup job")
			return err
		}
	} else {
		s.logger.Info("Activity log cleanup is disabled")
	}

	s.cron = c
	s.cron.Start()
	s.running = true

	s.logger.WithFields(logrus.Fields{
		"sweep_schedule":   s.security.SweepSchedule,
		"cleanup_schedule": s.retention.CleanupSchedule,
		"retention_days":   s.retention.LogRetentionDays,
	}).Info("Maintenance scheduler started")

	return nil
}

// Stop stops the cron runner and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Maintenance scheduler stopped")
}

// withSeconds accepts both 5- and 6-field expressions
func withSeconds(schedule, fallback string) string {
	if schedule == "" {
		return fallback
	}
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

func (s *Scheduler) runSweep() {
	start := time.Now()
	removed, err := s.sweeper.Sweep(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Anomaly window sweep failed")
		return
	}

	s.mu.Lock()
	s.lastSwept = removed
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"windows_removed": removed,
		"duration":        time.Since(start).String(),
	}).Info("Completed anomaly window sweep")
}

func (s *Scheduler) runCleanup() {
	start := time.Now()
	olderThan := time.Duration(s.retention.LogRetentionDays) * 24 * time.Hour

	deleted, err := s.cleaner.Cleanup(context.Background(), olderThan)
	if err != nil {
		s.logger.WithError(err).Error("Activity log cleanup failed")
		return
	}

	s.mu.Lock()
	s.lastDeleted = deleted
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"retention_days": s.retention.LogRetentionDays,
		"logs_deleted":   deleted,
		"duration":       time.Since(start).String(),
	}).Info("Completed scheduled activity log cleanup")
}

// RunNow runs both jobs synchronously (manual trigger)
func (s *Scheduler) RunNow() {
	s.runSweep()
	if s.retention.CleanupEnabled {
		s.runCleanup()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"running":              s.running,
		"sweep_schedule":       s.security.SweepSchedule,
		"cleanup_enabled":      s.retention.CleanupEnabled,
		"cleanup_schedule":     s.retention.CleanupSchedule,
		"retention_days":       s.retention.LogRetentionDays,
		"last_windows_removed": s.lastSwept,
		"last_logs_deleted":    s.lastDeleted,
	}

	if s.cron != nil && s.running {
		var next time.Time
		for _, e := range s.cron.Entries() {
			if next.IsZero() || e.Next.Before(next) {
				next = e.Next
			}
		}
		if !next.IsZero() {
			stats["next_run"] = next.Format(time.RFC3339)
		}
	}

	return stats
}
