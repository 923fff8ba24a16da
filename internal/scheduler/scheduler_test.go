package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentverse-backend/internal/config"
)

type stubSweeper struct {
	removed int
	err     error
	calls   int
}

func (s *stubSweeper) Sweep(context.Context) (int, error) {
	s.calls++
	return s.removed, s.err
}

type stubCleaner struct {
	deleted   int64
	olderThan time.Duration
	calls     int
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.calls++
	s.olderThan = olderThan
	return s.deleted, nil
}

func newTestScheduler(sweeper WindowSweeper, cleaner LogCleaner, cleanupEnabled bool) *Scheduler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewScheduler(sweeper, cleaner,
		config.SecurityConfig{SweepSchedule: "*/5 * * * *"},
		config.RetentionConfig{LogRetentionDays: 30, CleanupEnabled: cleanupEnabled, CleanupSchedule: "0 0 3 * * *"},
		logger,
	)
}

func TestWithSeconds(t *testing.T) {
	assert.Equal(t, "0 */5 * * * *", withSeconds("*/5 * * * *", "x"))
	assert.Equal(t, "0 0 3 * * *", withSeconds("0 0 3 * * *", "x"))
	assert.Equal(t, "x", withSeconds("", "x"))
}

func TestRunNow(t *testing.T) {
	sweeper := &stubSweeper{removed: 3}
	cleaner := &stubCleaner{deleted: 42}
	s := newTestScheduler(sweeper, cleaner, true)

	s.RunNow()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, 30*24*time.Hour, cleaner.olderThan)

	stats := s.GetStats()
	assert.Equal(t, 3, stats["last_windows_removed"])
	assert.Equal(t, int64(42), stats["last_logs_deleted"])
}

func TestRunNow_CleanupDisabled(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("redis down")}
	cleaner := &stubCleaner{}
	s := newTestScheduler(sweeper, cleaner, false)

	s.RunNow()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 0, cleaner.calls)
	assert.Equal(t, 0, s.GetStats()["last_windows_removed"])
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&stubSweeper{}, &stubCleaner{}, true)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Contains(t, s.GetStats(), "next_run")

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewScheduler(&stubSweeper{}, &stubCleaner{},
		config.SecurityConfig{SweepSchedule: "every hour"},
		config.RetentionConfig{},
		logger,
	)

	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}
