package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"rentverse-backend/internal/models"
)

// ActivityRepository persists activity entries
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityPublisher streams persisted entries to other consumers
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, entry *models.ActivityLog) error
}

// ActivityRecorder is what the flows need from the activity sink
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// RequestMeta identifies where a request came from
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ActivityEntry is one event handed to the sink. UserID is nil for events
// that cannot be tied to an account.
type ActivityEntry struct {
	UserID   *uuid.UUID
	Action   models.ActivityAction
	Details  string
	Severity models.Severity
	Meta     RequestMeta
	Metadata map[string]interface{}
}

const DefaultActivityLimit = 50

// ActivityService is the append-only audit sink shared by every flow
type ActivityService struct {
	repo      ActivityRepository
	publisher ActivityPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

// NewActivityService creates the sink. publisher may be nil.
func NewActivityService(repo ActivityRepository, publisher ActivityPublisher, logger *logrus.Logger) *ActivityService {
	return &ActivityService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Record logs the event and, when it belongs to a user, persists and
// publishes it. Failures are logged and never returned.
func (s *ActivityService) Record(ctx context.Context, entry ActivityEntry) {
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	fields := logrus.Fields{
		"action":     entry.Action,
		"severity":   entry.Severity,
		"ip_address": entry.Meta.IPAddress,
	}
	if entry.UserID != nil {
		fields["user_id"] = entry.UserID.String()
	}
	s.logger.WithFields(fields).Info(entry.Details)

	if entry.UserID == nil || s.repo == nil {
		return
	}

	log := &models.ActivityLog{
		ID:        uuid.New(),
		UserID:    *entry.UserID,
		Action:    entry.Action,
		Details:   entry.Details,
		Severity:  entry.Severity,
		IPAddress: entry.Meta.IPAddress,
		UserAgent: entry.Meta.UserAgent,
		Timestamp: s.now().UTC(),
	}
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			log.Metadata = datatypes.JSON(raw)
		}
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", entry.Action).Error("Failed to write activity log")
		return
	}

	if s.publisher != nil {
		if err := s.publisher.PublishActivity(ctx, log); err != nil {
			s.logger.WithError(err).WithField("action", entry.Action).Warn("Failed to publish activity event")
		}
	}
}

// ListRecent returns the newest entries, newest first
func (s *ActivityService) ListRecent(ctx context.Context, limit int) ([]models.ActivityLogView, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	logs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	views := make([]models.ActivityLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, l.View())
	}
	return views, nil
}

// Cleanup deletes entries older than the given age
func (s *ActivityService) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.UTC().Format(time.RFC3339),
	}).Info("Activity log cleanup completed")
	return deleted, nil
}

func userRef(id uuid.UUID) *uuid.UUID {
	return &id
}
