package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/models"
)

// ActivityEvent is the payload published for each persisted activity entry
type ActivityEvent struct {
	ID        string                `json:"id"`
	UserID    string                `json:"userId"`
	Action    models.ActivityAction `json:"action"`
	Severity  models.Severity       `json:"severity"`
	Details   string                `json:"details"`
	IPAddress string                `json:"ipAddress,omitempty"`
	UserAgent string                `json:"userAgent,omitempty"`
	Timestamp string                `json:"timestamp"`
}

// Subject returns the subject an action is published on
func Subject(action models.ActivityAction) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, action)
}

// NewActivityEvent builds the wire payload for an entry
func NewActivityEvent(entry *models.ActivityLog) ActivityEvent {
	return ActivityEvent{
		ID:        entry.ID.String(),
		UserID:    entry.UserID.String(),
		Action:    entry.Action,
		Severity:  entry.Severity,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		Timestamp: entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Publisher publishes activity entries to JetStream
type Publisher struct {
	client *Client
	logger *logrus.Logger
}

func NewPublisher(client *Client, logger *logrus.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// PublishActivity publishes entry on rentverse.activity.<action>.
// A disconnected client is skipped without error.
func (p *Publisher) PublishActivity(ctx context.Context, entry *models.ActivityLog) error {
	if p.client == nil || !p.client.IsConnected() {
		p.logger.Debug("NATS not connected, skipping activity publish")
		return nil
	}

	data, err := json.Marshal(NewActivityEvent(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	subject := Subject(entry.Action)
	ack, err := p.client.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish activity event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"sequence": ack.Sequence,
		"stream":   ack.Stream,
	}).Debug("Published activity event")
	return nil
}
