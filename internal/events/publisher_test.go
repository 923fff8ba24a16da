package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentverse-backend/internal/models"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "rentverse.activity.LOGIN_FAILED", Subject(models.ActionLoginFailed))
}

func TestNewActivityEvent(t *testing.T) {
	entry := &models.ActivityLog{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Action:    models.ActionAgreementSigned,
		Severity:  models.SeverityInfo,
		Details:   "tenant signed",
		IPAddress: "10.0.0.1",
		Timestamp: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(NewActivityEvent(entry))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "AGREEMENT_SIGNED", decoded["action"])
	assert.Equal(t, entry.UserID.String(), decoded["userId"])
	assert.Equal(t, "2026-05-01T12:00:00.000Z", decoded["timestamp"])
	assert.NotContains(t, decoded, "userAgent")
}

func TestPublishActivity_NoClient(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p := NewPublisher(nil, logger)
	assert.NoError(t, p.PublishActivity(context.Background(), &models.ActivityLog{Action: models.ActionIPBanned}))
}
