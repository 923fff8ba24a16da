package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/config"
	"rentverse-backend/internal/metrics"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/notify"
	"rentverse-backend/internal/store"
	"rentverse-backend/internal/templates"
)

const (
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"

	StatusSuspicious = "SUSPICIOUS"
	StatusMonitored  = "MONITORED"
)

// AnomalyResult is returned for every recorded failure
type AnomalyResult struct {
	Attempts  int    `json:"attempts"`
	Triggered bool   `json:"triggered"`
	AlertSent bool   `json:"alertSent"`
	Severity  string `json:"severity,omitempty"`
	Message   string `json:"message"`
}

// SourceStatus describes the failure window of one source address
type SourceStatus struct {
	Tracked      bool       `json:"tracked"`
	Attempts     int        `json:"attempts"`
	FirstAttempt *time.Time `json:"firstAttempt,omitempty"`
	LastAttempt  *time.Time `json:"lastAttempt,omitempty"`
	AlertsSent   int        `json:"alertsSent"`
	Status       string     `json:"status"`
}

// pendingAlert is captured inside the window update and dispatched after it
type pendingAlert struct {
	ip        string
	attempts  int
	email     string
	userAgent string
	severity  string
	at        time.Time
}

// AnomalyDetector counts failed logins per source address over a sliding
// window and alerts an operator when the threshold is crossed.
type AnomalyDetector struct {
	windows  store.Store[models.FailureWindow]
	mailer   Mailer
	renderer *templates.Renderer
	users    UserRepository
	activity ActivityRecorder
	cfg      config.SecurityConfig
	logger   *logrus.Logger
	now      func() time.Time
}

func NewAnomalyDetector(
	windows store.Store[models.FailureWindow],
	mailer Mailer,
	renderer *templates.Renderer,
	users UserRepository,
	activity ActivityRecorder,
	cfg config.SecurityConfig,
	logger *logrus.Logger,
) *AnomalyDetector {
	return &AnomalyDetector{
		windows:  windows,
		mailer:   mailer,
		renderer: renderer,
		users:    users,
		activity: activity,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordFailure appends a failure for sourceIP and decides, in the same
// atomic update, whether an alert is due.
func (d *AnomalyDetector) RecordFailure(ctx context.Context, sourceIP, email, userAgent string) (*AnomalyResult, error) {
	now := d.now()
	window := d.cfg.Window()

	var (
		result AnomalyResult
		alert  *pendingAlert
	)
	err := d.windows.Update(ctx, sourceIP, d.cfg.Retention(), func(cur models.FailureWindow, exists bool) (models.FailureWindow, store.Mutation, error) {
		result = AnomalyResult{}
		alert = nil

		if !exists {
			cur = models.FailureWindow{FirstAttempt: now}
		}
		cur.Prune(now, window)
		cur.Attempts = append(cur.Attempts, now)
		cur.LastAttempt = now
		if email != "" {
			cur.Email = email
		}
		if userAgent != "" {
			cur.UserAgent = userAgent
		}

		count := len(cur.Attempts)
		result.Attempts = count
		if count < d.cfg.FailedAttemptsThreshold {
			result.Message = fmt.Sprintf("%d failed attempts recorded", count)
			return cur, store.Save, nil
		}

		result.Triggered = true
		if cur.LastAlertAt != nil && now.Sub(*cur.LastAlertAt) <= d.cfg.AlertCooldown() {
			result.Message = "Threshold reached but alert cooldown active"
			return cur, store.Save, nil
		}

		at := now
		cur.AlertsSent++
		cur.LastAlertAt = &at
		result.AlertSent = true
		result.Severity = d.severity(count)
		result.Message = fmt.Sprintf("Security alert triggered for %d failed attempts", count)
		alert = &pendingAlert{
			ip:        sourceIP,
			attempts:  count,
			email:     cur.Email,
			userAgent: cur.UserAgent,
			severity:  result.Severity,
			at:        now,
		}
		return cur, store.Save, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record failed login: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"ip_address": sourceIP,
		"attempts":   result.Attempts,
		"window_min": d.cfg.WindowMinutes,
	}).Debug("Failed login tracked")

	if alert != nil {
		d.dispatch(ctx, alert)
	}
	return &result, nil
}

func (d *AnomalyDetector) severity(count int) string {
	if count >= d.cfg.CriticalThreshold {
		return SeverityCritical
	}
	return SeverityHigh
}

// dispatch emails the operator and records the alert against the targeted
// account when it exists. Failures are logged only.
func (d *AnomalyDetector) dispatch(ctx context.Context, a *pendingAlert) {
	metrics.SecurityAlertsTotal.WithLabelValues(a.severity).Inc()

	email := a.email
	if email == "" {
		email = "Unknown"
	}
	userAgent := a.userAgent
	if userAgent == "" {
		userAgent = "Unknown"
	}
	alertID := AlertID(a.at, a.ip)

	logSecurityEvent(d.logger, string(models.ActionSecurityAlertTriggered), a.ip, a.email, logrus.Fields{
		"alert_id": alertID,
		"attempts": a.attempts,
		"severity": a.severity,
	})

	rendered, err := d.renderer.SecurityAlert(templates.AlertData{
		AlertID:       alertID,
		IPAddress:     a.ip,
		AttemptCount:  a.attempts,
		Email:         email,
		UserAgent:     userAgent,
		Timestamp:     a.at,
		Severity:      a.severity,
		WindowMinutes: d.cfg.WindowMinutes,
		Year:          a.at.Year(),
	})
	if err != nil {
		d.logger.WithError(err).Error("Failed to render security alert")
	} else {
		res, err := d.mailer.Send(ctx, &notify.Message{
			To:       d.cfg.AlertRecipient,
			Subject:  rendered.Subject,
			Body:     rendered.Text,
			BodyHTML: rendered.HTML,
			Metadata: map[string]interface{}{"type": "security_alert", "alert_id": alertID},
		})
		if err != nil {
			d.logger.WithError(err).WithField("alert_id", alertID).Error("Failed to send security alert email")
		} else {
			d.logger.WithFields(logrus.Fields{
				"alert_id": alertID,
				"channel":  res.ProviderName,
			}).Info("Security alert email sent")
		}
	}

	if a.email == "" || d.users == nil {
		return
	}
	user, err := d.users.FindByEmail(ctx, a.email)
	if err != nil {
		return
	}

	severity := models.SeverityWarning
	if a.severity == SeverityCritical {
		severity = models.SeverityCritical
	}
	d.activity.Record(ctx, ActivityEntry{
		UserID:   userRef(user.ID),
		Action:   models.ActionSecurityAlertTriggered,
		Details:  fmt.Sprintf("Suspicious activity detected from IP %s: %d failed attempts", a.ip, a.attempts),
		Severity: severity,
		Meta:     RequestMeta{IPAddress: a.ip, UserAgent: userAgent},
		Metadata: map[string]interface{}{"alertId": alertID, "severity": a.severity},
	})
}

// Status reports the in-window count for sourceIP without modifying it
func (d *AnomalyDetector) Status(ctx context.Context, sourceIP string) (*SourceStatus, error) {
	w, ok, err := d.windows.Get(ctx, sourceIP)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SourceStatus{Tracked: false, Status: "No failed attempts recorded"}, nil
	}

	count := w.CountWithin(d.now(), d.cfg.Window())
	status := StatusMonitored
	if count >= d.cfg.FailedAttemptsThreshold {
		status = StatusSuspicious
	}

	first, last := w.FirstAttempt, w.LastAttempt
	return &SourceStatus{
		Tracked:      true,
		Attempts:     count,
		FirstAttempt: &first,
		LastAttempt:  &last,
		AlertsSent:   w.AlertsSent,
		Status:       status,
	}, nil
}

// Sweep evicts windows whose last attempt is older than the retention period
func (d *AnomalyDetector) Sweep(ctx context.Context) (int, error) {
	now := d.now()
	retention := d.cfg.Retention()

	removed, err := d.windows.Prune(ctx, func(_ string, w models.FailureWindow) bool {
		return now.Sub(w.LastAttempt) > retention
	})
	if err != nil {
		return removed, fmt.Errorf("failed to sweep failure windows: %w", err)
	}

	if removed > 0 {
		d.logger.WithField("removed", removed).Info("Cleaned up stale failure windows")
	}
	return removed, nil
}

// AlertID builds the display id SEC-<unix ms>-<ip without separators>
func AlertID(at time.Time, ip string) string {
	compact := strings.NewReplacer(".", "", ":", "").Replace(ip)
	return fmt.Sprintf("SEC-%d-%s", at.UnixMilli(), compact)
}
