package services

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// logSecurityEvent writes a structured security line. Emails are masked.
func logSecurityEvent(logger *logrus.Logger, eventType, ip, email string, details logrus.Fields) {
	fields := logrus.Fields{
		"event_type":     eventType,
		"ip_address":     ip,
		"email_masked":   maskEmail(email),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"security_event": true,
	}
	for k, v := range details {
		fields[k] = v
	}
	logger.WithFields(fields).Info("Security event")
}

func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) <= 2 {
		return "**@" + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + "@" + domain
}
