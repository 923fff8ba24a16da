package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_OTP(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	email, err := r.OTP(OTPData{Name: "Jane <Doe>", Code: "482913", ExpiryMinutes: 10})
	require.NoError(t, err)

	assert.Equal(t, "Your Verification Code - Rentverse", email.Subject)
	assert.Contains(t, email.HTML, "482913")
	assert.Contains(t, email.HTML, "Jane &lt;Doe&gt;")
	assert.Contains(t, email.Text, "expires in 10 minutes")
}

func TestRenderer_SecurityAlert(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	email, err := r.SecurityAlert(AlertData{
		AlertID:       "SEC-1-10001",
		IPAddress:     "10.0.0.1",
		AttemptCount:  21,
		Email:         "a@x.com",
		UserAgent:     "curl/8",
		Timestamp:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Severity:      "CRITICAL",
		WindowMinutes: 15,
	})
	require.NoError(t, err)

	assert.Equal(t, "Security Alert: 21 Failed Login Attempts from 10.0.0.1", email.Subject)
	assert.Contains(t, email.HTML, "CRITICAL: Suspicious login activity")
	assert.Contains(t, email.HTML, "2026-05-01 12:00:00 UTC")
	assert.Contains(t, email.Text, "Alert ID: SEC-1-10001")
}
