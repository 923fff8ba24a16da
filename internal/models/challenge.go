package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPChallenge is the pending one-time passcode for an email
type OTPChallenge struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// FailureWindow tracks failed logins from one source address
type FailureWindow struct {
	Attempts     []time.Time `json:"attempts"`
	Email        string      `json:"email,omitempty"`
	UserAgent    string      `json:"user_agent,omitempty"`
	FirstAttempt time.Time   `json:"first_attempt"`
	LastAttempt  time.Time   `json:"last_attempt"`
	AlertsSent   int         `json:"alerts_sent"`
	LastAlertAt  *time.Time  `json:"last_alert_at,omitempty"`
}

// Prune drops attempts that fall outside the window ending at now. It
// never writes into the old backing array, so copies read elsewhere stay intact.
func (w *FailureWindow) Prune(now time.Time, window time.Duration) {
	kept := make([]time.Time, 0, len(w.Attempts)+1)
	for _, t := range w.Attempts {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	w.Attempts = kept
}

// CountWithin counts attempts inside the window without modifying w
func (w *FailureWindow) CountWithin(now time.Time, window time.Duration) int {
	n := 0
	for _, t := range w.Attempts {
		if now.Sub(t) < window {
			n++
		}
	}
	return n
}
