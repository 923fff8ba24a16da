package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	ErrOTPDeliveryFailed  = errors.New("failed to send verification code")
	ErrNoChallenge        = errors.New("no verification code request found")
	ErrChallengeExpired   = errors.New("verification code has expired")
	ErrAttemptsExceeded   = errors.New("too many verification attempts")
	ErrInvalidOTP         = errors.New("invalid verification code")
	ErrCooldownActive     = errors.New("resend cooldown active")

	ErrAgreementNotFound = errors.New("agreement not found")
	ErrLeaseNotFound     = errors.New("lease not found")
	ErrNotParty          = errors.New("user is not a party to this agreement")
	ErrAlreadyFinalized  = errors.New("agreement is already finalized")
	ErrAlreadySigned     = errors.New("party has already signed this agreement")
	ErrAgreementExists   = errors.New("agreement already exists for this lease")
	ErrSignatureRequired = errors.New("signature text is required")

	ErrInvalidIP = errors.New("invalid IP address")
)

// CooldownError carries the time left before a resend is allowed
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.Seconds())
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// Seconds rounds the remaining time up to whole seconds
func (e *CooldownError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}
