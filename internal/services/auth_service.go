package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/config"
	"rentverse-backend/internal/metrics"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/notify"
	"rentverse-backend/internal/repository"
	"rentverse-backend/internal/store"
	"rentverse-backend/internal/templates"
)

// challengeRetention bounds how long a stale challenge lingers in the store.
// It is longer than the OTP lifetime so expiry is still observed on read.
const challengeRetention = 24 * time.Hour

// UserRepository is the credential store
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Mailer delivers a rendered message and reports the channel that took it
type Mailer interface {
	Send(ctx context.Context, message *notify.Message) (*notify.SendResult, error)
}

// FailureRecorder receives failed password checks
type FailureRecorder interface {
	RecordFailure(ctx context.Context, sourceIP, email, userAgent string) (*AnomalyResult, error)
}

// RegisterInput is the payload for account creation
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// EmailCheck is the public result of check-email
type EmailCheck struct {
	Exists   bool               `json:"exists"`
	IsActive bool               `json:"isActive,omitempty"`
	Role     models.Role        `json:"role,omitempty"`
	User     *models.PublicUser `json:"user"`
}

// ChallengeIssued is returned by login and resend
type ChallengeIssued struct {
	Email          string    `json:"email"`
	DeliveryMethod string    `json:"deliveryMethod"`
	ExpiresAt      time.Time `json:"-"`
}

// Session is returned by a successful OTP verification
type Session struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// AuthService runs the password + OTP login flow
type AuthService struct {
	users      UserRepository
	challenges store.Store[models.OTPChallenge]
	hasher     *PasswordHasher
	tokens     *JWTService
	mailer     Mailer
	renderer   *templates.Renderer
	anomalies  FailureRecorder
	activity   ActivityRecorder
	codes      CodeGenerator
	cfg        config.OTPConfig
	logger     *logrus.Logger
	now        func() time.Time
}

func NewAuthService(
	users UserRepository,
	challenges store.Store[models.OTPChallenge],
	hasher *PasswordHasher,
	tokens *JWTService,
	mailer Mailer,
	renderer *templates.Renderer,
	anomalies FailureRecorder,
	activity ActivityRecorder,
	cfg config.OTPConfig,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		challenges: challenges,
		hasher:     hasher,
		tokens:     tokens,
		mailer:     mailer,
		renderer:   renderer,
		anomalies:  anomalies,
		activity:   activity,
		codes:      NumericCode(cfg.Length),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a USER account. ADMIN cannot be self-assigned.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*models.User, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Name:         strings.TrimSpace(first + " " + last),
		Role:         models.RoleUser,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		UserID:  userRef(user.ID),
		Action:  models.ActionUserRegistered,
		Details: fmt.Sprintf("New user registered: %s", email),
		Meta:    meta,
	})
	return user, nil
}

// CheckEmail reports whether an account exists. Unknown emails are a
// result, not an error.
func (s *AuthService) CheckEmail(ctx context.Context, email string) (*EmailCheck, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return &EmailCheck{Exists: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	public := user.Public()
	return &EmailCheck{
		Exists:   true,
		IsActive: user.IsActive,
		Role:     user.Role,
		User:     &public,
	}, nil
}

// Login checks the password and issues a fresh OTP challenge, replacing any
// pending one for the same email.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*ChallengeIssued, error) {
	email = models.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user == nil || !user.IsActive || !s.hasher.Matches(password, user.PasswordHash) {
		s.loginFailed(ctx, email, user, meta)
		return nil, ErrInvalidCredentials
	}

	code, err := s.codes()
	if err != nil {
		return nil, err
	}

	now := s.now()
	challenge := models.OTPChallenge{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Role:      user.Role,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.TTL()),
		Attempts:  0,
		CreatedAt: now,
	}
	if err := s.challenges.Set(ctx, email, challenge, challengeRetention); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	method, err := s.deliver(ctx, challenge)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("delivery_failed").Inc()
		s.activity.Record(ctx, ActivityEntry{
			UserID:   userRef(user.ID),
			Action:   models.ActionOTPEmailFailed,
			Details:  fmt.Sprintf("Failed to send OTP to: %s", email),
			Severity: models.SeverityError,
			Meta:     meta,
		})
		return nil, ErrOTPDeliveryFailed
	}

	metrics.LoginsTotal.WithLabelValues("otp_sent").Inc()
	s.activity.Record(ctx, ActivityEntry{
		UserID:  userRef(user.ID),
		Action:  models.ActionOTPSent,
		Details: fmt.Sprintf("OTP sent to: %s via %s", email, method),
		Meta:    meta,
	})

	return &ChallengeIssued{Email: user.Email, DeliveryMethod: method, ExpiresAt: challenge.ExpiresAt}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string, user *models.User, meta RequestMeta) {
	metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()

	result, err := s.anomalies.RecordFailure(ctx, meta.IPAddress, email, meta.UserAgent)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record failed login")
	}

	fields := logrus.Fields{"user_known": user != nil}
	if result != nil {
		fields["window_attempts"] = result.Attempts
		fields["alert_triggered"] = result.Triggered
	}
	logSecurityEvent(s.logger, string(models.ActionLoginFailed), meta.IPAddress, email, fields)

	entry := ActivityEntry{
		Action:   models.ActionLoginFailed,
		Details:  fmt.Sprintf("Unknown email attempted: %s", email),
		Severity: models.SeverityWarning,
		Meta:     meta,
	}
	if user != nil {
		entry.UserID = userRef(user.ID)
		entry.Details = fmt.Sprintf("Invalid password for user: %s", email)
	}
	s.activity.Record(ctx, entry)
}

// VerifyOTP consumes one attempt of the pending challenge. Five consumed
// attempts exhaust it; the sixth call is rejected before comparing.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string, meta RequestMeta) (*Session, error) {
	email = models.NormalizeEmail(email)
	now := s.now()

	var (
		challenge models.OTPChallenge
		outcome   error
	)
	err := s.challenges.Update(ctx, email, challengeRetention, func(cur models.OTPChallenge, exists bool) (models.OTPChallenge, store.Mutation, error) {
		challenge = cur
		switch {
		case !exists:
			outcome = ErrNoChallenge
			return cur, store.Keep, nil
		case now.After(cur.ExpiresAt):
			outcome = ErrChallengeExpired
			return cur, store.Remove, nil
		case cur.Attempts >= s.cfg.MaxAttempts:
			outcome = ErrAttemptsExceeded
			return cur, store.Remove, nil
		}

		cur.Attempts++
		challenge = cur
		if subtle.ConstantTimeCompare([]byte(cur.Code), []byte(strings.TrimSpace(code))) != 1 {
			outcome = ErrInvalidOTP
			return cur, store.Save, nil
		}
		outcome = nil
		return cur, store.Remove, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update challenge: %w", err)
	}

	switch outcome {
	case nil:
	case ErrNoChallenge:
		metrics.OTPVerificationsTotal.WithLabelValues("no_challenge").Inc()
		return nil, outcome
	case ErrChallengeExpired:
		s.otpRejected(ctx, challenge, models.ActionOTPExpired, "OTP expired for: %s", "expired", meta)
		return nil, outcome
	case ErrAttemptsExceeded:
		s.otpRejected(ctx, challenge, models.ActionOTPAttemptsExceeded, "Too many OTP attempts for: %s", "attempts_exceeded", meta)
		return nil, outcome
	default:
		s.otpRejected(ctx, challenge, models.ActionOTPInvalid, "Invalid OTP entered for: %s", "invalid", meta)
		return nil, outcome
	}

	token, err := s.tokens.Generate(challenge.UserID, challenge.Role)
	if err != nil {
		return nil, err
	}

	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	s.activity.Record(ctx, ActivityEntry{
		UserID:  userRef(challenge.UserID),
		Action:  models.ActionLoginOTPSuccess,
		Details: fmt.Sprintf("User logged in via OTP: %s", challenge.Email),
		Meta:    meta,
	})

	return &Session{
		Token: token,
		User: models.PublicUser{
			ID:    challenge.UserID,
			Email: challenge.Email,
			Name:  challenge.Name,
			Role:  challenge.Role,
		},
	}, nil
}

func (s *AuthService) otpRejected(ctx context.Context, ch models.OTPChallenge, action models.ActivityAction, format, result string, meta RequestMeta) {
	metrics.OTPVerificationsTotal.WithLabelValues(result).Inc()
	logSecurityEvent(s.logger, string(action), meta.IPAddress, ch.Email, logrus.Fields{"attempts": ch.Attempts})
	s.activity.Record(ctx, ActivityEntry{
		UserID:   userRef(ch.UserID),
		Action:   action,
		Details:  fmt.Sprintf(format, ch.Email),
		Severity: models.SeverityWarning,
		Meta:     meta,
	})
}

// ResendOTP replaces the pending code once the cooldown since the last issue
// has passed, resetting the attempt counter.
func (s *AuthService) ResendOTP(ctx context.Context, email string, meta RequestMeta) (*ChallengeIssued, error) {
	email = models.NormalizeEmail(email)

	code, err := s.codes()
	if err != nil {
		return nil, err
	}
	now := s.now()
	cooldown := s.cfg.ResendCooldown()

	var (
		challenge models.OTPChallenge
		outcome   error
	)
	err = s.challenges.Update(ctx, email, challengeRetention, func(cur models.OTPChallenge, exists bool) (models.OTPChallenge, store.Mutation, error) {
		challenge = cur
		if !exists {
			outcome = ErrNoChallenge
			return cur, store.Keep, nil
		}
		if elapsed := now.Sub(cur.CreatedAt); elapsed < cooldown {
			outcome = &CooldownError{Remaining: cooldown - elapsed}
			return cur, store.Keep, nil
		}

		cur.Code = code
		cur.ExpiresAt = now.Add(s.cfg.TTL())
		cur.Attempts = 0
		cur.CreatedAt = now
		challenge = cur
		outcome = nil
		return cur, store.Save, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update challenge: %w", err)
	}
	if outcome != nil {
		return nil, outcome
	}

	method, err := s.deliver(ctx, challenge)
	if err != nil {
		s.activity.Record(ctx, ActivityEntry{
			UserID:   userRef(challenge.UserID),
			Action:   models.ActionOTPResendFailed,
			Details:  fmt.Sprintf("Failed to resend OTP to: %s", email),
			Severity: models.SeverityError,
			Meta:     meta,
		})
		return nil, ErrOTPDeliveryFailed
	}

	s.activity.Record(ctx, ActivityEntry{
		UserID:  userRef(challenge.UserID),
		Action:  models.ActionOTPResent,
		Details: fmt.Sprintf("OTP resent to: %s via %s", email, method),
		Meta:    meta,
	})
	return &ChallengeIssued{Email: challenge.Email, DeliveryMethod: method, ExpiresAt: challenge.ExpiresAt}, nil
}

// deliver sends the code and returns the channel that accepted it
func (s *AuthService) deliver(ctx context.Context, ch models.OTPChallenge) (string, error) {
	email, err := s.renderer.OTP(templates.OTPData{
		Name:          ch.Name,
		Code:          ch.Code,
		ExpiryMinutes: s.cfg.TTLMinutes,
		Year:          s.now().Year(),
	})
	if err != nil {
		return "", err
	}

	result, err := s.mailer.Send(ctx, &notify.Message{
		To:       ch.Email,
		Subject:  email.Subject,
		Body:     email.Text,
		BodyHTML: email.HTML,
		Metadata: map[string]interface{}{"type": "otp"},
	})
	if err != nil {
		metrics.OTPDeliveriesTotal.WithLabelValues("none", "failed").Inc()
		s.logger.WithError(err).WithField("email_masked", maskEmail(ch.Email)).Error("OTP delivery failed on every channel")
		return "", err
	}

	metrics.OTPDeliveriesTotal.WithLabelValues(result.ProviderName, "sent").Inc()
	if result.ProviderName == notify.ChannelConsole {
		s.logger.WithFields(logrus.Fields{
			"email": ch.Email,
			"code":  ch.Code,
		}).Warn("No email channel configured, OTP written to log")
	}
	return result.ProviderName, nil
}

// ValidateToken decodes a bearer token
func (s *AuthService) ValidateToken(token string) (*Claims, error) {
	return s.tokens.Validate(token)
}
