package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityAction is a free-form tag identifying an audited event
type ActivityAction string

const (
	ActionUserRegistered         ActivityAction = "USER_REGISTERED"
	ActionLoginFailed            ActivityAction = "LOGIN_FAILED"
	ActionOTPSent                ActivityAction = "OTP_SENT"
	ActionOTPEmailFailed         ActivityAction = "OTP_EMAIL_FAILED"
	ActionOTPExpired             ActivityAction = "OTP_EXPIRED"
	ActionOTPAttemptsExceeded    ActivityAction = "OTP_ATTEMPTS_EXCEEDED"
	ActionOTPInvalid             ActivityAction = "OTP_INVALID"
	ActionLoginOTPSuccess        ActivityAction = "LOGIN_OTP_SUCCESS"
	ActionOTPResent              ActivityAction = "OTP_RESENT"
	ActionOTPResendFailed        ActivityAction = "OTP_RESEND_FAILED"
	ActionSecurityAlertTriggered ActivityAction = "SECURITY_ALERT_TRIGGERED"
	ActionIPBanned               ActivityAction = "IP_BANNED"
	ActionAgreementGenerated     ActivityAction = "AGREEMENT_GENERATED"
	ActionAgreementSigned        ActivityAction = "AGREEMENT_SIGNED"
	ActionAgreementCompleted     ActivityAction = "AGREEMENT_COMPLETED"
	ActionAgreementCancelled     ActivityAction = "AGREEMENT_CANCELLED"
	ActionAgreementReset         ActivityAction = "AGREEMENT_RESET"
)

// Severity of an activity entry
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// ActivityLog is an immutable audit record. Storage requires a user relation.
type ActivityLog struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index"`
	Action    ActivityAction `json:"action" gorm:"type:varchar(64);not null;index"`
	Details   string         `json:"details" gorm:"type:text"`
	Severity  Severity       `json:"severity" gorm:"type:varchar(20);not null;default:'INFO'"`
	IPAddress string         `json:"ipAddress" gorm:"type:varchar(64)"`
	UserAgent string         `json:"userAgent" gorm:"type:text"`
	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	Timestamp time.Time      `json:"timestamp" gorm:"not null;index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// ActivityLogView is the admin listing shape
type ActivityLogView struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	Action    ActivityAction `json:"action"`
	Details   string         `json:"details"`
	Severity  Severity       `json:"severity"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent"`
	Timestamp time.Time      `json:"timestamp"`
	CreatedAt time.Time      `json:"createdAt"`
	User      *LogUser       `json:"user,omitempty"`
}

type LogUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (l *ActivityLog) View() ActivityLogView {
	v := ActivityLogView{
		ID:        l.ID,
		UserID:    l.UserID,
		Action:    l.Action,
		Details:   l.Details,
		Severity:  l.Severity,
		IPAddress: l.IPAddress,
		UserAgent: l.UserAgent,
		Timestamp: l.Timestamp,
		CreatedAt: l.Timestamp,
	}
	if l.User != nil {
		v.User = &LogUser{Email: l.User.Email, Name: l.User.DisplayName()}
	}
	return v
}

// BlockedIP is a source address banned by an administrator
type BlockedIP struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	IPAddress string     `json:"ipAddress" gorm:"type:varchar(64);uniqueIndex;not null"`
	Reason    string     `json:"reason" gorm:"type:text"`
	CreatedBy *uuid.UUID `json:"createdBy,omitempty" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (BlockedIP) TableName() string {
	return "blocked_ips"
}
