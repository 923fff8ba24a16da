package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"rentverse-backend/internal/metrics"
	"rentverse-backend/internal/models"
	"rentverse-backend/internal/repository"
)

const (
	qrSize = 256

	// PlaceholderQR is a 1x1 PNG returned when a code cannot be rendered
	PlaceholderQR = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg=="
)

// AgreementRepository persists rental agreements
type AgreementRepository interface {
	FindByLeaseID(ctx context.Context, leaseID uuid.UUID) (*models.RentalAgreement, error)
	FindLease(ctx context.Context, leaseID uuid.UUID) (*models.Lease, error)
	Create(ctx context.Context, agreement *models.RentalAgreement) error
	UpdateByLeaseID(ctx context.Context, leaseID uuid.UUID, fn func(*models.RentalAgreement) error) (*models.RentalAgreement, error)
	ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.RentalAgreement, error)
}

// SignatureDetails is the display record returned after signing. The id is
// generated per call and is not stored.
type SignatureDetails struct {
	SignatureID string       `json:"signatureId"`
	Party       models.Party `json:"role"`
	SignedAt    time.Time    `json:"signedAt"`
	IPAddress   string       `json:"ipAddress"`
	UserAgent   string       `json:"userAgent"`
}

// SignResult is the outcome of a successful sign call
type SignResult struct {
	Status    models.AgreementStatus  `json:"status"`
	Agreement *models.RentalAgreement `json:"agreement"`
	Details   SignatureDetails        `json:"signatureDetails"`
}

// UserSignature is the caller's own view of an agreement
type UserSignature struct {
	Authorized bool         `json:"authorized"`
	HasSigned  bool         `json:"hasSigned"`
	SignedAt   *time.Time   `json:"signedAt,omitempty"`
	Role       models.Party `json:"role,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// AgreementSummary is the agreement-wide signing state
type AgreementSummary struct {
	IsFullySigned    bool                   `json:"isFullySigned"`
	TenantSigned     bool                   `json:"tenantSigned"`
	LandlordSigned   bool                   `json:"landlordSigned"`
	TenantSignedAt   *time.Time             `json:"tenantSignedAt"`
	LandlordSignedAt *time.Time             `json:"landlordSignedAt"`
	Status           models.AgreementStatus `json:"status"`
}

// SignatureStatus combines both views for one lease
type SignatureStatus struct {
	UserSignature   UserSignature    `json:"userSignature"`
	AgreementStatus AgreementSummary `json:"agreementStatus"`
	LeaseID         uuid.UUID        `json:"leaseId"`
}

// SignatureQR is the scannable display payload for a party
type SignatureQR struct {
	QRCode        string          `json:"qrCode"`
	UserInfo      QRUserInfo      `json:"userInfo"`
	AgreementInfo QRAgreementInfo `json:"agreementInfo"`
}

type QRUserInfo struct {
	Name  string       `json:"name"`
	Role  models.Party `json:"role"`
	Email string       `json:"email"`
}

type QRAgreementInfo struct {
	LeaseID uuid.UUID              `json:"leaseId"`
	Status  models.AgreementStatus `json:"status"`
}

// qrPayload is encoded into the code. It is not a verifiable credential.
type qrPayload struct {
	Name        string       `json:"name"`
	Timestamp   string       `json:"timestamp"`
	LeaseID     uuid.UUID    `json:"leaseId"`
	Role        models.Party `json:"role"`
	SignatureID string       `json:"signatureId"`
	UserID      uuid.UUID    `json:"userId"`
	IPAddress   string       `json:"ipAddress"`
	UserAgent   string       `json:"userAgent"`
}

// SignatureService runs the dual-party signing workflow. A signature is a
// typed name plus request metadata; there is no cryptographic signing.
type SignatureService struct {
	agreements AgreementRepository
	activity   ActivityRecorder
	logger     *logrus.Logger
	now        func() time.Time
}

func NewSignatureService(agreements AgreementRepository, activity ActivityRecorder, logger *logrus.Logger) *SignatureService {
	return &SignatureService{
		agreements: agreements,
		activity:   activity,
		logger:     logger,
		now:        time.Now,
	}
}

// Sign records the acting user's signature. Checks run under the agreement's
// row lock in this order: not a party, finalized, already signed. On a lease
// where the user is both tenant and landlord the tenant slot fills first.
func (s *SignatureService) Sign(ctx context.Context, leaseID, userID uuid.UUID, text string, meta RequestMeta) (*SignResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrSignatureRequired
	}

	meta = withUnknown(meta)
	var (
		party    models.Party
		signedAt time.Time
	)
	agreement, err := s.agreements.UpdateByLeaseID(ctx, leaseID, func(a *models.RentalAgreement) error {
		party = ""
		parties := a.PartiesOf(userID)
		if len(parties) == 0 {
			return ErrNotParty
		}
		if a.Status.IsTerminal() {
			return ErrAlreadyFinalized
		}
		for _, p := range parties {
			if !a.HasSigned(p) {
				party = p
				break
			}
		}
		if party == "" {
			return ErrAlreadySigned
		}

		signedAt = s.now().UTC()
		a.ApplySignature(party, models.Signature{
			Text:      text,
			SignedAt:  signedAt,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = ErrAgreementNotFound
		}
		s.signFailed(party, err, leaseID, userID)
		return nil, err
	}

	metrics.SignaturesTotal.WithLabelValues(string(party), "signed").Inc()
	s.activity.Record(ctx, ActivityEntry{
		UserID:   userRef(userID),
		Action:   models.ActionAgreementSigned,
		Details:  fmt.Sprintf("Agreement for lease %s signed as %s", leaseID, party),
		Meta:     meta,
		Metadata: map[string]interface{}{"leaseId": leaseID.String(), "party": party, "status": agreement.Status},
	})
	if agreement.Status == models.AgreementCompleted {
		s.activity.Record(ctx, ActivityEntry{
			UserID:  userRef(userID),
			Action:  models.ActionAgreementCompleted,
			Details: fmt.Sprintf("Agreement for lease %s fully signed", leaseID),
			Meta:    meta,
		})
	}

	return &SignResult{
		Status:    agreement.Status,
		Agreement: agreement,
		Details: SignatureDetails{
			SignatureID: NewSignatureID(s.now()),
			Party:       party,
			SignedAt:    signedAt,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		},
	}, nil
}

func (s *SignatureService) signFailed(party models.Party, err error, leaseID, userID uuid.UUID) {
	result := "error"
	switch {
	case errors.Is(err, ErrAgreementNotFound):
		result = "not_found"
	case errors.Is(err, ErrNotParty):
		result = "not_party"
	case errors.Is(err, ErrAlreadyFinalized):
		result = "finalized"
	case errors.Is(err, ErrAlreadySigned):
		result = "already_signed"
	default:
		s.logger.WithError(err).WithField("lease_id", leaseID).Error("Failed to sign agreement")
	}
	metrics.SignaturesTotal.WithLabelValues(string(party), result).Inc()

	s.logger.WithFields(logrus.Fields{
		"lease_id": leaseID,
		"user_id":  userID,
		"result":   result,
	}).Info("Sign attempt rejected")
}

// SignatureStatus is a read path: a non-party gets an unauthorized result
// rather than an error.
func (s *SignatureService) SignatureStatus(ctx context.Context, leaseID, userID uuid.UUID) (*SignatureStatus, error) {
	agreement, err := s.find(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	status := &SignatureStatus{
		AgreementStatus: summarize(agreement),
		LeaseID:         leaseID,
	}

	parties := agreement.PartiesOf(userID)
	if len(parties) == 0 {
		status.UserSignature = UserSignature{Reason: "Not authorized to access this agreement"}
		return status, nil
	}

	party := parties[0]
	for _, p := range parties {
		if !agreement.HasSigned(p) {
			party = p
			break
		}
	}
	// a self-lease reports signed only once both slots are filled
	status.UserSignature = UserSignature{
		Authorized: true,
		HasSigned:  agreement.HasSigned(party),
		SignedAt:   agreement.SignedAt(party),
		Role:       party,
	}
	return status, nil
}

// IsFullySigned is true iff both parties have signed
func (s *SignatureService) IsFullySigned(ctx context.Context, leaseID uuid.UUID) (bool, error) {
	agreement, err := s.find(ctx, leaseID)
	if err != nil {
		return false, err
	}
	return agreement.IsFullySigned(), nil
}

// SignatureQR renders the display payload for the acting party. Rendering
// failures fall back to PlaceholderQR.
func (s *SignatureService) SignatureQR(ctx context.Context, leaseID, userID uuid.UUID, meta RequestMeta) (*SignatureQR, error) {
	agreement, err := s.find(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	parties := agreement.PartiesOf(userID)
	if len(parties) == 0 {
		return nil, ErrNotParty
	}
	party := parties[0]

	user := agreement.Lease.Tenant
	if party == models.PartyLandlord {
		user = agreement.Lease.Landlord
	}
	var name, email string
	if user != nil {
		name, email = user.DisplayName(), user.Email
	}

	meta = withUnknown(meta)
	now := s.now()
	payload := qrPayload{
		Name:        name,
		Timestamp:   now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		LeaseID:     leaseID,
		Role:        party,
		SignatureID: NewSignatureID(now),
		UserID:      userID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	}

	return &SignatureQR{
		QRCode:        s.renderQR(payload),
		UserInfo:      QRUserInfo{Name: name, Role: party, Email: email},
		AgreementInfo: QRAgreementInfo{LeaseID: leaseID, Status: agreement.Status},
	}, nil
}

func (s *SignatureService) renderQR(payload qrPayload) string {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode QR payload")
		return PlaceholderQR
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, qrSize)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to render signature QR code")
		return PlaceholderQR
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// PendingForUser lists agreements on the user's leases that are waiting on
// the second signature
func (s *SignatureService) PendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.RentalAgreement, error) {
	return s.agreements.ListPendingForUser(ctx, userID)
}

// Generate creates the PENDING agreement for an existing lease
func (s *SignatureService) Generate(ctx context.Context, leaseID, adminID uuid.UUID, meta RequestMeta) (*models.RentalAgreement, error) {
	lease, err := s.agreements.FindLease(ctx, leaseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLeaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lease: %w", err)
	}

	now := s.now().UTC()
	agreement := &models.RentalAgreement{
		ID:          uuid.New(),
		LeaseID:     lease.ID,
		Status:      models.AgreementPending,
		GeneratedAt: now,
	}
	if err := s.agreements.Create(ctx, agreement); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAgreementExists
		}
		return nil, fmt.Errorf("failed to create agreement: %w", err)
	}
	agreement.Lease = lease

	s.activity.Record(ctx, ActivityEntry{
		UserID:  userRef(adminID),
		Action:  models.ActionAgreementGenerated,
		Details: fmt.Sprintf("Agreement generated for lease %s", leaseID),
		Meta:    meta,
	})
	return agreement, nil
}

// Cancel moves a non-terminal agreement to CANCELLED
func (s *SignatureService) Cancel(ctx context.Context, leaseID, adminID uuid.UUID, reason string, meta RequestMeta) (*models.RentalAgreement, error) {
	reason = strings.TrimSpace(reason)
	agreement, err := s.agreements.UpdateByLeaseID(ctx, leaseID, func(a *models.RentalAgreement) error {
		if a.Status.IsTerminal() {
			return ErrAlreadyFinalized
		}
		at := s.now().UTC()
		a.Status = models.AgreementCancelled
		a.CancelledAt = &at
		if reason != "" {
			a.CancelReason = &reason
		}
		return nil
	})
	if err != nil {
		return nil, notFoundAs(err, ErrAgreementNotFound)
	}

	s.activity.Record(ctx, ActivityEntry{
		UserID:   userRef(adminID),
		Action:   models.ActionAgreementCancelled,
		Details:  fmt.Sprintf("Agreement for lease %s cancelled", leaseID),
		Severity: models.SeverityWarning,
		Meta:     meta,
		Metadata: map[string]interface{}{"reason": reason},
	})
	return agreement, nil
}

// Reset clears both signatures of a non-terminal agreement
func (s *SignatureService) Reset(ctx context.Context, leaseID, adminID uuid.UUID, meta RequestMeta) (*models.RentalAgreement, error) {
	agreement, err := s.agreements.UpdateByLeaseID(ctx, leaseID, func(a *models.RentalAgreement) error {
		if a.Status.IsTerminal() {
			return ErrAlreadyFinalized
		}
		a.ClearSignatures()
		return nil
	})
	if err != nil {
		return nil, notFoundAs(err, ErrAgreementNotFound)
	}

	s.activity.Record(ctx, ActivityEntry{
		UserID:   userRef(adminID),
		Action:   models.ActionAgreementReset,
		Details:  fmt.Sprintf("Signatures cleared on agreement for lease %s", leaseID),
		Severity: models.SeverityWarning,
		Meta:     meta,
	})
	return agreement, nil
}

func (s *SignatureService) find(ctx context.Context, leaseID uuid.UUID) (*models.RentalAgreement, error) {
	agreement, err := s.agreements.FindByLeaseID(ctx, leaseID)
	if err != nil {
		return nil, notFoundAs(err, ErrAgreementNotFound)
	}
	return agreement, nil
}

func summarize(a *models.RentalAgreement) AgreementSummary {
	return AgreementSummary{
		IsFullySigned:    a.IsFullySigned(),
		TenantSigned:     a.HasSigned(models.PartyTenant),
		LandlordSigned:   a.HasSigned(models.PartyLandlord),
		TenantSignedAt:   a.TenantSignedAt,
		LandlordSignedAt: a.LandlordSignedAt,
		Status:           a.Status,
	}
}

func notFoundAs(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}

func withUnknown(meta RequestMeta) RequestMeta {
	if meta.IPAddress == "" {
		meta.IPAddress = "unknown"
	}
	if meta.UserAgent == "" {
		meta.UserAgent = "unknown"
	}
	return meta
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewSignatureID returns SIG-<unix ms>-<9 base36 chars>
func NewSignatureID(at time.Time) string {
	suffix := make([]byte, 9)
	max := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			suffix[i] = '0'
			continue
		}
		suffix[i] = base36[n.Int64()]
	}
	return fmt.Sprintf("SIG-%d-%s", at.UnixMilli(), suffix)
}
