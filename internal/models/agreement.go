package models

import (
	"time"

	"github.com/google/uuid"
)

// AgreementStatus is the lifecycle state of a rental agreement
type AgreementStatus string

const (
	AgreementDraft            AgreementStatus = "DRAFT"
	AgreementPending          AgreementStatus = "PENDING"
	AgreementSignedByTenant   AgreementStatus = "SIGNED_BY_TENANT"
	AgreementSignedByLandlord AgreementStatus = "SIGNED_BY_LANDLORD"
	AgreementCompleted        AgreementStatus = "COMPLETED"
	AgreementCancelled        AgreementStatus = "CANCELLED"
)

// IsTerminal reports whether no further signature operation is allowed
func (s AgreementStatus) IsTerminal() bool {
	return s == AgreementCompleted || s == AgreementCancelled
}

// Party identifies which side of a lease a user signs for
type Party string

const (
	PartyTenant   Party = "tenant"
	PartyLandlord Party = "landlord"
)

// Lease is owned by the bookings module; only the parties are used here
type Lease struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index"`
	LandlordID uuid.UUID `json:"landlordId" gorm:"type:uuid;not null;index"`
	Status     string    `json:"status" gorm:"type:varchar(32)"`
	CreatedAt  time.Time `json:"createdAt"`

	Tenant   *User `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Landlord *User `json:"landlord,omitempty" gorm:"foreignKey:LandlordID"`
}

func (Lease) TableName() string {
	return "leases"
}

// Signature is the tuple written when a party signs. The text is a typed
// name, not a cryptographic signature.
type Signature struct {
	Text      string
	SignedAt  time.Time
	IPAddress string
	UserAgent string
}

// RentalAgreement is the dual-party agreement attached to one lease
type RentalAgreement struct {
	ID      uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LeaseID uuid.UUID       `json:"leaseId" gorm:"type:uuid;uniqueIndex;not null"`
	Status  AgreementStatus `json:"status" gorm:"type:varchar(32);not null;default:'PENDING';index"`
	PDFURL  *string         `json:"pdfUrl" gorm:"column:pdf_url;type:text"`

	TenantSignature *string    `json:"tenantSignature" gorm:"type:text"`
	TenantSignedAt  *time.Time `json:"tenantSignedAt"`
	TenantIP        *string    `json:"tenantIpAddress" gorm:"column:tenant_ip_address;type:varchar(64)"`
	TenantUserAgent *string    `json:"tenantUserAgent" gorm:"type:text"`

	LandlordSignature *string    `json:"landlordSignature" gorm:"type:text"`
	LandlordSignedAt  *time.Time `json:"landlordSignedAt"`
	LandlordIP        *string    `json:"landlordIpAddress" gorm:"column:landlord_ip_address;type:varchar(64)"`
	LandlordUserAgent *string    `json:"landlordUserAgent" gorm:"type:text"`

	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CancelReason *string    `json:"cancelReason,omitempty" gorm:"type:text"`

	GeneratedAt time.Time `json:"generatedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Lease *Lease `json:"lease,omitempty" gorm:"foreignKey:LeaseID"`
}

func (RentalAgreement) TableName() string {
	return "rental_agreements"
}

// HasSigned reports whether the party's signature text is populated
func (a *RentalAgreement) HasSigned(p Party) bool {
	switch p {
	case PartyTenant:
		return a.TenantSignature != nil
	case PartyLandlord:
		return a.LandlordSignature != nil
	}
	return false
}

// SignedAt returns the party's signing time, if any
func (a *RentalAgreement) SignedAt(p Party) *time.Time {
	if p == PartyTenant {
		return a.TenantSignedAt
	}
	return a.LandlordSignedAt
}

// IsFullySigned is true iff both signature texts are set
func (a *RentalAgreement) IsFullySigned() bool {
	return a.TenantSignature != nil && a.LandlordSignature != nil
}

// PartiesOf returns the sides userID holds on the lease, tenant first
func (a *RentalAgreement) PartiesOf(userID uuid.UUID) []Party {
	if a.Lease == nil {
		return nil
	}
	var parties []Party
	if a.Lease.TenantID == userID {
		parties = append(parties, PartyTenant)
	}
	if a.Lease.LandlordID == userID {
		parties = append(parties, PartyLandlord)
	}
	return parties
}

// ApplySignature writes the party's quadruple and recomputes status.
// Callers check finalization and prior signatures first.
func (a *RentalAgreement) ApplySignature(p Party, sig Signature) {
	text, ip, ua, at := sig.Text, sig.IPAddress, sig.UserAgent, sig.SignedAt
	switch p {
	case PartyTenant:
		a.TenantSignature, a.TenantSignedAt, a.TenantIP, a.TenantUserAgent = &text, &at, &ip, &ua
	case PartyLandlord:
		a.LandlordSignature, a.LandlordSignedAt, a.LandlordIP, a.LandlordUserAgent = &text, &at, &ip, &ua
	}
	a.Status = a.derivedStatus()
}

// ClearSignatures empties both quadruples and returns the agreement to PENDING
func (a *RentalAgreement) ClearSignatures() {
	a.TenantSignature, a.TenantSignedAt, a.TenantIP, a.TenantUserAgent = nil, nil, nil, nil
	a.LandlordSignature, a.LandlordSignedAt, a.LandlordIP, a.LandlordUserAgent = nil, nil, nil, nil
	a.Status = AgreementPending
}

func (a *RentalAgreement) derivedStatus() AgreementStatus {
	switch {
	case a.IsFullySigned():
		return AgreementCompleted
	case a.TenantSignature != nil:
		return AgreementSignedByTenant
	case a.LandlordSignature != nil:
		return AgreementSignedByLandlord
	}
	return a.Status
}
