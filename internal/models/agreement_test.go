package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgreement(tenant, landlord uuid.UUID) *RentalAgreement {
	leaseID := uuid.New()
	return &RentalAgreement{
		ID:      uuid.New(),
		LeaseID: leaseID,
		Status:  AgreementPending,
		Lease:   &Lease{ID: leaseID, TenantID: tenant, LandlordID: landlord},
	}
}

func TestApplySignature_StatusTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		order  []Party
		status []AgreementStatus
	}{
		{
			name:   "tenant first",
			order:  []Party{PartyTenant, PartyLandlord},
			status: []AgreementStatus{AgreementSignedByTenant, AgreementCompleted},
		},
		{
			name:   "landlord first",
			order:  []Party{PartyLandlord, PartyTenant},
			status: []AgreementStatus{AgreementSignedByLandlord, AgreementCompleted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgreement(uuid.New(), uuid.New())
			for i, p := range tt.order {
				a.ApplySignature(p, Signature{Text: string(p), SignedAt: now, IPAddress: "10.0.0.1", UserAgent: "ua"})
				assert.Equal(t, tt.status[i], a.Status)
			}
			assert.True(t, a.IsFullySigned())
			assert.True(t, a.Status.IsTerminal())
		})
	}
}

func TestApplySignature_SetsQuadrupleTogether(t *testing.T) {
	a := newAgreement(uuid.New(), uuid.New())
	at := time.Now().UTC()

	a.ApplySignature(PartyLandlord, Signature{Text: "John Roe", SignedAt: at, IPAddress: "192.0.2.7", UserAgent: "curl/8"})

	require.NotNil(t, a.LandlordSignature)
	assert.Equal(t, "John Roe", *a.LandlordSignature)
	assert.Equal(t, at, *a.LandlordSignedAt)
	assert.Equal(t, "192.0.2.7", *a.LandlordIP)
	assert.Equal(t, "curl/8", *a.LandlordUserAgent)
	assert.Nil(t, a.TenantSignature)
	assert.Nil(t, a.TenantSignedAt)
	assert.False(t, a.IsFullySigned())
}

func TestPartiesOf(t *testing.T) {
	tenant, landlord, stranger := uuid.New(), uuid.New(), uuid.New()
	a := newAgreement(tenant, landlord)

	assert.Equal(t, []Party{PartyTenant}, a.PartiesOf(tenant))
	assert.Equal(t, []Party{PartyLandlord}, a.PartiesOf(landlord))
	assert.Empty(t, a.PartiesOf(stranger))

	self := newAgreement(tenant, tenant)
	assert.Equal(t, []Party{PartyTenant, PartyLandlord}, self.PartiesOf(tenant))
}

func TestClearSignatures(t *testing.T) {
	a := newAgreement(uuid.New(), uuid.New())
	a.ApplySignature(PartyTenant, Signature{Text: "Jane Doe", SignedAt: time.Now()})

	a.ClearSignatures()

	assert.Equal(t, AgreementPending, a.Status)
	assert.False(t, a.HasSigned(PartyTenant))
	assert.Nil(t, a.TenantSignedAt)
}

func TestFailureWindow_Prune(t *testing.T) {
	now := time.Now()
	w := &FailureWindow{Attempts: []time.Time{
		now.Add(-20 * time.Minute),
		now.Add(-15 * time.Minute),
		now.Add(-14 * time.Minute),
		now.Add(-time.Second),
	}}
	original := w.Attempts

	assert.Equal(t, 2, w.CountWithin(now, 15*time.Minute))
	w.Prune(now, 15*time.Minute)

	assert.Len(t, w.Attempts, 2)
	assert.Len(t, original, 4)
	assert.Equal(t, now.Add(-20*time.Minute), original[0])
}
