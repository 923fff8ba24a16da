package services

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentverse-backend/internal/models"
)

type signatureFixture struct {
	svc        *SignatureService
	agreements *fakeAgreements
	activity   *recordingActivity
	clock      *testClock
	tenant     *models.User
	landlord   *models.User
	lease      *models.Lease
}

func newSignatureFixture(t *testing.T) *signatureFixture {
	t.Helper()

	clock := newTestClock()
	agreements := newFakeAgreements()
	activity := &recordingActivity{}
	tenant := &models.User{ID: uuid.New(), Email: "jane@x.com", Name: "Jane Doe"}
	landlord := &models.User{ID: uuid.New(), Email: "john@x.com", FirstName: "John", LastName: "Roe"}

	lease := agreements.addLease(tenant, landlord)
	agreements.addAgreement(lease, models.AgreementPending)

	svc := NewSignatureService(agreements, activity, quietLogger())
	svc.now = clock.Now

	return &signatureFixture{
		svc:        svc,
		agreements: agreements,
		activity:   activity,
		clock:      clock,
		tenant:     tenant,
		landlord:   landlord,
		lease:      lease,
	}
}

func TestSign_TenantThenLandlord(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	res, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "  Jane Doe ", testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementSignedByTenant, res.Status)
	assert.Equal(t, models.PartyTenant, res.Details.Party)
	assert.Equal(t, "Jane Doe", *res.Agreement.TenantSignature)
	assert.Equal(t, testMeta.IPAddress, *res.Agreement.TenantIP)
	assert.Equal(t, testMeta.UserAgent, *res.Agreement.TenantUserAgent)
	assert.True(t, strings.HasPrefix(res.Details.SignatureID, "SIG-"))

	full, err := f.svc.IsFullySigned(ctx, f.lease.ID)
	require.NoError(t, err)
	assert.False(t, full)

	res, err = f.svc.Sign(ctx, f.lease.ID, f.landlord.ID, "John Roe", testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementCompleted, res.Status)

	full, err = f.svc.IsFullySigned(ctx, f.lease.ID)
	require.NoError(t, err)
	assert.True(t, full)

	assert.Equal(t, []models.ActivityAction{
		models.ActionAgreementSigned,
		models.ActionAgreementSigned,
		models.ActionAgreementCompleted,
	}, f.activity.actions())
}

func TestSign_OrderIndependent(t *testing.T) {
	tenantFirst := newSignatureFixture(t)
	landlordFirst := newSignatureFixture(t)
	ctx := context.Background()

	_, err := tenantFirst.svc.Sign(ctx, tenantFirst.lease.ID, tenantFirst.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)
	a, err := tenantFirst.svc.Sign(ctx, tenantFirst.lease.ID, tenantFirst.landlord.ID, "John Roe", testMeta)
	require.NoError(t, err)

	res, err := landlordFirst.svc.Sign(ctx, landlordFirst.lease.ID, landlordFirst.landlord.ID, "John Roe", testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementSignedByLandlord, res.Status)
	b, err := landlordFirst.svc.Sign(ctx, landlordFirst.lease.ID, landlordFirst.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)

	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, *a.Agreement.TenantSignature, *b.Agreement.TenantSignature)
	assert.Equal(t, *a.Agreement.LandlordSignature, *b.Agreement.LandlordSignature)
	assert.True(t, a.Agreement.IsFullySigned())
	assert.True(t, b.Agreement.IsFullySigned())
}

func TestSign_NoResign(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	_, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)
	before, err := f.agreements.FindByLeaseID(ctx, f.lease.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Someone Else", RequestMeta{IPAddress: "10.9.9.9", UserAgent: "other"})
	assert.ErrorIs(t, err, ErrAlreadySigned)

	after, err := f.agreements.FindByLeaseID(ctx, f.lease.ID)
	require.NoError(t, err)
	assert.Equal(t, *before.TenantSignature, *after.TenantSignature)
	assert.Equal(t, *before.TenantSignedAt, *after.TenantSignedAt)
	assert.Equal(t, *before.TenantIP, *after.TenantIP)
	assert.Equal(t, *before.TenantUserAgent, *after.TenantUserAgent)
	assert.Equal(t, models.AgreementSignedByTenant, after.Status)
}

func TestSign_ConcurrentSamePartyOnlyOnce(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadySigned)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}

func TestSign_ConcurrentBothPartiesComplete(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{f.tenant.ID, f.landlord.ID} {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Sign(ctx, f.lease.ID, userID, "signed", testMeta)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	a, err := f.agreements.FindByLeaseID(ctx, f.lease.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementCompleted, a.Status)
}

func TestSign_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newSignatureFixture(t)
		_, err := f.svc.Sign(ctx, uuid.New(), f.tenant.ID, "Jane Doe", testMeta)
		assert.ErrorIs(t, err, ErrAgreementNotFound)
	})

	t.Run("not a party", func(t *testing.T) {
		f := newSignatureFixture(t)
		_, err := f.svc.Sign(ctx, f.lease.ID, uuid.New(), "Mallory", testMeta)
		assert.ErrorIs(t, err, ErrNotParty)
	})

	t.Run("not a party wins over finalized", func(t *testing.T) {
		f := newSignatureFixture(t)
		f.agreements.byLease[f.lease.ID].Status = models.AgreementCancelled
		_, err := f.svc.Sign(ctx, f.lease.ID, uuid.New(), "Mallory", testMeta)
		assert.ErrorIs(t, err, ErrNotParty)
	})

	t.Run("finalized wins over already signed", func(t *testing.T) {
		f := newSignatureFixture(t)
		_, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
		require.NoError(t, err)
		_, err = f.svc.Sign(ctx, f.lease.ID, f.landlord.ID, "John Roe", testMeta)
		require.NoError(t, err)

		_, err = f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newSignatureFixture(t)
		f.agreements.byLease[f.lease.ID].Status = models.AgreementCancelled
		_, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("empty text", func(t *testing.T) {
		f := newSignatureFixture(t)
		_, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "   ", testMeta)
		assert.ErrorIs(t, err, ErrSignatureRequired)
	})
}

func TestSign_SelfLeaseFillsTenantThenLandlord(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()
	self := f.agreements.addLease(f.tenant, f.tenant)
	f.agreements.addAgreement(self, models.AgreementPending)

	res, err := f.svc.Sign(ctx, self.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.PartyTenant, res.Details.Party)
	assert.Equal(t, models.AgreementSignedByTenant, res.Status)

	status, err := f.svc.SignatureStatus(ctx, self.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.False(t, status.UserSignature.HasSigned)

	res, err = f.svc.Sign(ctx, self.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.PartyLandlord, res.Details.Party)
	assert.Equal(t, models.AgreementCompleted, res.Status)

	_, err = f.svc.Sign(ctx, self.ID, f.tenant.ID, "Jane Doe", testMeta)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestSignatureStatus(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	_, err := f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)

	status, err := f.svc.SignatureStatus(ctx, f.lease.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, status.UserSignature.Authorized)
	assert.True(t, status.UserSignature.HasSigned)
	assert.Equal(t, models.PartyTenant, status.UserSignature.Role)
	assert.NotNil(t, status.UserSignature.SignedAt)
	assert.True(t, status.AgreementStatus.TenantSigned)
	assert.False(t, status.AgreementStatus.LandlordSigned)
	assert.False(t, status.AgreementStatus.IsFullySigned)
	assert.Equal(t, models.AgreementSignedByTenant, status.AgreementStatus.Status)

	landlord, err := f.svc.SignatureStatus(ctx, f.lease.ID, f.landlord.ID)
	require.NoError(t, err)
	assert.False(t, landlord.UserSignature.HasSigned)
	assert.Equal(t, models.PartyLandlord, landlord.UserSignature.Role)
}

func TestSignatureStatus_NonPartyIsAResult(t *testing.T) {
	f := newSignatureFixture(t)

	status, err := f.svc.SignatureStatus(context.Background(), f.lease.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, status.UserSignature.Authorized)
	assert.False(t, status.UserSignature.HasSigned)
	assert.NotEmpty(t, status.UserSignature.Reason)
}

func TestSignatureQR(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	qr, err := f.svc.SignatureQR(ctx, f.lease.ID, f.landlord.ID, testMeta)
	require.NoError(t, err)
	assert.Equal(t, "John Roe", qr.UserInfo.Name)
	assert.Equal(t, models.PartyLandlord, qr.UserInfo.Role)
	assert.Equal(t, "john@x.com", qr.UserInfo.Email)
	assert.Equal(t, models.AgreementPending, qr.AgreementInfo.Status)

	require.True(t, strings.HasPrefix(qr.QRCode, "data:image/png;base64,"))
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(qr.QRCode, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
	assert.NotEqual(t, PlaceholderQR, qr.QRCode)

	_, err = f.svc.SignatureQR(ctx, f.lease.ID, uuid.New(), testMeta)
	assert.ErrorIs(t, err, ErrNotParty)
}

func TestGenerateCancelReset(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()
	admin := uuid.New()

	fresh := f.agreements.addLease(f.tenant, f.landlord)
	a, err := f.svc.Generate(ctx, fresh.ID, admin, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementPending, a.Status)

	_, err = f.svc.Generate(ctx, fresh.ID, admin, testMeta)
	assert.ErrorIs(t, err, ErrAgreementExists)

	_, err = f.svc.Generate(ctx, uuid.New(), admin, testMeta)
	assert.ErrorIs(t, err, ErrLeaseNotFound)

	_, err = f.svc.Sign(ctx, fresh.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)

	reset, err := f.svc.Reset(ctx, fresh.ID, admin, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementPending, reset.Status)
	assert.Nil(t, reset.TenantSignature)

	_, err = f.svc.Sign(ctx, fresh.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, fresh.ID, admin, "tenant withdrew", testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "tenant withdrew", *cancelled.CancelReason)

	_, err = f.svc.Cancel(ctx, fresh.ID, admin, "", testMeta)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	_, err = f.svc.Reset(ctx, fresh.ID, admin, testMeta)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	_, err = f.svc.Reset(ctx, uuid.New(), admin, testMeta)
	assert.ErrorIs(t, err, ErrAgreementNotFound)
}

func TestPendingForUser(t *testing.T) {
	f := newSignatureFixture(t)
	ctx := context.Background()

	pending, err := f.svc.PendingForUser(ctx, f.landlord.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.Sign(ctx, f.lease.ID, f.tenant.ID, "Jane Doe", testMeta)
	require.NoError(t, err)

	pending, err = f.svc.PendingForUser(ctx, f.landlord.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.lease.ID, pending[0].LeaseID)
}

func TestNewSignatureID(t *testing.T) {
	at := time.UnixMilli(1767225600123)
	id := NewSignatureID(at)

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "SIG", parts[0])
	assert.Equal(t, "1767225600123", parts[1])
	assert.Len(t, parts[2], 9)
	assert.Equal(t, "", strings.Trim(parts[2], base36))
	assert.NotEqual(t, id, NewSignatureID(at))
}
