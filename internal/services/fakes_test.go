package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"rentverse-backend/internal/models"
	"rentverse-backend/internal/notify"
	"rentverse-backend/internal/repository"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byEmail: make(map[string]*models.User)}
	for _, u := range users {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byEmail[models.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeMailer struct {
	mu      sync.Mutex
	channel string
	err     error
	sent    []*notify.Message
}

func (m *fakeMailer) Send(_ context.Context, message *notify.Message) (*notify.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, message)
	if m.err != nil {
		return nil, m.err
	}
	return &notify.SendResult{ProviderName: m.channel, Success: true}, nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) last() *notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recordingActivity) Record(_ context.Context, entry ActivityEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingActivity) actions() []models.ActivityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ActivityAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *recordingActivity) find(action models.ActivityAction) (ActivityEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Action == action {
			return e, true
		}
	}
	return ActivityEntry{}, false
}

// fakeAgreements serializes updates with one mutex, like a row lock would
type fakeAgreements struct {
	mu      sync.Mutex
	byLease map[uuid.UUID]*models.RentalAgreement
	leases  map[uuid.UUID]*models.Lease
}

func newFakeAgreements() *fakeAgreements {
	return &fakeAgreements{
		byLease: make(map[uuid.UUID]*models.RentalAgreement),
		leases:  make(map[uuid.UUID]*models.Lease),
	}
}

func (f *fakeAgreements) addLease(tenant, landlord *models.User) *models.Lease {
	f.mu.Lock()
	defer f.mu.Unlock()
	lease := &models.Lease{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		LandlordID: landlord.ID,
		Tenant:     tenant,
		Landlord:   landlord,
	}
	f.leases[lease.ID] = lease
	return lease
}

func (f *fakeAgreements) addAgreement(lease *models.Lease, status models.AgreementStatus) *models.RentalAgreement {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &models.RentalAgreement{ID: uuid.New(), LeaseID: lease.ID, Status: status, Lease: lease}
	f.byLease[lease.ID] = a
	return a
}

func (f *fakeAgreements) FindByLeaseID(_ context.Context, leaseID uuid.UUID) (*models.RentalAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byLease[leaseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgreements) FindLease(_ context.Context, leaseID uuid.UUID) (*models.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leases[leaseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeAgreements) Create(_ context.Context, agreement *models.RentalAgreement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byLease[agreement.LeaseID]; ok {
		return repository.ErrDuplicate
	}
	cp := *agreement
	cp.Lease = f.leases[agreement.LeaseID]
	f.byLease[agreement.LeaseID] = &cp
	return nil
}

func (f *fakeAgreements) UpdateByLeaseID(_ context.Context, leaseID uuid.UUID, fn func(*models.RentalAgreement) error) (*models.RentalAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byLease[leaseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	if err := fn(&cp); err != nil {
		return nil, err
	}
	f.byLease[leaseID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAgreements) ListPendingForUser(_ context.Context, userID uuid.UUID) ([]*models.RentalAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RentalAgreement
	for _, a := range f.byLease {
		if len(a.PartiesOf(userID)) == 0 {
			continue
		}
		if a.Status == models.AgreementSignedByTenant || a.Status == models.AgreementSignedByLandlord {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockActivityRepository is a testify mock of ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockActivityRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ActivityLog), args.Error(1)
}

func (m *MockActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishActivity(ctx context.Context, entry *models.ActivityLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type fakeBlocked struct {
	mu      sync.Mutex
	ips     map[string]bool
	lookups int
}

func (f *fakeBlocked) Create(_ context.Context, ip *models.BlockedIP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ips[ip.IPAddress] {
		return repository.ErrDuplicate
	}
	f.ips[ip.IPAddress] = true
	return nil
}

func (f *fakeBlocked) Exists(_ context.Context, ipAddress string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.ips[ipAddress], nil
}
