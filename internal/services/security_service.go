package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentverse-backend/internal/models"
	"rentverse-backend/internal/repository"
)

const (
	banReason     = "Banned by Admin via Dashboard"
	blockCacheTTL = time.Minute
)

// BlockedIPRepository stores banned addresses
type BlockedIPRepository interface {
	Create(ctx context.Context, ip *models.BlockedIP) error
	Exists(ctx context.Context, ipAddress string) (bool, error)
}

// SourceStatusReader exposes the anomaly detector's status query
type SourceStatusReader interface {
	Status(ctx context.Context, sourceIP string) (*SourceStatus, error)
}

type blockEntry struct {
	blocked   bool
	checkedAt time.Time
}

// SecurityService handles administrative IP bans and their enforcement
type SecurityService struct {
	blocked  BlockedIPRepository
	status   SourceStatusReader
	activity ActivityRecorder
	logger   *logrus.Logger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]blockEntry
}

func NewSecurityService(blocked BlockedIPRepository, status SourceStatusReader, activity ActivityRecorder, logger *logrus.Logger) *SecurityService {
	return &SecurityService{
		blocked:  blocked,
		status:   status,
		activity: activity,
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]blockEntry),
	}
}

// BanIP records ipAddress as blocked. It reports false when the address was
// already banned.
func (s *SecurityService) BanIP(ctx context.Context, ipAddress string, adminID uuid.UUID, meta RequestMeta) (bool, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	if net.ParseIP(ipAddress) == nil {
		return false, ErrInvalidIP
	}

	exists, err := s.blocked.Exists(ctx, ipAddress)
	if err != nil {
		return false, fmt.Errorf("failed to check ban: %w", err)
	}
	if exists {
		return false, nil
	}

	err = s.blocked.Create(ctx, &models.BlockedIP{
		ID:        uuid.New(),
		IPAddress: ipAddress,
		Reason:    banReason,
		CreatedBy: &adminID,
		CreatedAt: s.now().UTC(),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store ban: %w", err)
	}

	s.remember(ipAddress, true)
	logSecurityEvent(s.logger, string(models.ActionIPBanned), ipAddress, "", logrus.Fields{"admin_id": adminID.String()})
	s.activity.Record(ctx, ActivityEntry{
		UserID:   userRef(adminID),
		Action:   models.ActionIPBanned,
		Details:  fmt.Sprintf("IP %s banned by admin", ipAddress),
		Severity: models.SeverityWarning,
		Meta:     meta,
	})
	return true, nil
}

// IsBlocked reports whether ipAddress is banned. Answers are cached for a
// minute; lookup errors fail open.
func (s *SecurityService) IsBlocked(ctx context.Context, ipAddress string) bool {
	now := s.now()

	s.mu.RLock()
	entry, ok := s.cache[ipAddress]
	s.mu.RUnlock()
	if ok && now.Sub(entry.checkedAt) < blockCacheTTL {
		return entry.blocked
	}

	blocked, err := s.blocked.Exists(ctx, ipAddress)
	if err != nil {
		s.logger.WithError(err).WithField("ip_address", ipAddress).Warn("Blocked IP lookup failed")
		return false
	}
	s.remember(ipAddress, blocked)
	return blocked
}

func (s *SecurityService) remember(ipAddress string, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ip, e := range s.cache {
		if now.Sub(e.checkedAt) >= blockCacheTTL {
			delete(s.cache, ip)
		}
	}
	s.cache[ipAddress] = blockEntry{blocked: blocked, checkedAt: now}
}

// IPStatus returns the failed-login window for ipAddress
func (s *SecurityService) IPStatus(ctx context.Context, ipAddress string) (*SourceStatus, error) {
	return s.status.Status(ctx, ipAddress)
}
