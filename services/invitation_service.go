package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/google/uuid"
)

// InvitationService creates and accepts tenant invitations
type InvitationService struct {
	repo       InvitationRepository
	defaultTTL time.Duration
	now        func() time.Time
	logger     *utils.Logger
}

// NewInvitationService creates an invitation service whose invitations
// expire after ttlDays unless the request says otherwise
func NewInvitationService(repo InvitationRepository, ttlDays int) *InvitationService {
	if ttlDays < 1 {
		ttlDays = 7
	}
	return &InvitationService{
		repo:       repo,
		defaultTTL: time.Duration(ttlDays) * 24 * time.Hour,
		now:        time.Now,
		logger:     utils.GetLogger(),
	}
}

// CreateInvitation invites an email address into the tenant
func (s *InvitationService) CreateInvitation(ctx context.Context, tenantID, createdBy string, req *models.CreateInvitationRequest) (*models.Invitation, error) {
	now := s.now().UTC()
	ttl := s.defaultTTL
	if req.ExpiresInDays > 0 {
		ttl = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	inv := &models.Invitation{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Email:     normalizeEmail(req.Email),
		Role:      req.Role,
		Token:     uuid.New().String(),
		CreatedBy: createdBy,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.logger.WithTenant(tenantID).WithSource("invitation_service").Info("Invitation created", map[string]interface{}{
		"role":       string(inv.Role),
		"expires_at": inv.ExpiresAt,
	})
	return inv, nil
}

// GetInvitation looks up an invitation by token
func (s *InvitationService) GetInvitation(ctx context.Context, token string) (*models.Invitation, error) {
	return s.repo.GetInvitationByToken(ctx, token)
}

// AcceptInvitation turns the invitation into a membership of the accepting user
func (s *InvitationService) AcceptInvitation(ctx context.Context, token, userID, email string) (*models.TenantUser, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	switch {
	case inv.Accepted:
		return nil, ErrInvitationAccepted
	case !now.Before(inv.ExpiresAt):
		return nil, ErrInvitationExpired
	case normalizeEmail(email) != inv.Email:
		return nil, ErrInvitationEmailMismatch
	}

	member := &models.TenantUser{
		ID:       uuid.New().String(),
		TenantID: inv.TenantID,
		UserID:   userID,
		Email:    inv.Email,
		Role:     inv.Role,
		JoinedAt: now,
	}
	if err := s.repo.AcceptInvitation(ctx, inv.ID, member); err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	s.logger.WithTenant(inv.TenantID).WithSource("invitation_service").Info("Invitation accepted", map[string]interface{}{
		"user_id": userID,
		"role":    string(inv.Role),
	})
	return member, nil
}

// DeleteExpired removes every unaccepted invitation past its expiry
func (s *InvitationService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredInvitations(ctx, s.now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
