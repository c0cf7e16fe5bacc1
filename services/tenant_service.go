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

// TenantService manages tenants and their memberships
type TenantService struct {
	repo   TenantRepository
	now    func() time.Time
	logger *utils.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(repo TenantRepository) *TenantService {
	return &TenantService{
		repo:   repo,
		now:    time.Now,
		logger: utils.GetLogger(),
	}
}

// CreateTenant creates a tenant and makes the creator its admin
func (s *TenantService) CreateTenant(ctx context.Context, userID, email string, req *models.CreateTenantRequest) (*models.Tenant, error) {
	now := s.now().UTC()
	plan := req.Plan
	if plan == "" {
		plan = "basic"
	}

	tenant := &models.Tenant{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Plan:        plan,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	owner := &models.TenantUser{
		ID:       uuid.New().String(),
		TenantID: tenant.ID,
		UserID:   userID,
		Email:    email,
		Role:     models.RoleAdmin,
		JoinedAt: now,
	}

	if err := s.repo.CreateTenant(ctx, tenant, owner); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.WithTenant(tenant.ID).WithSource("tenant_service").Info("Tenant created", map[string]interface{}{
		"user_id": userID,
	})
	return tenant, nil
}

// GetTenant returns a tenant by id
func (s *TenantService) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return s.repo.GetTenant(ctx, tenantID)
}

// UpdateTenant applies the non-nil fields of req
func (s *TenantService) UpdateTenant(ctx context.Context, tenantID string, req *models.UpdateTenantRequest) (*models.Tenant, error) {
	tenant, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tenant.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		tenant.Description = *req.Description
	}
	if req.Plan != nil {
		tenant.Plan = *req.Plan
	}
	tenant.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

// ListUserTenants returns the tenants the user belongs to
func (s *TenantService) ListUserTenants(ctx context.Context, userID string) ([]models.UserTenant, error) {
	return s.repo.ListUserTenants(ctx, userID)
}

// GetMembership returns the user's membership in the tenant
func (s *TenantService) GetMembership(ctx context.Context, tenantID, userID string) (*models.TenantUser, error) {
	return s.repo.GetMembership(ctx, tenantID, userID)
}

// ListMembers returns the members of a tenant
func (s *TenantService) ListMembers(ctx context.Context, tenantID string) ([]models.TenantUser, error) {
	return s.repo.ListTenantUsers(ctx, tenantID)
}

// AddMember adds an existing user to the tenant
func (s *TenantService) AddMember(ctx context.Context, tenantID string, req *models.AddTenantUserRequest) (*models.TenantUser, error) {
	member := &models.TenantUser{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		UserID:   req.UserID,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     req.Role,
		JoinedAt: s.now().UTC(),
	}
	if err := s.repo.AddTenantUser(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, nil
}

// UpdateMemberRole changes a member's role. The repository refuses to demote
// the last admin, checking and writing in one statement.
func (s *TenantService) UpdateMemberRole(ctx context.Context, tenantID, memberID string, role models.Role) (*models.TenantUser, error) {
	if err := s.repo.UpdateTenantUserRole(ctx, tenantID, memberID, role); err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}
	return s.repo.GetTenantUser(ctx, tenantID, memberID)
}

// RemoveMember removes a member. The last admin cannot be removed.
func (s *TenantService) RemoveMember(ctx context.Context, tenantID, memberID string) error {
	if err := s.repo.RemoveTenantUser(ctx, tenantID, memberID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}
