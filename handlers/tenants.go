package handlers

import (
	"context"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

// TenantServiceInterface defines the tenant operations used by TenantHandler
type TenantServiceInterface interface {
	CreateTenant(ctx context.Context, userID, email string, req *models.CreateTenantRequest) (*models.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID string, req *models.UpdateTenantRequest) (*models.Tenant, error)
	ListUserTenants(ctx context.Context, userID string) ([]models.UserTenant, error)
	ListMembers(ctx context.Context, tenantID string) ([]models.TenantUser, error)
	AddMember(ctx context.Context, tenantID string, req *models.AddTenantUserRequest) (*models.TenantUser, error)
	UpdateMemberRole(ctx context.Context, tenantID, memberID string, role models.Role) (*models.TenantUser, error)
	RemoveMember(ctx context.Context, tenantID, memberID string) error
}

// TenantHandler handles tenants and their memberships
type TenantHandler struct {
	tenantService TenantServiceInterface
	logger        *utils.LoggerWithContext
}

// NewTenantHandler creates a new tenant handler instance
func NewTenantHandler(tenantService TenantServiceInterface) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
		logger:        utils.GetLogger().WithSource("tenants"),
	}
}

// ListTenants handles GET /api/tenants
func (h *TenantHandler) ListTenants(c *fiber.Ctx) error {
	tenants, err := h.tenantService.ListUserTenants(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Tenants retrieved successfully", tenants)
}

// CreateTenant handles POST /api/tenants. The caller becomes the first admin.
func (h *TenantHandler) CreateTenant(c *fiber.Ctx) error {
	var req models.CreateTenantRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	userID := middleware.UserID(c)
	tenant, err := h.tenantService.CreateTenant(c.UserContext(), userID, middleware.UserEmail(c), &req)
	if err != nil {
		return err
	}

	h.logger.WithTenant(tenant.ID).Info("Tenant created", map[string]interface{}{
		"user_id": userID,
		"plan":    tenant.Plan,
	})
	return utils.CreatedResponse(c, "Tenant created successfully", tenant)
}

// GetTenant handles GET /api/tenants/:tenantId
func (h *TenantHandler) GetTenant(c *fiber.Ctx) error {
	tenant, err := h.tenantService.GetTenant(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Tenant retrieved successfully", tenant)
}

// UpdateTenant handles PUT /api/tenants/:tenantId
func (h *TenantHandler) UpdateTenant(c *fiber.Ctx) error {
	var req models.UpdateTenantRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tenant, err := h.tenantService.UpdateTenant(c.UserContext(), middleware.TenantID(c), &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Tenant updated successfully", tenant)
}

// ListMembers handles GET /api/tenants/:tenantId/members
func (h *TenantHandler) ListMembers(c *fiber.Ctx) error {
	members, err := h.tenantService.ListMembers(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Members retrieved successfully", members)
}

// AddMember handles POST /api/tenants/:tenantId/members
func (h *TenantHandler) AddMember(c *fiber.Ctx) error {
	var req models.AddTenantUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tenantID := middleware.TenantID(c)
	member, err := h.tenantService.AddMember(c.UserContext(), tenantID, &req)
	if err != nil {
		return err
	}

	h.logger.WithTenant(tenantID).Info("Member added", map[string]interface{}{
		"user_id": member.UserID,
		"role":    member.Role,
	})
	return utils.CreatedResponse(c, "Member added successfully", member)
}

// UpdateMemberRole handles PUT /api/tenants/:tenantId/members/:memberId
func (h *TenantHandler) UpdateMemberRole(c *fiber.Ctx) error {
	var req models.UpdateTenantUserRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	member, err := h.tenantService.UpdateMemberRole(c.UserContext(), middleware.TenantID(c), c.Params("memberId"), req.Role)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Member role updated successfully", member)
}

// RemoveMember handles DELETE /api/tenants/:tenantId/members/:memberId
func (h *TenantHandler) RemoveMember(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	memberID := c.Params("memberId")
	if err := h.tenantService.RemoveMember(c.UserContext(), tenantID, memberID); err != nil {
		return err
	}

	h.logger.WithTenant(tenantID).Info("Member removed", map[string]interface{}{
		"member_id":  memberID,
		"removed_by": middleware.UserID(c),
	})
	return utils.SuccessResponse(c, "Member removed successfully", nil)
}
