package handlers

import (
	"context"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

// InvitationServiceInterface defines the invitation operations used by InvitationHandler
type InvitationServiceInterface interface {
	CreateInvitation(ctx context.Context, tenantID, createdBy string, req *models.CreateInvitationRequest) (*models.Invitation, error)
	GetInvitation(ctx context.Context, token string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, token, userID, email string) (*models.TenantUser, error)
}

// InvitationHandler handles tenant invitations
type InvitationHandler struct {
	invitationService InvitationServiceInterface
}

// NewInvitationHandler creates a new invitation handler instance
func NewInvitationHandler(invitationService InvitationServiceInterface) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

// CreateInvitation handles POST /api/tenants/:tenantId/invitations
func (h *InvitationHandler) CreateInvitation(c *fiber.Ctx) error {
	var req models.CreateInvitationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	inv, err := h.invitationService.CreateInvitation(c.UserContext(), middleware.TenantID(c), middleware.UserID(c), &req)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, "Invitation created successfully", models.InvitationResponse{
		Token:     inv.Token,
		ExpiresAt: inv.ExpiresAt,
	})
}

// GetInvitation handles GET /api/invitations/:token
func (h *InvitationHandler) GetInvitation(c *fiber.Ctx) error {
	inv, err := h.invitationService.GetInvitation(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Invitation retrieved successfully", inv)
}

// AcceptInvitation handles POST /api/invitations/:token/accept
func (h *InvitationHandler) AcceptInvitation(c *fiber.Ctx) error {
	member, err := h.invitationService.AcceptInvitation(c.UserContext(), c.Params("token"),
		middleware.UserID(c), middleware.UserEmail(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Invitation accepted successfully", models.AcceptInvitationResponse{
		TenantID: member.TenantID,
		Role:     member.Role,
	})
}
