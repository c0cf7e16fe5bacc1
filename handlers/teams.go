package handlers

import (
	"context"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

// TeamServiceInterface defines the team operations used by TeamHandler
type TeamServiceInterface interface {
	CreateTeam(ctx context.Context, tenantID string, req *models.CreateTeamRequest) (*models.Team, error)
	ListTeams(ctx context.Context, tenantID string) ([]models.Team, error)
	GetTeam(ctx context.Context, tenantID, teamID string) (*models.Team, error)
	UpdateTeam(ctx context.Context, tenantID, teamID string, req *models.UpdateTeamRequest) (*models.Team, error)
	DeleteTeam(ctx context.Context, tenantID, teamID string) error
	AddMember(ctx context.Context, tenantID, teamID string, req *models.AddTeamMemberRequest) (*models.TeamMember, error)
	UpdateMemberRole(ctx context.Context, tenantID, teamID, userID string, req *models.UpdateTeamMemberRoleRequest) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, tenantID, teamID, userID string) error
	LinkSuite(ctx context.Context, tenantID, teamID string, req *models.LinkTeamSuiteRequest) (*models.Team, error)
	UnlinkSuite(ctx context.Context, tenantID, teamID string, suiteID int) error
}

// TeamHandler handles the teams of a tenant
type TeamHandler struct {
	teamService TeamServiceInterface
}

// NewTeamHandler creates a new team handler instance
func NewTeamHandler(teamService TeamServiceInterface) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// ListTeams handles GET /api/tenants/:tenantId/teams
func (h *TeamHandler) ListTeams(c *fiber.Ctx) error {
	teams, err := h.teamService.ListTeams(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Teams retrieved successfully", teams)
}

// CreateTeam handles POST /api/tenants/:tenantId/teams
func (h *TeamHandler) CreateTeam(c *fiber.Ctx) error {
	var req models.CreateTeamRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	team, err := h.teamService.CreateTeam(c.UserContext(), middleware.TenantID(c), &req)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, "Team created successfully", team)
}

// GetTeam handles GET /api/tenants/:tenantId/teams/:teamId
func (h *TeamHandler) GetTeam(c *fiber.Ctx) error {
	team, err := h.teamService.GetTeam(c.UserContext(), middleware.TenantID(c), c.Params("teamId"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Team retrieved successfully", team)
}

// UpdateTeam handles PATCH /api/tenants/:tenantId/teams/:teamId
func (h *TeamHandler) UpdateTeam(c *fiber.Ctx) error {
	var req models.UpdateTeamRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	team, err := h.teamService.UpdateTeam(c.UserContext(), middleware.TenantID(c), c.Params("teamId"), &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Team updated successfully", team)
}

// DeleteTeam handles DELETE /api/tenants/:tenantId/teams/:teamId
func (h *TeamHandler) DeleteTeam(c *fiber.Ctx) error {
	if err := h.teamService.DeleteTeam(c.UserContext(), middleware.TenantID(c), c.Params("teamId")); err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Team deleted successfully", nil)
}

// AddMember handles POST /api/tenants/:tenantId/teams/:teamId/members
func (h *TeamHandler) AddMember(c *fiber.Ctx) error {
	var req models.AddTeamMemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	member, err := h.teamService.AddMember(c.UserContext(), middleware.TenantID(c), c.Params("teamId"), &req)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, "Team member added successfully", member)
}

// RemoveMember handles DELETE /api/tenants/:tenantId/teams/:teamId/members/:userId
func (h *TeamHandler) RemoveMember(c *fiber.Ctx) error {
	err := h.teamService.RemoveMember(c.UserContext(), middleware.TenantID(c), c.Params("teamId"), c.Params("userId"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Team member removed successfully", nil)
}

// UpdateMemberRole handles PUT /api/tenants/:tenantId/teams/:teamId/members/:userId
func (h *TeamHandler) UpdateMemberRole(c *fiber.Ctx) error {
	var req models.UpdateTeamMemberRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	member, err := h.teamService.UpdateMemberRole(c.UserContext(), middleware.TenantID(c), c.Params("teamId"), c.Params("userId"), &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Team member updated successfully", member)
}

// LinkSuite handles POST /api/tenants/:tenantId/teams/:teamId/suites
func (h *TeamHandler) LinkSuite(c *fiber.Ctx) error {
	var req models.LinkTeamSuiteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	team, err := h.teamService.LinkSuite(c.UserContext(), middleware.TenantID(c), c.Params("teamId"), &req)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, "Suite linked to team successfully", team)
}

// UnlinkSuite handles DELETE /api/tenants/:tenantId/teams/:teamId/suites/:suiteId
func (h *TeamHandler) UnlinkSuite(c *fiber.Ctx) error {
	suiteID, err := idParam(c, "suiteId")
	if err != nil {
		return err
	}

	if err := h.teamService.UnlinkSuite(c.UserContext(), middleware.TenantID(c), c.Params("teamId"), suiteID); err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Suite unlinked from team successfully", nil)
}
