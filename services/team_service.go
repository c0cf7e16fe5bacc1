package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/google/uuid"
)

// TeamService manages the teams of a tenant
type TeamService struct {
	teams   TeamRepository
	tenants TenantRepository
	suites  SuiteFinder
	now     func() time.Time
}

// NewTeamService creates a new team service. suites resolves the suites
// linked to teams.
func NewTeamService(teams TeamRepository, tenants TenantRepository, suites SuiteFinder) *TeamService {
	return &TeamService{teams: teams, tenants: tenants, suites: suites, now: time.Now}
}

// CreateTeam creates a team in the tenant
func (s *TeamService) CreateTeam(ctx context.Context, tenantID string, req *models.CreateTeamRequest) (*models.Team, error) {
	team := &models.Team{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatedAt:   s.now().UTC(),
		Members:     []models.TeamMember{},
	}
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

// ListTeams returns the tenant's teams
func (s *TeamService) ListTeams(ctx context.Context, tenantID string) ([]models.Team, error) {
	return s.teams.ListTeams(ctx, tenantID)
}

// GetTeam returns a team with its members
func (s *TeamService) GetTeam(ctx context.Context, tenantID, teamID string) (*models.Team, error) {
	return s.teams.GetTeam(ctx, tenantID, teamID)
}

// UpdateTeam applies the non-nil fields of req to a team
func (s *TeamService) UpdateTeam(ctx context.Context, tenantID, teamID string, req *models.UpdateTeamRequest) (*models.Team, error) {
	team, err := s.teams.GetTeam(ctx, tenantID, teamID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		team.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

// DeleteTeam removes a team with its memberships and suite links
func (s *TeamService) DeleteTeam(ctx context.Context, tenantID, teamID string) error {
	return s.teams.DeleteTeam(ctx, tenantID, teamID)
}

// AddMember adds a tenant member to one of the tenant's teams
func (s *TeamService) AddMember(ctx context.Context, tenantID, teamID string, req *models.AddTeamMemberRequest) (*models.TeamMember, error) {
	if _, err := s.teams.GetTeam(ctx, tenantID, teamID); err != nil {
		return nil, err
	}

	if _, err := s.tenants.GetMembership(ctx, tenantID, req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotTenantMember
		}
		return nil, err
	}

	member := &models.TeamMember{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		UserID:    req.UserID,
		Role:      req.Role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.teams.AddTeamMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add team member: %w", err)
	}
	return member, nil
}

// RemoveMember removes a user from one of the tenant's teams
func (s *TeamService) RemoveMember(ctx context.Context, tenantID, teamID, userID string) error {
	if _, err := s.teams.GetTeam(ctx, tenantID, teamID); err != nil {
		return err
	}
	return s.teams.RemoveTeamMember(ctx, teamID, userID)
}

// UpdateMemberRole changes the role of a user inside one of the tenant's teams
func (s *TeamService) UpdateMemberRole(ctx context.Context, tenantID, teamID, userID string, req *models.UpdateTeamMemberRoleRequest) (*models.TeamMember, error) {
	team, err := s.teams.GetTeam(ctx, tenantID, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.teams.UpdateTeamMemberRole(ctx, teamID, userID, req.Role); err != nil {
		return nil, err
	}

	for _, m := range team.Members {
		if m.UserID == userID {
			m.Role = req.Role
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

// LinkSuite assigns an existing top-level suite of the tenant to a team
func (s *TeamService) LinkSuite(ctx context.Context, tenantID, teamID string, req *models.LinkTeamSuiteRequest) (*models.Team, error) {
	if _, err := s.teams.GetTeam(ctx, tenantID, teamID); err != nil {
		return nil, err
	}
	if _, err := s.suites.GetTestSuite(ctx, tenantID, req.SuiteID); err != nil {
		return nil, err
	}

	if err := s.teams.LinkTeamSuite(ctx, tenantID, teamID, req.SuiteID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to link suite: %w", err)
	}
	return s.teams.GetTeam(ctx, tenantID, teamID)
}

// UnlinkSuite removes a suite from a team
func (s *TeamService) UnlinkSuite(ctx context.Context, tenantID, teamID string, suiteID int) error {
	if _, err := s.teams.GetTeam(ctx, tenantID, teamID); err != nil {
		return err
	}
	return s.teams.UnlinkTeamSuite(ctx, tenantID, teamID, suiteID)
}
