package services

import (
	"context"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/store"
)

// WebSocketBroadcaster delivers messages to the websocket clients of one tenant
type WebSocketBroadcaster interface {
	BroadcastToTenant(tenantID, msgType string, data interface{})
}

// SuiteRepository persists the suite tree of a tenant
type SuiteRepository interface {
	LoadTree(ctx context.Context, tenantID string) ([]models.TestSuite, store.Sequences, error)
	SaveTree(ctx context.Context, tenantID string, suites []models.TestSuite, seq store.Sequences) error
}

// TenantRepository persists tenants and their memberships
type TenantRepository interface {
	CreateTenant(ctx context.Context, tenant *models.Tenant, owner *models.TenantUser) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListUserTenants(ctx context.Context, userID string) ([]models.UserTenant, error)
	ListTenantUsers(ctx context.Context, tenantID string) ([]models.TenantUser, error)
	GetMembership(ctx context.Context, tenantID, userID string) (*models.TenantUser, error)
	GetTenantUser(ctx context.Context, tenantID, memberID string) (*models.TenantUser, error)
	AddTenantUser(ctx context.Context, member *models.TenantUser) error
	UpdateTenantUserRole(ctx context.Context, tenantID, memberID string, role models.Role) error
	RemoveTenantUser(ctx context.Context, tenantID, memberID string) error
}

// TeamRepository persists teams
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *models.Team) error
	ListTeams(ctx context.Context, tenantID string) ([]models.Team, error)
	GetTeam(ctx context.Context, tenantID, teamID string) (*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	DeleteTeam(ctx context.Context, tenantID, teamID string) error
	AddTeamMember(ctx context.Context, member *models.TeamMember) error
	UpdateTeamMemberRole(ctx context.Context, teamID, userID, role string) error
	RemoveTeamMember(ctx context.Context, teamID, userID string) error
	LinkTeamSuite(ctx context.Context, tenantID, teamID string, suiteID int, at time.Time) error
	UnlinkTeamSuite(ctx context.Context, tenantID, teamID string, suiteID int) error
}

// SuiteFinder looks up a top-level suite of a tenant
type SuiteFinder interface {
	GetTestSuite(ctx context.Context, tenantID string, suiteID int) (models.TestSuite, error)
}

// InvitationRepository persists tenant invitations
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID string, member *models.TenantUser) error
	DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error)
}
