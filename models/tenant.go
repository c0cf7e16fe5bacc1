package models

import "time"

// Role is a tenant membership role
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
	RoleGuest   Role = "guest"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// Tenant represents an organization owning teams and test suites
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Plan        string    `json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantUser is a user's membership in a tenant
type TenantUser struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	UserID   string    `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// UserTenant pairs a membership with its tenant
type UserTenant struct {
	Membership TenantUser `json:"membership"`
	Tenant     Tenant     `json:"tenant"`
}

// Team groups tenant members
type Team struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	Members     []TeamMember `json:"members,omitempty"`
	SuiteIDs    []int        `json:"suite_ids,omitempty"`
}

// TeamMember is a user's membership in a team
type TeamMember struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Invitation is a pending, token-based invitation into a tenant
type Invitation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Token     string    `json:"token"`
	CreatedBy string    `json:"created_by"`
	ExpiresAt time.Time `json:"expires_at"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTenantRequest represents a request to create a tenant
type CreateTenantRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Plan        string `json:"plan" validate:"omitempty,oneof=basic pro enterprise"`
}

// UpdateTenantRequest represents a partial tenant update
type UpdateTenantRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Plan        *string `json:"plan,omitempty" validate:"omitempty,oneof=basic pro enterprise"`
}

// AddTenantUserRequest adds an existing user to a tenant
type AddTenantUserRequest struct {
	UserID string `json:"user_id" validate:"required,min=1"`
	Email  string `json:"email" validate:"omitempty,email"`
	Role   Role   `json:"role" validate:"required,oneof=admin manager user guest"`
}

// UpdateTenantUserRoleRequest changes a member's role
type UpdateTenantUserRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=admin manager user guest"`
}

// CreateInvitationRequest invites an email address into a tenant
type CreateInvitationRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Role          Role   `json:"role" validate:"required,oneof=admin manager user guest"`
	ExpiresInDays int    `json:"expires_in_days" validate:"omitempty,min=1,max=90"`
}

// InvitationResponse is returned after creating an invitation
type InvitationResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcceptInvitationResponse is returned after accepting an invitation
type AcceptInvitationResponse struct {
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
}

// CreateTeamRequest represents a request to create a team
type CreateTeamRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// AddTeamMemberRequest adds a tenant member to a team
type AddTeamMemberRequest struct {
	UserID string `json:"user_id" validate:"required,min=1"`
	Role   string `json:"role" validate:"required,oneof=leader member"`
}

// UpdateTeamRequest represents a partial team update
type UpdateTeamRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// UpdateTeamMemberRoleRequest changes a member's role inside a team
type UpdateTeamMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=leader member"`
}

// LinkTeamSuiteRequest assigns a root suite to a team
type LinkTeamSuiteRequest struct {
	SuiteID int `json:"suite_id" validate:"required,min=1"`
}
