package middleware

import (
	"context"
	"errors"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/gofiber/fiber/v2"
)

// Identity headers set by the authenticating gateway
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Locals keys
const (
	LocalUserID     = "user_id"
	LocalUserEmail  = "user_email"
	LocalTenantID   = "tenant_id"
	LocalMembership = "membership"
)

// MembershipLookup finds the membership of a user in a tenant
type MembershipLookup interface {
	GetMembership(ctx context.Context, tenantID, userID string) (*models.TenantUser, error)
}

// TenantResolver extracts the tenant id a request targets
type TenantResolver func(c *fiber.Ctx) string

// TenantFromParam reads the tenant id from a route parameter
func TenantFromParam(name string) TenantResolver {
	return func(c *fiber.Ctx) string {
		return c.Params(name)
	}
}

// TenantFromQuery reads the tenant id from a query parameter
func TenantFromQuery(name string) TenantResolver {
	return func(c *fiber.Ctx) string {
		return c.Query(name)
	}
}

// Authenticate rejects requests without an authenticated user id
func Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return NewUnauthorizedError("Missing " + HeaderUserID + " header")
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserEmail, c.Get(HeaderUserEmail))
		return c.Next()
	}
}

// RequireTenantMember rejects users that do not belong to the resolved tenant
// and stores their membership for later handlers
func RequireTenantMember(lookup MembershipLookup, resolve TenantResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := resolve(c)
		if tenantID == "" {
			return NewValidationError("Tenant id is required", map[string]string{"tenant_id": "This field is required"})
		}

		membership, err := lookup.GetMembership(c.UserContext(), tenantID, UserID(c))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewForbiddenError("You are not a member of this tenant")
			}
			return err
		}

		c.Locals(LocalTenantID, tenantID)
		c.Locals(LocalMembership, membership)
		return c.Next()
	}
}

// RequireRole rejects members whose role is not one of roles.
// It must run after RequireTenantMember.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		membership := Membership(c)
		if membership == nil {
			return NewForbiddenError("")
		}
		for _, role := range roles {
			if membership.Role == role {
				return c.Next()
			}
		}
		return NewForbiddenError("Your role does not allow this action")
	}
}

// UserID returns the authenticated user id
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// UserEmail returns the authenticated user's email, if the gateway sent one
func UserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(LocalUserEmail).(string)
	return email
}

// TenantID returns the tenant id checked by RequireTenantMember
func TenantID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalTenantID).(string)
	return id
}

// Membership returns the membership loaded by RequireTenantMember
func Membership(c *fiber.Ctx) *models.TenantUser {
	m, _ := c.Locals(LocalMembership).(*models.TenantUser)
	return m
}
