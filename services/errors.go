package services

import (
	"errors"

	"github.com/KBesada24/test-suite-manager/repository"
)

var (
	// ErrPersistence means a suite change was applied in memory but could not be saved
	ErrPersistence = errors.New("test suites could not be saved")

	// ErrLastAdmin is returned when a change would leave a tenant without an admin
	ErrLastAdmin = repository.ErrLastAdmin

	// ErrNotTenantMember is returned when a user outside the tenant is added to a team
	ErrNotTenantMember = errors.New("user is not a member of the tenant")

	ErrInvitationExpired       = errors.New("invitation has expired")
	ErrInvitationAccepted      = errors.New("invitation has already been accepted")
	ErrInvitationEmailMismatch = errors.New("invitation was sent to a different email address")
)
