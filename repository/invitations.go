package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
)

// CreateInvitation inserts an invitation
func (r *Repository) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_invitations (id, tenant_id, email, role, token, created_by, expires_at, accepted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.TenantID, inv.Email, string(inv.Role), inv.Token, inv.CreatedBy,
		inv.ExpiresAt.UTC(), inv.Accepted, inv.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting invitation: %w", mapError(err))
	}
	return nil
}

// GetInvitationByToken looks up an invitation by its token
func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, role, token, created_by, expires_at, accepted, created_at
		FROM tenant_invitations WHERE token = ?`, token,
	).Scan(&inv.ID, &inv.TenantID, &inv.Email, &role, &inv.Token, &inv.CreatedBy,
		&inv.ExpiresAt, &inv.Accepted, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invitation: %w", mapError(err))
	}
	inv.Role = models.Role(role)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	return &inv, nil
}

// AcceptInvitation adds the membership and marks the invitation accepted in
// one transaction. ErrNotFound means the invitation was accepted concurrently.
func (r *Repository) AcceptInvitation(ctx context.Context, invitationID string, member *models.TenantUser) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tenant_invitations SET accepted = ? WHERE id = ? AND accepted = ?`,
			true, invitationID, false,
		)
		if err != nil {
			return fmt.Errorf("marking invitation accepted: %w", err)
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return insertTenantUser(ctx, tx, member)
	})
}

// DeleteExpiredInvitations removes unaccepted invitations that expired before now
func (r *Repository) DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tenant_invitations WHERE accepted = ? AND expires_at < ?`,
		false, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired invitations: %w", err)
	}
	return res.RowsAffected()
}
