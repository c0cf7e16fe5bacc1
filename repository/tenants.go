package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/KBesada24/test-suite-manager/models"
)

// CreateTenant inserts a tenant together with its first (admin) membership
func (r *Repository) CreateTenant(ctx context.Context, tenant *models.Tenant, owner *models.TenantUser) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tenants (id, name, description, plan, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			tenant.ID, tenant.Name, tenant.Description, tenant.Plan, tenant.CreatedAt.UTC(), tenant.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("inserting tenant: %w", mapError(err))
		}
		return insertTenantUser(ctx, tx, owner)
	})
}

// GetTenant returns the tenant with the given id
func (r *Repository) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, plan, created_at, updated_at
		FROM tenants WHERE id = ?`, id)

	var t models.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("tenant %s: %w", id, mapError(err))
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// UpdateTenant overwrites the mutable fields of a tenant
func (r *Repository) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET name = ?, description = ?, plan = ?, updated_at = ?
		WHERE id = ?`,
		tenant.Name, tenant.Description, tenant.Plan, tenant.UpdatedAt.UTC(), tenant.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant %s: %w", tenant.ID, err)
	}
	return expectAffected(res)
}

// ListUserTenants returns every tenant the user belongs to, oldest membership first
func (r *Repository) ListUserTenants(ctx context.Context, userID string) ([]models.UserTenant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tu.id, tu.tenant_id, tu.user_id, tu.email, tu.role, tu.joined_at,
			t.id, t.name, t.description, t.plan, t.created_at, t.updated_at
		FROM tenant_users tu
		JOIN tenants t ON t.id = tu.tenant_id
		WHERE tu.user_id = ?
		ORDER BY tu.joined_at, t.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tenants of user %s: %w", userID, err)
	}
	defer rows.Close()

	result := make([]models.UserTenant, 0)
	for rows.Next() {
		var ut models.UserTenant
		var role string
		m, t := &ut.Membership, &ut.Tenant
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Email, &role, &m.JoinedAt,
			&t.ID, &t.Name, &t.Description, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		m.JoinedAt = m.JoinedAt.UTC()
		t.CreatedAt = t.CreatedAt.UTC()
		t.UpdatedAt = t.UpdatedAt.UTC()
		result = append(result, ut)
	}
	return result, rows.Err()
}

const tenantUserColumns = `id, tenant_id, user_id, email, role, joined_at`

func scanTenantUser(scanner interface{ Scan(...any) error }) (*models.TenantUser, error) {
	var m models.TenantUser
	var role string
	if err := scanner.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Email, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}

// ListTenantUsers returns the members of a tenant in join order
func (r *Repository) ListTenantUsers(ctx context.Context, tenantID string) ([]models.TenantUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tenantUserColumns+` FROM tenant_users
		WHERE tenant_id = ? ORDER BY joined_at, user_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing members of tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	members := make([]models.TenantUser, 0)
	for rows.Next() {
		m, err := scanTenantUser(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// GetMembership returns the membership of userID in tenantID
func (r *Repository) GetMembership(ctx context.Context, tenantID, userID string) (*models.TenantUser, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tenantUserColumns+` FROM tenant_users
		WHERE tenant_id = ? AND user_id = ?`, tenantID, userID)

	m, err := scanTenantUser(row)
	if err != nil {
		return nil, fmt.Errorf("membership of %s in tenant %s: %w", userID, tenantID, mapError(err))
	}
	return m, nil
}

// GetTenantUser returns a membership by its id
func (r *Repository) GetTenantUser(ctx context.Context, tenantID, memberID string) (*models.TenantUser, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tenantUserColumns+` FROM tenant_users
		WHERE tenant_id = ? AND id = ?`, tenantID, memberID)

	m, err := scanTenantUser(row)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", memberID, mapError(err))
	}
	return m, nil
}

// AddTenantUser inserts a membership. ErrConflict means the user already belongs to the tenant.
func (r *Repository) AddTenantUser(ctx context.Context, member *models.TenantUser) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return insertTenantUser(ctx, tx, member)
	})
}

func insertTenantUser(ctx context.Context, tx *sql.Tx, m *models.TenantUser) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tenant_users (`+tenantUserColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.TenantID, m.UserID, m.Email, string(m.Role), m.JoinedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting member %s: %w", m.UserID, mapError(err))
	}
	return nil
}

// keepsAnAdmin matches a membership whose change leaves the tenant with an
// admin. The count sits in a derived table so MySQL accepts it in a write on
// tenant_users.
const keepsAnAdmin = `(role <> 'admin' OR (
	SELECT admins.n FROM (
		SELECT COUNT(*) AS n FROM tenant_users WHERE tenant_id = ? AND role = 'admin'
	) AS admins) > 1)`

// UpdateTenantUserRole changes the role of a membership. Demoting the last
// admin of the tenant fails with ErrLastAdmin.
func (r *Repository) UpdateTenantUserRole(ctx context.Context, tenantID, memberID string, role models.Role) error {
	query := `UPDATE tenant_users SET role = ? WHERE tenant_id = ? AND id = ?`
	args := []any{string(role), tenantID, memberID}
	if role != models.RoleAdmin {
		query += ` AND ` + keepsAnAdmin
		args = append(args, tenantID)
	}
	return r.guardedMemberWrite(ctx, tenantID, memberID, role, query, args...)
}

// RemoveTenantUser deletes a membership. Removing the last admin of the
// tenant fails with ErrLastAdmin.
func (r *Repository) RemoveTenantUser(ctx context.Context, tenantID, memberID string) error {
	return r.guardedMemberWrite(ctx, tenantID, memberID, "",
		`DELETE FROM tenant_users WHERE tenant_id = ? AND id = ? AND `+keepsAnAdmin,
		tenantID, memberID, tenantID)
}

// guardedMemberWrite runs a write on one membership that is conditioned on
// keepsAnAdmin. When no row is touched it tells apart a missing membership,
// a membership already holding target and the last admin.
func (r *Repository) guardedMemberWrite(ctx context.Context, tenantID, memberID string, target models.Role, query string, args ...any) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if r.driver == DriverMySQL {
			// concurrent demotions of two admins queue up on these row locks
			rows, err := tx.QueryContext(ctx, `
				SELECT id FROM tenant_users WHERE tenant_id = ? AND role = 'admin' FOR UPDATE`, tenantID)
			if err != nil {
				return fmt.Errorf("locking admins of tenant %s: %w", tenantID, err)
			}
			rows.Close()
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("writing member %s: %w", memberID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		var current models.Role
		err = tx.QueryRowContext(ctx, `
			SELECT role FROM tenant_users WHERE tenant_id = ? AND id = ?`, tenantID, memberID,
		).Scan(&current)
		switch {
		case err != nil:
			return mapError(err)
		case current == target:
			// MySQL reports zero affected rows for an unchanged value
			return nil
		default:
			return ErrLastAdmin
		}
	})
}
