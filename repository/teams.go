package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
)

// CreateTeam inserts a team
func (r *Repository) CreateTeam(ctx context.Context, team *models.Team) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO teams (id, tenant_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		team.ID, team.TenantID, team.Name, team.Description, team.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting team: %w", mapError(err))
	}
	return nil
}

// ListTeams returns the teams of a tenant ordered by name, without members
func (r *Repository) ListTeams(ctx context.Context, tenantID string) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, description, created_at
		FROM teams WHERE tenant_id = ? ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.TenantID, &team.Name, &team.Description, &team.CreatedAt); err != nil {
			return nil, err
		}
		team.CreatedAt = team.CreatedAt.UTC()
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// GetTeam returns a team of the tenant with its members
func (r *Repository) GetTeam(ctx context.Context, tenantID, teamID string) (*models.Team, error) {
	var team models.Team
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, created_at
		FROM teams WHERE tenant_id = ? AND id = ?`, tenantID, teamID,
	).Scan(&team.ID, &team.TenantID, &team.Name, &team.Description, &team.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", teamID, mapError(err))
	}
	team.CreatedAt = team.CreatedAt.UTC()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_id, user_id, role, created_at
		FROM team_members WHERE team_id = ? ORDER BY created_at, user_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing members of team %s: %w", teamID, err)
	}
	defer rows.Close()

	team.Members = make([]models.TeamMember, 0)
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		team.Members = append(team.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	suiteIDs, err := r.ListTeamSuites(ctx, tenantID, teamID)
	if err != nil {
		return nil, err
	}
	team.SuiteIDs = suiteIDs
	return &team, nil
}

// UpdateTeam writes the name and description of a team
func (r *Repository) UpdateTeam(ctx context.Context, team *models.Team) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE teams SET name = ?, description = ? WHERE tenant_id = ? AND id = ?`,
		team.Name, team.Description, team.TenantID, team.ID)
	if err != nil {
		return fmt.Errorf("updating team %s: %w", team.ID, mapError(err))
	}
	return expectAffected(res)
}

// DeleteTeam removes a team; members and suite links cascade
func (r *Repository) DeleteTeam(ctx context.Context, tenantID, teamID string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"team_members", "team_test_suites"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE team_id = ?", teamID); err != nil {
				return fmt.Errorf("clearing %s of team %s: %w", table, teamID, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE tenant_id = ? AND id = ?`, tenantID, teamID)
		if err != nil {
			return fmt.Errorf("deleting team %s: %w", teamID, err)
		}
		return expectAffected(res)
	})
}

// AddTeamMember inserts a team membership
func (r *Repository) AddTeamMember(ctx context.Context, member *models.TeamMember) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO team_members (id, team_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		member.ID, member.TeamID, member.UserID, member.Role, member.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting team member %s: %w", member.UserID, mapError(err))
	}
	return nil
}

// UpdateTeamMemberRole changes the role of userID in teamID
func (r *Repository) UpdateTeamMemberRole(ctx context.Context, teamID, userID, role string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`, role, teamID, userID)
	if err != nil {
		return fmt.Errorf("updating team member %s: %w", userID, err)
	}
	return expectAffected(res)
}

// RemoveTeamMember deletes the membership of userID in teamID
func (r *Repository) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return fmt.Errorf("removing team member %s: %w", userID, err)
	}
	return expectAffected(res)
}

// LinkTeamSuite assigns a root suite to a team
func (r *Repository) LinkTeamSuite(ctx context.Context, tenantID, teamID string, suiteID int, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO team_test_suites (team_id, tenant_id, suite_id, created_at)
		VALUES (?, ?, ?, ?)`,
		teamID, tenantID, suiteID, at.UTC(),
	); err != nil {
		return fmt.Errorf("linking suite %d to team %s: %w", suiteID, teamID, mapError(err))
	}
	return nil
}

// UnlinkTeamSuite removes a suite assignment from a team
func (r *Repository) UnlinkTeamSuite(ctx context.Context, tenantID, teamID string, suiteID int) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM team_test_suites WHERE tenant_id = ? AND team_id = ? AND suite_id = ?`,
		tenantID, teamID, suiteID)
	if err != nil {
		return fmt.Errorf("unlinking suite %d from team %s: %w", suiteID, teamID, err)
	}
	return expectAffected(res)
}

// ListTeamSuites returns the ids of the suites linked to a team in link order
func (r *Repository) ListTeamSuites(ctx context.Context, tenantID, teamID string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT suite_id FROM team_test_suites
		WHERE tenant_id = ? AND team_id = ? ORDER BY created_at, suite_id`, tenantID, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing suites of team %s: %w", teamID, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
