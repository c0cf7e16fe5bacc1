package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/store"
)

const (
	scopeSuite    = "suite"
	scopeChild    = "child"
	scopeTestCase = "test_case"
)

// SaveTree replaces the tenant's persisted suite tree and id sequences in one transaction
func (r *Repository) SaveTree(ctx context.Context, tenantID string, suites []models.TestSuite, seq store.Sequences) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"execution_history", "test_case_versions", "test_cases", "test_suite_children", "test_suites", "id_sequences"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = ?", tenantID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		for i, suite := range suites {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO test_suites (tenant_id, id, sort_order, name, description)
				VALUES (?, ?, ?, ?, ?)`,
				tenantID, suite.ID, i, suite.Name, suite.Description,
			); err != nil {
				return fmt.Errorf("inserting suite %d: %w", suite.ID, mapError(err))
			}

			if err := insertCases(ctx, tx, tenantID, suite.ID, store.NoChild, suite.TestCases); err != nil {
				return err
			}

			for j, child := range suite.Children {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO test_suite_children (tenant_id, id, suite_id, sort_order, name, description)
					VALUES (?, ?, ?, ?, ?, ?)`,
					tenantID, child.ID, suite.ID, j, child.Name, child.Description,
				); err != nil {
					return fmt.Errorf("inserting child suite %d: %w", child.ID, mapError(err))
				}
				if err := insertCases(ctx, tx, tenantID, suite.ID, child.ID, child.TestCases); err != nil {
					return err
				}
			}
		}

		if err := insertSequences(ctx, tx, tenantID, seq); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM team_test_suites
			WHERE tenant_id = ? AND suite_id NOT IN (SELECT id FROM test_suites WHERE tenant_id = ?)`,
			tenantID, tenantID,
		); err != nil {
			return fmt.Errorf("pruning team suite links: %w", err)
		}
		return nil
	})
}

func insertCases(ctx context.Context, tx *sql.Tx, tenantID string, suiteID, childID int, cases []models.TestCase) error {
	for i, tc := range cases {
		steps, err := json.Marshal(tc.Steps)
		if err != nil {
			return err
		}

		var lastExecuted sql.NullTime
		if tc.LastExecuted != nil {
			lastExecuted = sql.NullTime{Time: tc.LastExecuted.UTC(), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO test_cases (tenant_id, suite_id, child_id, id, sort_order, name, description,
				priority, status, steps, expected_results, last_executed, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tenantID, suiteID, childID, tc.ID, i, tc.Name, tc.Description,
			string(tc.Priority), string(tc.Status), string(steps), tc.ExpectedResults, lastExecuted, versionOrInitial(tc.Version),
		); err != nil {
			return fmt.Errorf("inserting test case %d: %w", tc.ID, mapError(err))
		}

		for j, rec := range tc.ExecutionHistory {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO execution_history (tenant_id, suite_id, child_id, test_case_id, sort_order,
					executed_at, status, result_comment)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				tenantID, suiteID, childID, tc.ID, j, rec.Date.UTC(), string(rec.Status), rec.Comment,
			); err != nil {
				return fmt.Errorf("inserting execution record of test case %d: %w", tc.ID, err)
			}
		}

		for j, v := range tc.Versions {
			versionSteps, err := json.Marshal(v.Steps)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO test_case_versions (tenant_id, suite_id, child_id, test_case_id, sort_order,
					version, name, description, priority, steps, expected_results, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				tenantID, suiteID, childID, tc.ID, j, v.Version, v.Name, v.Description,
				string(v.Priority), string(versionSteps), v.ExpectedResults, v.CreatedAt.UTC(),
			); err != nil {
				return fmt.Errorf("inserting version %s of test case %d: %w", v.Version, tc.ID, mapError(err))
			}
		}
	}
	return nil
}

func versionOrInitial(v string) string {
	if v == "" {
		return store.InitialVersion
	}
	return v
}

func insertSequences(ctx context.Context, tx *sql.Tx, tenantID string, seq store.Sequences) error {
	insert := func(scope string, suiteID, childID, lastID int) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO id_sequences (tenant_id, scope, suite_id, child_id, last_id)
			VALUES (?, ?, ?, ?, ?)`,
			tenantID, scope, suiteID, childID, lastID,
		)
		if err != nil {
			return fmt.Errorf("inserting %s sequence: %w", scope, err)
		}
		return nil
	}

	if err := insert(scopeSuite, 0, 0, seq.Suite); err != nil {
		return err
	}
	if err := insert(scopeChild, 0, 0, seq.Child); err != nil {
		return err
	}
	for owner, last := range seq.TestCase {
		if err := insert(scopeTestCase, owner.SuiteID, owner.ChildID, last); err != nil {
			return err
		}
	}
	return nil
}

// LoadTree rebuilds the tenant's suite tree and id sequences. A tenant without
// any persisted suites yields an empty tree.
func (r *Repository) LoadTree(ctx context.Context, tenantID string) ([]models.TestSuite, store.Sequences, error) {
	seq := store.Sequences{TestCase: make(map[store.CaseOwner]int)}

	suites, err := r.loadSuites(ctx, tenantID)
	if err != nil {
		return nil, seq, err
	}
	children, err := r.loadChildren(ctx, tenantID)
	if err != nil {
		return nil, seq, err
	}
	cases, err := r.loadCases(ctx, tenantID)
	if err != nil {
		return nil, seq, err
	}

	for i := range suites {
		suite := &suites[i]
		suite.TestCases = casesOrEmpty(cases[store.CaseOwner{SuiteID: suite.ID}])
		suite.Children = make([]models.TestSuiteChild, 0, len(children[suite.ID]))
		for _, child := range children[suite.ID] {
			child.TestCases = casesOrEmpty(cases[store.CaseOwner{SuiteID: suite.ID, ChildID: child.ID}])
			suite.Children = append(suite.Children, child)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT scope, suite_id, child_id, last_id FROM id_sequences WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, seq, fmt.Errorf("loading sequences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var scope string
		var suiteID, childID, lastID int
		if err := rows.Scan(&scope, &suiteID, &childID, &lastID); err != nil {
			return nil, seq, err
		}
		switch scope {
		case scopeSuite:
			seq.Suite = lastID
		case scopeChild:
			seq.Child = lastID
		case scopeTestCase:
			seq.TestCase[store.CaseOwner{SuiteID: suiteID, ChildID: childID}] = lastID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, seq, err
	}

	return suites, seq, nil
}

func (r *Repository) loadSuites(ctx context.Context, tenantID string) ([]models.TestSuite, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description FROM test_suites
		WHERE tenant_id = ? ORDER BY sort_order`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading suites: %w", err)
	}
	defer rows.Close()

	suites := make([]models.TestSuite, 0)
	for rows.Next() {
		var suite models.TestSuite
		if err := rows.Scan(&suite.ID, &suite.Name, &suite.Description); err != nil {
			return nil, err
		}
		suites = append(suites, suite)
	}
	return suites, rows.Err()
}

func (r *Repository) loadChildren(ctx context.Context, tenantID string) (map[int][]models.TestSuiteChild, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, suite_id, name, description FROM test_suite_children
		WHERE tenant_id = ? ORDER BY suite_id, sort_order`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading child suites: %w", err)
	}
	defer rows.Close()

	children := make(map[int][]models.TestSuiteChild)
	for rows.Next() {
		var child models.TestSuiteChild
		if err := rows.Scan(&child.ID, &child.ParentID, &child.Name, &child.Description); err != nil {
			return nil, err
		}
		children[child.ParentID] = append(children[child.ParentID], child)
	}
	return children, rows.Err()
}

func (r *Repository) loadCases(ctx context.Context, tenantID string) (map[store.CaseOwner][]models.TestCase, error) {
	history, err := r.loadHistory(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	versions, err := r.loadVersions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT suite_id, child_id, id, name, description, priority, status, steps, expected_results, last_executed, version
		FROM test_cases WHERE tenant_id = ? ORDER BY suite_id, child_id, sort_order`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading test cases: %w", err)
	}
	defer rows.Close()

	cases := make(map[store.CaseOwner][]models.TestCase)
	for rows.Next() {
		var (
			owner        store.CaseOwner
			tc           models.TestCase
			priority     string
			status       string
			steps        string
			lastExecuted sql.NullTime
		)
		if err := rows.Scan(&owner.SuiteID, &owner.ChildID, &tc.ID, &tc.Name, &tc.Description,
			&priority, &status, &steps, &tc.ExpectedResults, &lastExecuted, &tc.Version); err != nil {
			return nil, err
		}

		tc.Priority = models.Priority(priority)
		tc.Status = models.TestStatus(status)
		if err := json.Unmarshal([]byte(steps), &tc.Steps); err != nil {
			return nil, fmt.Errorf("decoding steps of test case %d: %w", tc.ID, err)
		}
		if lastExecuted.Valid {
			t := lastExecuted.Time.UTC()
			tc.LastExecuted = &t
		}

		key := historyKey{owner: owner, caseID: tc.ID}
		tc.ExecutionHistory = history[key]
		if tc.ExecutionHistory == nil {
			tc.ExecutionHistory = []models.ExecutionRecord{}
		}
		tc.Versions = versions[key]
		if tc.Versions == nil {
			tc.Versions = []models.TestCaseVersion{}
		}
		cases[owner] = append(cases[owner], tc)
	}
	return cases, rows.Err()
}

type historyKey struct {
	owner  store.CaseOwner
	caseID int
}

func (r *Repository) loadHistory(ctx context.Context, tenantID string) (map[historyKey][]models.ExecutionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT suite_id, child_id, test_case_id, executed_at, status, result_comment
		FROM execution_history WHERE tenant_id = ?
		ORDER BY suite_id, child_id, test_case_id, sort_order`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading execution history: %w", err)
	}
	defer rows.Close()

	history := make(map[historyKey][]models.ExecutionRecord)
	for rows.Next() {
		var (
			key        historyKey
			executedAt time.Time
			status     string
			rec        models.ExecutionRecord
		)
		if err := rows.Scan(&key.owner.SuiteID, &key.owner.ChildID, &key.caseID, &executedAt, &status, &rec.Comment); err != nil {
			return nil, err
		}
		rec.Date = executedAt.UTC()
		rec.Status = models.TestStatus(status)
		history[key] = append(history[key], rec)
	}
	return history, rows.Err()
}

func (r *Repository) loadVersions(ctx context.Context, tenantID string) (map[historyKey][]models.TestCaseVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT suite_id, child_id, test_case_id, version, name, description, priority, steps, expected_results, created_at
		FROM test_case_versions WHERE tenant_id = ?
		ORDER BY suite_id, child_id, test_case_id, sort_order`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading test case versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[historyKey][]models.TestCaseVersion)
	for rows.Next() {
		var (
			key      historyKey
			v        models.TestCaseVersion
			priority string
			steps    string
		)
		if err := rows.Scan(&key.owner.SuiteID, &key.owner.ChildID, &key.caseID, &v.Version, &v.Name,
			&v.Description, &priority, &steps, &v.ExpectedResults, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Priority = models.Priority(priority)
		v.CreatedAt = v.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(steps), &v.Steps); err != nil {
			return nil, fmt.Errorf("decoding steps of version %s: %w", v.Version, err)
		}
		versions[key] = append(versions[key], v)
	}
	return versions, rows.Err()
}

func casesOrEmpty(cases []models.TestCase) []models.TestCase {
	if cases == nil {
		return []models.TestCase{}
	}
	return cases
}
