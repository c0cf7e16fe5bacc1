package repository

// Statements are executed one by one: the MySQL driver rejects multi-statement
// batches unless multiStatements is enabled in the DSN.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		plan TEXT NOT NULL DEFAULT 'basic',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_users (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		UNIQUE (tenant_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenant_users_user ON tenant_users(user_id)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		id TEXT PRIMARY KEY,
		team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_invitations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		accepted BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS test_suites (
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		id INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS test_suite_children (
		tenant_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		suite_id INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, id),
		FOREIGN KEY (tenant_id, suite_id) REFERENCES test_suites(tenant_id, id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS test_cases (
		tenant_id TEXT NOT NULL,
		suite_id INTEGER NOT NULL,
		child_id INTEGER NOT NULL,
		id INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		steps TEXT NOT NULL,
		expected_results TEXT NOT NULL DEFAULT '',
		last_executed DATETIME NULL,
		version TEXT NOT NULL DEFAULT '1.0',
		PRIMARY KEY (tenant_id, suite_id, child_id, id),
		FOREIGN KEY (tenant_id, suite_id) REFERENCES test_suites(tenant_id, id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS execution_history (
		tenant_id TEXT NOT NULL,
		suite_id INTEGER NOT NULL,
		child_id INTEGER NOT NULL,
		test_case_id INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		executed_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		result_comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, suite_id, child_id, test_case_id, sort_order),
		FOREIGN KEY (tenant_id, suite_id, child_id, test_case_id)
			REFERENCES test_cases(tenant_id, suite_id, child_id, id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS test_case_versions (
		tenant_id TEXT NOT NULL,
		suite_id INTEGER NOT NULL,
		child_id INTEGER NOT NULL,
		test_case_id INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		version TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		steps TEXT NOT NULL,
		expected_results TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		PRIMARY KEY (tenant_id, suite_id, child_id, test_case_id, version),
		FOREIGN KEY (tenant_id, suite_id, child_id, test_case_id)
			REFERENCES test_cases(tenant_id, suite_id, child_id, id) ON DELETE CASCADE
	)`,
	// suite_id has no foreign key because SaveTree rewrites test_suites;
	// SaveTree prunes links to suites that are gone
	`CREATE TABLE IF NOT EXISTS team_test_suites (
		team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		suite_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (team_id, suite_id)
	)`,
	`CREATE TABLE IF NOT EXISTS id_sequences (
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		scope TEXT NOT NULL,
		suite_id INTEGER NOT NULL,
		child_id INTEGER NOT NULL,
		last_id INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, scope, suite_id, child_id)
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		plan VARCHAR(32) NOT NULL DEFAULT 'basic',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tenant_users (
		id VARCHAR(64) PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		email VARCHAR(320) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL,
		joined_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_tenant_user (tenant_id, user_id),
		KEY idx_tenant_users_user (user_id),
		CONSTRAINT fk_tenant_users_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS teams (
		id VARCHAR(64) PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		CONSTRAINT fk_teams_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS team_members (
		id VARCHAR(64) PRIMARY KEY,
		team_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_team_user (team_id, user_id),
		CONSTRAINT fk_team_members_team FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tenant_invitations (
		id VARCHAR(64) PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		email VARCHAR(320) NOT NULL,
		role VARCHAR(16) NOT NULL,
		token VARCHAR(64) NOT NULL,
		created_by VARCHAR(255) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		accepted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_invitation_token (token),
		CONSTRAINT fk_invitations_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS test_suites (
		tenant_id VARCHAR(64) NOT NULL,
		id INT NOT NULL,
		sort_order INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id),
		CONSTRAINT fk_suites_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS test_suite_children (
		tenant_id VARCHAR(64) NOT NULL,
		id INT NOT NULL,
		suite_id INT NOT NULL,
		sort_order INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id),
		CONSTRAINT fk_children_suite FOREIGN KEY (tenant_id, suite_id)
			REFERENCES test_suites(tenant_id, id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS test_cases (
		tenant_id VARCHAR(64) NOT NULL,
		suite_id INT NOT NULL,
		child_id INT NOT NULL,
		id INT NOT NULL,
		sort_order INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		priority VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		steps TEXT NOT NULL,
		expected_results TEXT NOT NULL,
		last_executed DATETIME(6) NULL,
		version VARCHAR(16) NOT NULL DEFAULT '1.0',
		PRIMARY KEY (tenant_id, suite_id, child_id, id),
		CONSTRAINT fk_cases_suite FOREIGN KEY (tenant_id, suite_id)
			REFERENCES test_suites(tenant_id, id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS execution_history (
		tenant_id VARCHAR(64) NOT NULL,
		suite_id INT NOT NULL,
		child_id INT NOT NULL,
		test_case_id INT NOT NULL,
		sort_order INT NOT NULL,
		executed_at DATETIME(6) NOT NULL,
		status VARCHAR(16) NOT NULL,
		result_comment TEXT NOT NULL,
		PRIMARY KEY (tenant_id, suite_id, child_id, test_case_id, sort_order),
		CONSTRAINT fk_history_case FOREIGN KEY (tenant_id, suite_id, child_id, test_case_id)
			REFERENCES test_cases(tenant_id, suite_id, child_id, id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS test_case_versions (
		tenant_id VARCHAR(64) NOT NULL,
		suite_id INT NOT NULL,
		child_id INT NOT NULL,
		test_case_id INT NOT NULL,
		sort_order INT NOT NULL,
		version VARCHAR(16) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		priority VARCHAR(16) NOT NULL,
		steps TEXT NOT NULL,
		expected_results TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (tenant_id, suite_id, child_id, test_case_id, version),
		CONSTRAINT fk_versions_case FOREIGN KEY (tenant_id, suite_id, child_id, test_case_id)
			REFERENCES test_cases(tenant_id, suite_id, child_id, id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	// suite_id has no foreign key because SaveTree rewrites test_suites;
	// SaveTree prunes links to suites that are gone
	`CREATE TABLE IF NOT EXISTS team_test_suites (
		team_id VARCHAR(64) NOT NULL,
		tenant_id VARCHAR(64) NOT NULL,
		suite_id INT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (team_id, suite_id),
		CONSTRAINT fk_team_suites_team FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE,
		CONSTRAINT fk_team_suites_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS id_sequences (
		tenant_id VARCHAR(64) NOT NULL,
		scope VARCHAR(16) NOT NULL,
		suite_id INT NOT NULL,
		child_id INT NOT NULL,
		last_id INT NOT NULL,
		PRIMARY KEY (tenant_id, scope, suite_id, child_id),
		CONSTRAINT fk_sequences_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
