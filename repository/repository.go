// Package repository persists tenants, teams, invitations and test suite trees
// through database/sql. SQLite (modernc.org/sqlite) and MySQL
// (github.com/go-sql-driver/mysql) are supported.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const mysqlDuplicateEntry = 1062

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ErrNotFound is returned when a looked-up record does not exist
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when an insert violates a uniqueness constraint
var ErrConflict = errors.New("record already exists")

// ErrLastAdmin is returned when a membership change would leave a tenant without an admin
var ErrLastAdmin = errors.New("tenant must keep at least one admin")

// Repository provides database-backed persistence
type Repository struct {
	db     *sql.DB
	driver string
}

// Open connects to the database identified by driver and dsn
func Open(driver, dsn string) (*Repository, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverMySQL:
		dsn = mysqlDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}

	return &Repository{db: db, driver: driver}, nil
}

// sqliteDSN turns on foreign keys for every pooled connection
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:testsuites.db"
	}
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// mysqlDSN makes the driver scan DATETIME columns into time.Time
func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "parseTime=true&loc=UTC"
}

// Driver returns the database driver name
func (r *Repository) Driver() string {
	return r.driver
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SetMaxOpenConns bounds the connection pool. SQLite stays at one connection.
func (r *Repository) SetMaxOpenConns(n int) {
	if r.driver == DriverSQLite || n < 1 {
		return
	}
	r.db.SetMaxOpenConns(n)
	r.db.SetMaxIdleConns(n)
}

// PoolStats reports connection pool usage
func (r *Repository) PoolStats() sql.DBStats {
	return r.db.Stats()
}

// Migrate creates all tables that do not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if r.driver == DriverMySQL {
		schema = mysqlSchema
	}

	for i, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing on success and rolling back otherwise
func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mapError converts driver errors into repository errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "UNIQUE"):
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// expectAffected returns ErrNotFound when a write touched no rows
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
