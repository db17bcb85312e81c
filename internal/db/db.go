package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/schema"
)

const (
	StoreSource      = "source"
	StoreDestination = "destination"
)

// DB wraps a database connection pool with its SQL dialect
type DB struct {
	*sql.DB
	dialect schema.Dialect
	target  string
}

// Dialect returns the SQL dialect of the connection
func (db *DB) Dialect() schema.Dialect {
	return db.dialect
}

// Target returns the file path or redacted DSN the pool was opened with
func (db *DB) Target() string {
	return db.target
}

// OpenSource opens an existing SQLite file read-only.
func OpenSource(ctx context.Context, path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &domain.ConnectionError{Store: StoreSource, Err: err}
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := openSQLite(ctx, dsn)
	if err != nil {
		return nil, &domain.ConnectionError{Store: StoreSource, Err: err}
	}
	db.target = path
	return db, nil
}

// OpenSQLite opens (creating if needed) a writable SQLite database with
// foreign keys enforced.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := openSQLite(ctx, "file:"+(&url.URL{Path: path}).EscapedPath()+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.target = path
	return db, nil
}

func openSQLite(ctx context.Context, dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas and transactions are per connection; one connection keeps
	// them consistent.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return &DB{DB: sqlDB, dialect: schema.DialectSQLite}, nil
}

// OpenPostgres connects to Postgres through the pgx database/sql driver and
// verifies the connection.
func OpenPostgres(ctx context.Context, dsn, redacted string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &domain.ConnectionError{Store: StoreDestination, Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &domain.ConnectionError{Store: StoreDestination, Err: err}
	}
	return &DB{DB: sqlDB, dialect: schema.DialectPostgres, target: redacted}, nil
}

// ApplySchema creates the catalogue tables if they do not exist, inside a
// single transaction. It returns the statements executed.
func (db *DB) ApplySchema(ctx context.Context, cat *schema.Catalog, namespace string) ([]string, error) {
	stmts := cat.CreateStatements(db.dialect, namespace)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit schema: %w", err)
	}
	return stmts, nil
}

// TableColumns returns the columns of table as the store reports them,
// or an error if the table does not exist.
func (db *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}
