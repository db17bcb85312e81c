package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/schema"
)

func TestApplySchema_SQLite(t *testing.T) {
	ctx := context.Background()
	database, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "dest.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if database.Dialect() != schema.DialectSQLite {
		t.Fatalf("Dialect() = %s, want sqlite", database.Dialect())
	}

	cat := schema.Default()
	stmts, err := database.ApplySchema(ctx, cat, "content")
	if err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}
	if len(stmts) == 0 {
		t.Fatal("ApplySchema() executed no statements")
	}

	// Idempotent
	if _, err := database.ApplySchema(ctx, cat, "content"); err != nil {
		t.Fatalf("second ApplySchema() failed: %v", err)
	}

	for _, table := range domain.Tables() {
		cols, err := database.TableColumns(ctx, table.String())
		if err != nil {
			t.Fatalf("TableColumns(%s) failed: %v", table, err)
		}
		want := cat.Table(table).ColumnNames()
		if len(cols) != len(want) {
			t.Errorf("%s has columns %v, want %v", table, cols, want)
		}
	}
}

func TestApplySchema_EnforcesConstraints(t *testing.T) {
	ctx := context.Background()
	database, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "dest.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if _, err := database.ApplySchema(ctx, schema.Default(), ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query string
	}{
		{
			name: "rating above range",
			query: `INSERT INTO film_work (id, title, rating, type, created_at, updated_at)
				VALUES ('a3b1c7e2-0000-4000-8000-000000000001', 'x', 120, 'movie', '2021-01-01', '2021-01-01')`,
		},
		{
			name: "unknown type",
			query: `INSERT INTO film_work (id, title, rating, type, created_at, updated_at)
				VALUES ('a3b1c7e2-0000-4000-8000-000000000002', 'x', 10, 'cartoon', '2021-01-01', '2021-01-01')`,
		},
		{
			name: "dangling foreign key",
			query: `INSERT INTO genre_film_work (id, genre_id, film_work_id, created_at)
				VALUES ('a3b1c7e2-0000-4000-8000-000000000003', 'a3b1c7e2-0000-4000-8000-00000000dead',
				        'a3b1c7e2-0000-4000-8000-00000000beef', '2021-01-01')`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := database.ExecContext(ctx, tt.query); err == nil {
				t.Error("expected constraint error, got nil")
			}
		})
	}
}

func TestOpenSource_MissingFile(t *testing.T) {
	_, err := OpenSource(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"))
	var connErr *domain.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("OpenSource() error = %v, want ConnectionError", err)
	}
	if connErr.Store != StoreSource {
		t.Errorf("Store = %q, want %q", connErr.Store, StoreSource)
	}
}

func TestOpenSource_ReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite")

	rw, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rw.ExecContext(ctx, "CREATE TABLE genre (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	rw.Close()

	ro, err := OpenSource(ctx, path)
	if err != nil {
		t.Fatalf("OpenSource() failed: %v", err)
	}
	defer ro.Close()

	if ro.Target() != path {
		t.Errorf("Target() = %q, want %q", ro.Target(), path)
	}
	if _, err := ro.ExecContext(ctx, "INSERT INTO genre (id) VALUES ('x')"); err == nil {
		t.Error("write through read-only source succeeded")
	}
}

func TestOpenPostgres_Unreachable(t *testing.T) {
	_, err := OpenPostgres(context.Background(),
		"postgres://app:pw@127.0.0.1:1/movies?sslmode=disable&connect_timeout=2", "redacted")
	var connErr *domain.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("OpenPostgres() error = %v, want ConnectionError", err)
	}
	if connErr.Store != StoreDestination {
		t.Errorf("Store = %q, want %q", connErr.Store, StoreDestination)
	}
}
