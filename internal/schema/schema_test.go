package schema

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lherron/moviesdb/internal/domain"
)

// sampleRecords returns one zero-valued record per table.
func sampleRecords() []domain.Record {
	return []domain.Record{
		domain.Genre{ID: uuid.New()},
		domain.Person{ID: uuid.New()},
		domain.Filmwork{ID: uuid.New()},
		domain.GenreFilmwork{ID: uuid.New()},
		domain.PersonFilmwork{ID: uuid.New()},
	}
}

func TestCatalog_ColumnsMatchRecordFields(t *testing.T) {
	cat := Default()
	for _, rec := range sampleRecords() {
		t.Run(rec.Table().String(), func(t *testing.T) {
			tbl := cat.Table(rec.Table())
			if tbl.ID != rec.Table() {
				t.Fatalf("descriptor ID = %v, want %v", tbl.ID, rec.Table())
			}
			fields := rec.Fields()
			cols := tbl.ColumnNames()
			if len(fields) != len(cols) {
				t.Fatalf("record has %d fields, descriptor has %d columns", len(fields), len(cols))
			}
			for i, f := range fields {
				if f.Column != cols[i] {
					t.Errorf("column %d: record %q, descriptor %q", i, f.Column, cols[i])
				}
			}
			if !tbl.Columns[0].PrimaryKey || cols[0] != "id" {
				t.Errorf("first column must be the id primary key")
			}
		})
	}
}

func TestCatalog_InsertSQL(t *testing.T) {
	cat := Default()

	tests := []struct {
		table domain.Table
		want  string
	}{
		{
			table: domain.TableGenre,
			want:  "INSERT INTO genre (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		},
		{
			table: domain.TablePersonFilmwork,
			want:  "INSERT INTO person_film_work (id, person_id, film_work_id, role, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.table.String(), func(t *testing.T) {
			if got := cat.InsertSQL(tt.table); got != tt.want {
				t.Errorf("InsertSQL() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestCatalog_CreateStatements_Postgres(t *testing.T) {
	stmts := Default().CreateStatements(DialectPostgres, "content")
	if stmts[0] != "CREATE SCHEMA IF NOT EXISTS content" {
		t.Fatalf("first statement = %q, want schema creation", stmts[0])
	}

	all := strings.Join(stmts, ";\n")
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS content.genre (",
		"id uuid PRIMARY KEY",
		"rating double precision CHECK (rating >= 0 AND rating <= 100)",
		"type text NOT NULL CHECK (type IN ('movie', 'tv_show'))",
		"genre_id uuid NOT NULL REFERENCES content.genre (id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS genre_film_work_idx ON content.genre_film_work (film_work_id, genre_id)",
		"created_at timestamp with time zone NOT NULL",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("DDL missing %q", want)
		}
	}

	// Referenced tables must be created before the join tables.
	genreAt := strings.Index(all, "content.genre (\n")
	joinAt := strings.Index(all, "content.genre_film_work (\n")
	if genreAt < 0 || joinAt < 0 || genreAt > joinAt {
		t.Errorf("genre must be created before genre_film_work")
	}
}

func TestCatalog_CreateStatements_SQLiteIgnoresNamespace(t *testing.T) {
	all := strings.Join(Default().CreateStatements(DialectSQLite, "content"), "\n")
	if strings.Contains(all, "content.") || strings.Contains(all, "CREATE SCHEMA") {
		t.Errorf("SQLite DDL must not be namespaced:\n%s", all)
	}
	if !strings.Contains(all, "created_at TIMESTAMP NOT NULL") {
		t.Errorf("SQLite DDL should declare TIMESTAMP columns:\n%s", all)
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "postgres", want: DialectPostgres},
		{in: "PG", want: DialectPostgres},
		{in: "sqlite3", want: DialectSQLite},
		{in: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("ParseDialect() expected error, got nil")
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseDialect(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}
