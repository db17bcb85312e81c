package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/moviesdb/internal/db"
	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/schema"
)

// SourceSchema mirrors the legacy SQLite file: text ids, text timestamps,
// no foreign keys, join columns in a different order than the destination.
var SourceSchema = []string{
	`CREATE TABLE genre (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at timestamp with time zone,
		updated_at timestamp with time zone
	)`,
	`CREATE TABLE person (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		created_at timestamp with time zone,
		updated_at timestamp with time zone
	)`,
	`CREATE TABLE film_work (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		creation_date DATE,
		file_path TEXT,
		rating FLOAT,
		type TEXT NOT NULL,
		created_at timestamp with time zone,
		updated_at timestamp with time zone
	)`,
	`CREATE TABLE genre_film_work (
		id TEXT PRIMARY KEY,
		film_work_id TEXT NOT NULL,
		genre_id TEXT NOT NULL,
		created_at timestamp with time zone
	)`,
	`CREATE TABLE person_film_work (
		id TEXT PRIMARY KEY,
		film_work_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		role TEXT,
		created_at timestamp with time zone
	)`,
}

// SourceTimestampLayout is how the legacy file spells timestamps
const SourceTimestampLayout = "2006-01-02 15:04:05.999999-07"

var fixtureNS = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// FixtureID returns a stable UUID for a fixture name
func FixtureID(name string) uuid.UUID {
	return uuid.NewSHA1(fixtureNS, []byte(name))
}

// Fixture is a consistent catalogue: every join row points at existing rows.
type Fixture struct {
	Genres          []domain.Genre
	Persons         []domain.Person
	Filmworks       []domain.Filmwork
	GenreFilmworks  []domain.GenreFilmwork
	PersonFilmworks []domain.PersonFilmwork
}

// NewFixture builds n rows in every table
func NewFixture(n int) *Fixture {
	base := time.Date(2021, 6, 16, 20, 14, 9, 221838000, time.UTC)
	f := &Fixture{}
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		desc := fmt.Sprintf("description %d", i)
		f.Genres = append(f.Genres, domain.Genre{
			ID: FixtureID(fmt.Sprintf("genre-%d", i)), Name: fmt.Sprintf("Genre %d", i),
			Description: &desc, CreatedAt: at, UpdatedAt: at,
		})
		f.Persons = append(f.Persons, domain.Person{
			ID: FixtureID(fmt.Sprintf("person-%d", i)), FullName: fmt.Sprintf("Person %d", i),
			CreatedAt: at, UpdatedAt: at,
		})

		film := domain.Filmwork{
			ID: FixtureID(fmt.Sprintf("film-%d", i)), Title: fmt.Sprintf("Film %d", i),
			Type: domain.FilmworkTypeMovie, CreatedAt: at, UpdatedAt: at.Add(time.Hour),
		}
		if i%2 == 0 {
			rating := float64(i%10) * 10.5
			created := time.Date(2000+i%20, time.Month(1+i%12), 1, 0, 0, 0, 0, time.UTC)
			film.Rating = &rating
			film.CreationDate = &created
			film.Description = &desc
		} else {
			film.Type = domain.FilmworkTypeTVShow
		}
		f.Filmworks = append(f.Filmworks, film)

		role := []string{"actor", "writer", "director"}[i%3]
		f.GenreFilmworks = append(f.GenreFilmworks, domain.GenreFilmwork{
			ID: FixtureID(fmt.Sprintf("gfw-%d", i)), GenreID: f.Genres[i].ID, FilmworkID: film.ID, CreatedAt: at,
		})
		f.PersonFilmworks = append(f.PersonFilmworks, domain.PersonFilmwork{
			ID: FixtureID(fmt.Sprintf("pfw-%d", i)), PersonID: f.Persons[i].ID, FilmworkID: film.ID, Role: &role, CreatedAt: at,
		})
	}
	return f
}

// Records returns the fixture rows of table t
func (f *Fixture) Records(t domain.Table) []domain.Record {
	var out []domain.Record
	switch t {
	case domain.TableGenre:
		for _, r := range f.Genres {
			out = append(out, r)
		}
	case domain.TablePerson:
		for _, r := range f.Persons {
			out = append(out, r)
		}
	case domain.TableFilmwork:
		for _, r := range f.Filmworks {
			out = append(out, r)
		}
	case domain.TableGenreFilmwork:
		for _, r := range f.GenreFilmworks {
			out = append(out, r)
		}
	case domain.TablePersonFilmwork:
		for _, r := range f.PersonFilmworks {
			out = append(out, r)
		}
	}
	return out
}

// NewSourceFile creates a legacy-format SQLite file seeded with fix (which
// may be nil) and returns its path. extra statements run after seeding.
func NewSourceFile(t *testing.T, fix *Fixture, extra ...string) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite")

	database, err := db.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("Failed to create source database: %v", err)
	}
	defer database.Close()

	for _, stmt := range SourceSchema {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("Failed to create source schema: %v", err)
		}
	}

	if fix != nil {
		for _, table := range domain.Tables() {
			for _, rec := range fix.Records(table) {
				InsertSource(t, database, rec)
			}
		}
	}

	for _, stmt := range extra {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("Failed to run %q: %v", stmt, err)
		}
	}
	return path
}

// NewSource creates a seeded legacy SQLite file and opens it read-only.
func NewSource(t *testing.T, fix *Fixture, extra ...string) *db.DB {
	t.Helper()
	source, err := db.OpenSource(context.Background(), NewSourceFile(t, fix, extra...))
	if err != nil {
		t.Fatalf("Failed to open source database: %v", err)
	}
	t.Cleanup(func() { source.Close() })
	return source
}

// InsertSource writes rec the way the legacy file stores it: ids and
// timestamps as text, creation dates as plain dates.
func InsertSource(t *testing.T, database *db.DB, rec domain.Record) {
	t.Helper()
	cols, args := SourceValues(rec)
	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		rec.Table(), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := database.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to seed %s: %v", rec.Table(), err)
	}
}

// SourceValues returns the columns of rec and their legacy text encoding
func SourceValues(rec domain.Record) ([]string, []any) {
	fields := rec.Fields()
	cols := make([]string, len(fields))
	vals := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
		vals[i] = sourceValue(f.Column, f.Value)
	}
	return cols, vals
}

func sourceValue(column string, v any) any {
	switch t := v.(type) {
	case uuid.UUID:
		return t.String()
	case time.Time:
		return t.Format(SourceTimestampLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		if column == "creation_date" {
			return t.Format("2006-01-02")
		}
		return t.Format(SourceTimestampLayout)
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	default:
		return v
	}
}

// NewDestination creates an empty SQLite destination with the catalogue
// schema applied and foreign keys enforced.
func NewDestination(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	dest, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "dest.db"))
	if err != nil {
		t.Fatalf("Failed to create destination database: %v", err)
	}
	t.Cleanup(func() { dest.Close() })

	if _, err := dest.ApplySchema(ctx, schema.Default(), ""); err != nil {
		t.Fatalf("Failed to apply destination schema: %v", err)
	}
	return dest
}

// CountRows returns the number of rows in table
func CountRows(t *testing.T, database *db.DB, table domain.Table) int {
	t.Helper()
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := database.QueryRowContext(context.Background(), query).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
