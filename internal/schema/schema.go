// Package schema describes the destination tables explicitly: columns,
// types, keys and checks. The writer builds its statements from these
// descriptors and `moviesadm schema apply` renders them as DDL.
package schema

import (
	"fmt"
	"strings"

	"github.com/lherron/moviesdb/internal/domain"
)

// Dialect selects the SQL flavour DDL is rendered in
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect resolves a dialect name
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case DialectPostgres, "postgresql", "pg":
		return DialectPostgres, nil
	case DialectSQLite, "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unknown dialect %q: must be one of: postgres, sqlite", s)
	}
}

// ColumnType is the logical type of a column
type ColumnType int

const (
	TypeUUID ColumnType = iota
	TypeText
	TypeTimestamp
	TypeFloat
)

// SQL returns the column type in dialect d
func (t ColumnType) SQL(d Dialect) string {
	if d == DialectSQLite {
		switch t {
		case TypeTimestamp:
			return "TIMESTAMP"
		case TypeFloat:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	switch t {
	case TypeUUID:
		return "uuid"
	case TypeTimestamp:
		return "timestamp with time zone"
	case TypeFloat:
		return "double precision"
	default:
		return "text"
	}
}

// Reference is a foreign key target
type Reference struct {
	Table  domain.Table
	Column string
}

// Column describes one table column
type Column struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	PrimaryKey bool
	References *Reference
	Check      string // boolean SQL expression, empty for none
}

// Index describes a secondary index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table describes one destination table
type Table struct {
	ID      domain.Table
	Columns []Column
	Indexes []Index
}

// Name returns the SQL table name
func (t Table) Name() string {
	return t.ID.String()
}

// ColumnNames returns the column names in declaration order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog holds one descriptor per table, indexed by domain.Table.
type Catalog [domain.TableCount]Table

// Table returns the descriptor of t
func (c *Catalog) Table(t domain.Table) Table {
	return c[t]
}

// Default returns the catalogue schema: five tables keyed by UUID with
// timestamps, the rating range and film type checks, and cascading foreign
// keys from the join tables.
func Default() *Catalog {
	id := Column{Name: "id", Type: TypeUUID, PrimaryKey: true}
	created := Column{Name: "created_at", Type: TypeTimestamp}
	updated := Column{Name: "updated_at", Type: TypeTimestamp}
	filmRef := Column{Name: "film_work_id", Type: TypeUUID, References: &Reference{Table: domain.TableFilmwork, Column: "id"}}

	return &Catalog{
		domain.TableGenre: {
			ID: domain.TableGenre,
			Columns: []Column{
				id,
				{Name: "name", Type: TypeText},
				{Name: "description", Type: TypeText, Nullable: true},
				created,
				updated,
			},
		},
		domain.TablePerson: {
			ID: domain.TablePerson,
			Columns: []Column{
				id,
				{Name: "full_name", Type: TypeText},
				created,
				updated,
			},
		},
		domain.TableFilmwork: {
			ID: domain.TableFilmwork,
			Columns: []Column{
				id,
				{Name: "title", Type: TypeText},
				{Name: "description", Type: TypeText, Nullable: true},
				{Name: "creation_date", Type: TypeTimestamp, Nullable: true},
				{Name: "file_path", Type: TypeText, Nullable: true},
				{Name: "rating", Type: TypeFloat, Nullable: true,
					Check: fmt.Sprintf("rating >= %d AND rating <= %d", domain.MinRating, domain.MaxRating)},
				{Name: "type", Type: TypeText,
					Check: fmt.Sprintf("type IN ('%s', '%s')", domain.FilmworkTypeMovie, domain.FilmworkTypeTVShow)},
				created,
				updated,
			},
			Indexes: []Index{
				{Name: "film_work_creation_date_idx", Columns: []string{"creation_date"}},
			},
		},
		domain.TableGenreFilmwork: {
			ID: domain.TableGenreFilmwork,
			Columns: []Column{
				id,
				{Name: "genre_id", Type: TypeUUID, References: &Reference{Table: domain.TableGenre, Column: "id"}},
				filmRef,
				created,
			},
			Indexes: []Index{
				{Name: "genre_film_work_idx", Columns: []string{"film_work_id", "genre_id"}, Unique: true},
			},
		},
		domain.TablePersonFilmwork: {
			ID: domain.TablePersonFilmwork,
			Columns: []Column{
				id,
				{Name: "person_id", Type: TypeUUID, References: &Reference{Table: domain.TablePerson, Column: "id"}},
				filmRef,
				{Name: "role", Type: TypeText, Nullable: true},
				created,
			},
			Indexes: []Index{
				{Name: "person_film_work_idx", Columns: []string{"film_work_id", "person_id", "role"}, Unique: true},
			},
		},
	}
}

// InsertSQL returns the conflict-skipping insert for table t. Placeholders
// are positional ($1..$n) in column declaration order.
func (c *Catalog) InsertSQL(t domain.Table) string {
	tbl := c.Table(t)
	cols := tbl.ColumnNames()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING",
		tbl.Name(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

// CreateStatements renders IF NOT EXISTS DDL for every table in transfer
// order. A non-empty namespace qualifies table names and, for Postgres,
// creates the schema first. SQLite cannot qualify foreign key targets, so
// the namespace only applies to Postgres.
func (c *Catalog) CreateStatements(d Dialect, namespace string) []string {
	if d != DialectPostgres {
		namespace = ""
	}
	qualify := func(name string) string {
		if namespace == "" {
			return name
		}
		return namespace + "." + name
	}

	var stmts []string
	if namespace != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", namespace))
	}

	for _, t := range domain.Tables() {
		tbl := c.Table(t)
		defs := make([]string, 0, len(tbl.Columns))
		for _, col := range tbl.Columns {
			def := col.Name + " " + col.Type.SQL(d)
			if col.PrimaryKey {
				def += " PRIMARY KEY"
			} else if !col.Nullable {
				def += " NOT NULL"
			}
			if col.References != nil {
				def += fmt.Sprintf(" REFERENCES %s (%s) ON DELETE CASCADE",
					qualify(col.References.Table.String()), col.References.Column)
			}
			if col.Check != "" {
				def += " CHECK (" + col.Check + ")"
			}
			defs = append(defs, def)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
			qualify(tbl.Name()), strings.Join(defs, ",\n    ")))

		for _, idx := range tbl.Indexes {
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
				unique, idx.Name, qualify(tbl.Name()), strings.Join(idx.Columns, ", ")))
		}
	}
	return stmts
}
