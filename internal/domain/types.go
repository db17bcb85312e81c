package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table identifies one of the five catalogue tables.
type Table int

const (
	TableGenre Table = iota
	TablePerson
	TableFilmwork
	TableGenreFilmwork
	TablePersonFilmwork
)

// TableCount is the number of known tables. Arrays sized with it must be
// updated whenever a table is added.
const TableCount = int(TablePersonFilmwork) + 1

var tableNames = [TableCount]string{
	TableGenre:          "genre",
	TablePerson:         "person",
	TableFilmwork:       "film_work",
	TableGenreFilmwork:  "genre_film_work",
	TablePersonFilmwork: "person_film_work",
}

// Tables returns every table in transfer order: independent tables first,
// join tables last, so foreign keys always point at committed rows.
func Tables() []Table {
	return []Table{
		TableGenre,
		TablePerson,
		TableFilmwork,
		TableGenreFilmwork,
		TablePersonFilmwork,
	}
}

// String returns the SQL table name
func (t Table) String() string {
	if !t.Valid() {
		return fmt.Sprintf("table(%d)", int(t))
	}
	return tableNames[t]
}

// Valid reports whether t is one of the known tables
func (t Table) Valid() bool {
	return t >= 0 && int(t) < TableCount
}

// MarshalText renders the table by name in JSON and YAML output
func (t Table) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTable resolves a SQL table name
func ParseTable(name string) (Table, error) {
	for i, n := range tableNames {
		if n == name {
			return Table(i), nil
		}
	}
	return 0, fmt.Errorf("unknown table %q", name)
}

// FilmworkType is the kind of a film work
type FilmworkType string

const (
	FilmworkTypeMovie  FilmworkType = "movie"
	FilmworkTypeTVShow FilmworkType = "tv_show"
)

// Genre represents a film genre
type Genre struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Person represents a cast or crew member
type Person struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filmwork represents a movie or TV show
type Filmwork struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description,omitempty"`
	CreationDate *time.Time   `json:"creation_date,omitempty"`
	FilePath     *string      `json:"file_path,omitempty"`
	Rating       *float64     `json:"rating,omitempty"` // 0-100
	Type         FilmworkType `json:"type"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// GenreFilmwork links a genre to a film work
type GenreFilmwork struct {
	ID         uuid.UUID `json:"id"`
	GenreID    uuid.UUID `json:"genre_id"`
	FilmworkID uuid.UUID `json:"film_work_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PersonFilmwork links a person to a film work in some role
type PersonFilmwork struct {
	ID         uuid.UUID `json:"id"`
	PersonID   uuid.UUID `json:"person_id"`
	FilmworkID uuid.UUID `json:"film_work_id"`
	Role       *string   `json:"role,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Genre) Table() Table          { return TableGenre }
func (Person) Table() Table         { return TablePerson }
func (Filmwork) Table() Table       { return TableFilmwork }
func (GenreFilmwork) Table() Table  { return TableGenreFilmwork }
func (PersonFilmwork) Table() Table { return TablePersonFilmwork }

func (g Genre) RecordID() uuid.UUID          { return g.ID }
func (p Person) RecordID() uuid.UUID         { return p.ID }
func (f Filmwork) RecordID() uuid.UUID       { return f.ID }
func (g GenreFilmwork) RecordID() uuid.UUID  { return g.ID }
func (p PersonFilmwork) RecordID() uuid.UUID { return p.ID }

// Fields returns the columns in schema order.
func (g Genre) Fields() []Field {
	return []Field{
		{"id", g.ID},
		{"name", g.Name},
		{"description", g.Description},
		{"created_at", g.CreatedAt},
		{"updated_at", g.UpdatedAt},
	}
}

func (p Person) Fields() []Field {
	return []Field{
		{"id", p.ID},
		{"full_name", p.FullName},
		{"created_at", p.CreatedAt},
		{"updated_at", p.UpdatedAt},
	}
}

func (f Filmwork) Fields() []Field {
	return []Field{
		{"id", f.ID},
		{"title", f.Title},
		{"description", f.Description},
		{"creation_date", f.CreationDate},
		{"file_path", f.FilePath},
		{"rating", f.Rating},
		{"type", string(f.Type)},
		{"created_at", f.CreatedAt},
		{"updated_at", f.UpdatedAt},
	}
}

func (g GenreFilmwork) Fields() []Field {
	return []Field{
		{"id", g.ID},
		{"genre_id", g.GenreID},
		{"film_work_id", g.FilmworkID},
		{"created_at", g.CreatedAt},
	}
}

func (p PersonFilmwork) Fields() []Field {
	return []Field{
		{"id", p.ID},
		{"person_id", p.PersonID},
		{"film_work_id", p.FilmworkID},
		{"role", p.Role},
		{"created_at", p.CreatedAt},
	}
}
