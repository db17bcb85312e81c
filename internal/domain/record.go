package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is implemented by every table row type.
type Record interface {
	Table() Table
	RecordID() uuid.UUID
	// Fields decomposes the record into column/value pairs in schema order.
	Fields() []Field
}

// Field is a single column value of a record
type Field struct {
	Column string
	Value  any
}

// Row is a fetched row keyed by column name. Column order is irrelevant.
type Row map[string]any

// Decode builds the record type of table from a row.
// Text timestamps are parsed and every time value is normalized with
// CanonicalTime, so rows read from either store compare equal.
func Decode(table Table, row Row) (Record, error) {
	r := &rowDecoder{table: table, row: row}

	var rec Record
	switch table {
	case TableGenre:
		rec = Genre{
			ID:          r.uuid("id"),
			Name:        r.text("name"),
			Description: r.optText("description"),
			CreatedAt:   r.timestamp("created_at"),
			UpdatedAt:   r.timestamp("updated_at"),
		}
	case TablePerson:
		rec = Person{
			ID:        r.uuid("id"),
			FullName:  r.text("full_name"),
			CreatedAt: r.timestamp("created_at"),
			UpdatedAt: r.timestamp("updated_at"),
		}
	case TableFilmwork:
		rec = Filmwork{
			ID:           r.uuid("id"),
			Title:        r.text("title"),
			Description:  r.optText("description"),
			CreationDate: r.optTimestamp("creation_date"),
			FilePath:     r.optText("file_path"),
			Rating:       r.optFloat("rating"),
			Type:         FilmworkType(r.text("type")),
			CreatedAt:    r.timestamp("created_at"),
			UpdatedAt:    r.timestamp("updated_at"),
		}
	case TableGenreFilmwork:
		rec = GenreFilmwork{
			ID:         r.uuid("id"),
			GenreID:    r.uuid("genre_id"),
			FilmworkID: r.uuid("film_work_id"),
			CreatedAt:  r.timestamp("created_at"),
		}
	case TablePersonFilmwork:
		rec = PersonFilmwork{
			ID:         r.uuid("id"),
			PersonID:   r.uuid("person_id"),
			FilmworkID: r.uuid("film_work_id"),
			Role:       r.optText("role"),
			CreatedAt:  r.timestamp("created_at"),
		}
	default:
		return nil, &SchemaMismatchError{Table: table, Reason: "unknown table"}
	}

	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

// rowDecoder keeps the first conversion error so Decode reads linearly.
type rowDecoder struct {
	table Table
	row   Row
	err   error
}

func (r *rowDecoder) fail(column, format string, args ...any) {
	if r.err == nil {
		r.err = &SchemaMismatchError{Table: r.table, Column: column, Reason: fmt.Sprintf(format, args...)}
	}
}

func (r *rowDecoder) value(column string) (any, bool) {
	v, ok := r.row[column]
	if !ok {
		r.fail(column, "missing column")
	}
	return v, ok
}

func (r *rowDecoder) uuid(column string) uuid.UUID {
	v, ok := r.value(column)
	if !ok {
		return uuid.Nil
	}
	id, err := toUUID(v)
	if err != nil {
		r.fail(column, "%v", err)
	}
	return id
}

func (r *rowDecoder) text(column string) string {
	s := r.optText(column)
	if s == nil {
		if r.err == nil {
			r.fail(column, "unexpected NULL")
		}
		return ""
	}
	return *s
}

func (r *rowDecoder) optText(column string) *string {
	v, ok := r.value(column)
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return &t
	case []byte:
		s := string(t)
		return &s
	default:
		r.fail(column, "expected text, got %T", v)
		return nil
	}
}

func (r *rowDecoder) timestamp(column string) time.Time {
	t := r.optTimestamp(column)
	if t == nil {
		if r.err == nil {
			r.fail(column, "unexpected NULL")
		}
		return time.Time{}
	}
	return *t
}

func (r *rowDecoder) optTimestamp(column string) *time.Time {
	v, ok := r.value(column)
	if !ok || v == nil {
		return nil
	}
	var (
		ts  time.Time
		err error
	)
	switch t := v.(type) {
	case time.Time:
		ts = t
	case string:
		ts, err = ParseTimestamp(t)
	case []byte:
		ts, err = ParseTimestamp(string(t))
	default:
		err = fmt.Errorf("expected timestamp, got %T", v)
	}
	if err != nil {
		r.fail(column, "%v", err)
		return nil
	}
	// go-sqlite3 yields the zero time for DATE/TIMESTAMP text it cannot parse
	if ts.IsZero() {
		r.fail(column, "unparsable timestamp %v", v)
		return nil
	}
	ts = CanonicalTime(ts)
	return &ts
}

func (r *rowDecoder) optFloat(column string) *float64 {
	v, ok := r.value(column)
	if !ok || v == nil {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int:
		f = float64(t)
	case string, []byte:
		parsed, err := strconv.ParseFloat(asString(t), 64)
		if err != nil {
			r.fail(column, "invalid number %q", asString(t))
			return nil
		}
		f = parsed
	default:
		r.fail(column, "expected number, got %T", v)
		return nil
	}
	return &f
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	s, _ := v.(string)
	return s
}

func toUUID(v any) (uuid.UUID, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case string:
		return uuid.Parse(t)
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case nil:
		return uuid.Nil, fmt.Errorf("unexpected NULL")
	default:
		return uuid.Nil, fmt.Errorf("expected uuid, got %T", v)
	}
}
