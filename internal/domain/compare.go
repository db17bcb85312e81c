package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timestampLayouts are tried in order by ParseTimestamp. Fractional seconds
// are accepted after the seconds field even though no layout spells them.
var timestampLayouts = []string{
	time.RFC3339,                // 2021-06-16T20:14:09.221838Z
	"2006-01-02 15:04:05Z07:00", // go-sqlite3 / Postgres text output
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07", // 2021-06-16 20:14:09.221838+00
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp spellings found in SQLite text
// columns. Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// CanonicalTime converts t to UTC at microsecond precision, which is what
// a Postgres timestamp column stores.
func CanonicalTime(t time.Time) time.Time {
	return t.UTC().Round(time.Microsecond)
}

// FieldDiff describes one column whose values differ between two records.
type FieldDiff struct {
	Column string `json:"column" yaml:"column"`
	Left   string `json:"source" yaml:"source"`
	Right  string `json:"destination" yaml:"destination"`
}

// Compare returns the columns that differ between a and b. Records of
// different tables differ on every column of a.
func Compare(a, b Record) []FieldDiff {
	var diffs []FieldDiff
	af := a.Fields()
	if a.Table() != b.Table() {
		for _, f := range af {
			diffs = append(diffs, FieldDiff{Column: f.Column, Left: FormatValue(f.Value), Right: "<" + b.Table().String() + ">"})
		}
		return diffs
	}

	bf := b.Fields()
	for i, f := range af {
		if !valuesEqual(f.Value, bf[i].Value) {
			diffs = append(diffs, FieldDiff{
				Column: f.Column,
				Left:   FormatValue(f.Value),
				Right:  FormatValue(bf[i].Value),
			})
		}
	}
	return diffs
}

// Equal reports whether two records hold the same values in every column
func Equal(a, b Record) bool {
	return len(Compare(a, b)) == 0
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case *time.Time:
		bv, ok := b.(*time.Time)
		if !ok || (av == nil) != (bv == nil) {
			return false
		}
		return av == nil || av.Equal(*bv)
	case *string:
		bv, ok := b.(*string)
		if !ok || (av == nil) != (bv == nil) {
			return false
		}
		return av == nil || *av == *bv
	case *float64:
		bv, ok := b.(*float64)
		if !ok || (av == nil) != (bv == nil) {
			return false
		}
		return av == nil || *av == *bv
	default:
		return a == b
	}
}

// FormatValue renders a field value for reports and diffs.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case uuid.UUID:
		return t.String()
	case string:
		return strconv.Quote(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *string:
		if t == nil {
			return "NULL"
		}
		return strconv.Quote(*t)
	case *time.Time:
		if t == nil {
			return "NULL"
		}
		return t.UTC().Format(time.RFC3339Nano)
	case *float64:
		if t == nil {
			return "NULL"
		}
		return strconv.FormatFloat(*t, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// FormatRecord renders a record as "column: value" lines
func FormatRecord(r Record) string {
	var b strings.Builder
	for _, f := range r.Fields() {
		fmt.Fprintf(&b, "%s: %s\n", f.Column, FormatValue(f.Value))
	}
	return b.String()
}
