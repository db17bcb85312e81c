package etl

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/logger"
	"github.com/lherron/moviesdb/internal/schema"
)

// CheckMode selects how thoroughly records are compared
type CheckMode string

const (
	// CheckFull compares every field of every record.
	CheckFull CheckMode = "full"
	// CheckSpot compares only created_at of the first record per table.
	CheckSpot CheckMode = "spot"
)

// ParseCheckMode resolves a mode name; empty means full
func ParseCheckMode(s string) (CheckMode, error) {
	switch CheckMode(s) {
	case "", CheckFull:
		return CheckFull, nil
	case CheckSpot:
		return CheckSpot, nil
	default:
		return "", fmt.Errorf("unknown check mode %q: must be one of: full, spot", s)
	}
}

// TableStatus is the outcome of checking one table
type TableStatus string

const (
	StatusOK       TableStatus = "ok"
	StatusMismatch TableStatus = "mismatch"
	StatusSkipped  TableStatus = "skipped"
)

// CheckerConfig holds the settings of a consistency check
type CheckerConfig struct {
	BatchSize int
	Mode      CheckMode
	// ContinueOnMismatch checks every table instead of stopping at the
	// first mismatching one.
	ContinueOnMismatch bool
	Catalog            *schema.Catalog
	Logger             *logger.Logger
}

// TableCheck is the result for one table
type TableCheck struct {
	Table            domain.Table                     `json:"table" yaml:"table"`
	Status           TableStatus                      `json:"status" yaml:"status"`
	SourceCount      int64                            `json:"source_count" yaml:"source_count"`
	DestinationCount int64                            `json:"destination_count" yaml:"destination_count"`
	Compared         int                              `json:"compared" yaml:"compared"`
	Mismatch         *domain.ConsistencyMismatchError `json:"mismatch,omitempty" yaml:"mismatch,omitempty"`
}

// CheckReport is the result of a consistency check
type CheckReport struct {
	Mode       CheckMode    `json:"mode" yaml:"mode"`
	Consistent bool         `json:"consistent" yaml:"consistent"`
	Tables     []TableCheck `json:"tables" yaml:"tables"`
}

// Mismatches returns every mismatch found, in table order
func (r *CheckReport) Mismatches() []*domain.ConsistencyMismatchError {
	var out []*domain.ConsistencyMismatchError
	for _, t := range r.Tables {
		if t.Mismatch != nil {
			out = append(out, t.Mismatch)
		}
	}
	return out
}

// Checker verifies that the destination holds the same rows as the source.
type Checker struct {
	source Queryer
	dest   Queryer
	src    *Reader
	dst    *Reader
	cfg    CheckerConfig
	log    *logger.Logger
}

// NewChecker creates a Checker. Zero config values fall back to defaults.
func NewChecker(source, dest Queryer, cfg CheckerConfig) *Checker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Mode == "" {
		cfg.Mode = CheckFull
	}
	if cfg.Catalog == nil {
		cfg.Catalog = schema.Default()
	}
	log := logger.OrNop(cfg.Logger)

	return &Checker{
		source: source,
		dest:   dest,
		src:    NewReader(source, ReaderOptions{Catalog: cfg.Catalog, Logger: log}),
		dst:    NewReader(dest, ReaderOptions{Catalog: cfg.Catalog, Logger: log}),
		cfg:    cfg,
		log:    log,
	}
}

// Check compares every table. Mismatches are reported in the result;
// the error is reserved for read and schema failures.
func (c *Checker) Check(ctx context.Context) (*CheckReport, error) {
	report := &CheckReport{Mode: c.cfg.Mode, Consistent: true}

	stopped := false
	for _, table := range domain.Tables() {
		if stopped {
			report.Tables = append(report.Tables, TableCheck{Table: table, Status: StatusSkipped})
			continue
		}

		tc, err := c.checkTable(ctx, table)
		if err != nil {
			report.Consistent = false
			return report, err
		}
		report.Tables = append(report.Tables, tc)

		if tc.Mismatch != nil {
			report.Consistent = false
			c.log.Warn("table mismatch", "table", table.String(), "mismatch", tc.Mismatch.Error())
			if !c.cfg.ContinueOnMismatch {
				stopped = true
			}
			continue
		}
		c.log.Info("table consistent", "table", table.String(), "rows", tc.SourceCount)
	}
	return report, nil
}

func (c *Checker) checkTable(ctx context.Context, table domain.Table) (TableCheck, error) {
	tc := TableCheck{Table: table, Status: StatusOK}

	var err error
	if tc.SourceCount, err = countRows(ctx, c.source, table); err != nil {
		return tc, &TableError{Table: table, Stage: StageCount, Err: err}
	}
	if tc.DestinationCount, err = countRows(ctx, c.dest, table); err != nil {
		return tc, &TableError{Table: table, Stage: StageCount, Err: err}
	}
	if tc.SourceCount != tc.DestinationCount {
		tc.Status = StatusMismatch
		tc.Mismatch = &domain.ConsistencyMismatchError{
			Table:            table,
			Kind:             domain.MismatchCount,
			SourceCount:      tc.SourceCount,
			DestinationCount: tc.DestinationCount,
		}
		return tc, nil
	}

	left, err := c.load(ctx, c.src, table)
	if err != nil {
		return tc, &TableError{Table: table, Stage: StageRead, Err: err}
	}
	right, err := c.load(ctx, c.dst, table)
	if err != nil {
		return tc, &TableError{Table: table, Stage: StageRead, Err: err}
	}
	// COUNT(*) and the scan are separate statements
	if len(left) != len(right) {
		tc.Status = StatusMismatch
		tc.Mismatch = &domain.ConsistencyMismatchError{
			Table:            table,
			Kind:             domain.MismatchCount,
			SourceCount:      int64(len(left)),
			DestinationCount: int64(len(right)),
		}
		return tc, nil
	}

	limit := len(left)
	if c.cfg.Mode == CheckSpot && limit > 1 {
		limit = 1
	}
	for i := 0; i < limit; i++ {
		tc.Compared++
		diffs := domain.Compare(left[i], right[i])
		if c.cfg.Mode == CheckSpot {
			diffs = slices.DeleteFunc(diffs, func(d domain.FieldDiff) bool {
				return d.Column != "created_at"
			})
		}
		if len(diffs) == 0 {
			continue
		}

		index, id := i, left[i].RecordID()
		tc.Status = StatusMismatch
		tc.Mismatch = &domain.ConsistencyMismatchError{
			Table:            table,
			Kind:             domain.MismatchValue,
			SourceCount:      tc.SourceCount,
			DestinationCount: tc.DestinationCount,
			Index:            &index,
			RecordID:         &id,
			Fields:           diffs,
			Diff:             recordDiff(left[i], right[i]),
		}
		return tc, nil
	}
	return tc, nil
}

// load materializes a table sorted by id, since neither store guarantees
// a row order.
func (c *Checker) load(ctx context.Context, r *Reader, table domain.Table) ([]domain.Record, error) {
	cur, err := r.Open(ctx, table, c.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []domain.Record
	for cur.Next() {
		out = append(out, cur.Batch()...)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b domain.Record) int {
		ida, idb := a.RecordID(), b.RecordID()
		return bytes.Compare(ida[:], idb[:])
	})
	return out, nil
}

func countRows(ctx context.Context, q Queryer, table domain.Table) (int64, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("count of %s returned no rows", table)
	}
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}

func recordDiff(left, right domain.Record) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(domain.FormatRecord(left)),
		B:        difflib.SplitLines(domain.FormatRecord(right)),
		FromFile: "source",
		ToFile:   "destination",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return diff
}
