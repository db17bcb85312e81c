package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/logger"
	"github.com/lherron/moviesdb/internal/schema"
)

// Preparer is satisfied by *sql.Tx
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// BatchSource yields batches of records. *Cursor implements it.
type BatchSource interface {
	Next() bool
	Batch() []domain.Record
	Err() error
}

// WriterOptions configures a Writer
type WriterOptions struct {
	Logger *logger.Logger
}

// SaveResult counts what happened to the records of one Save call
type SaveResult struct {
	Batches  int   `json:"batches"`
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
}

// Writer inserts records into the destination, skipping ids that already
// exist there.
type Writer struct {
	cat *schema.Catalog
	log *logger.Logger
}

// NewWriter creates a Writer that builds its statements from cat
func NewWriter(cat *schema.Catalog, opts WriterOptions) *Writer {
	if cat == nil {
		cat = schema.Default()
	}
	return &Writer{cat: cat, log: logger.OrNop(opts.Logger)}
}

// Save drains src into table inside tx. The insert is prepared once and
// executed per record. Save never commits or rolls back tx.
//
// Errors from src are returned unchanged so callers can tell read
// failures from write failures.
func (w *Writer) Save(ctx context.Context, tx Preparer, table domain.Table, src BatchSource) (SaveResult, error) {
	var res SaveResult
	if !table.Valid() {
		return res, &domain.SchemaMismatchError{Table: table, Reason: "unknown table"}
	}

	query := w.cat.InsertSQL(table)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return res, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for src.Next() {
		batch := src.Batch()
		for _, rec := range batch {
			if rec.Table() != table {
				return res, &domain.SchemaMismatchError{
					Table:  table,
					Reason: fmt.Sprintf("record of table %s cannot be saved here", rec.Table()),
				}
			}

			inserted, err := w.insert(ctx, stmt, table, rec)
			if err != nil {
				return res, err
			}
			if inserted {
				res.Inserted++
			} else {
				res.Skipped++
			}
		}
		res.Batches++
		w.log.Debug("batch saved", "table", table.String(), "size", len(batch),
			"inserted", res.Inserted, "skipped", res.Skipped)
	}
	if err := src.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (w *Writer) insert(ctx context.Context, stmt *sql.Stmt, table domain.Table, rec domain.Record) (bool, error) {
	fields := rec.Fields()
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f.Value
	}

	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return false, classify(table, rec, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for %s: %w", table, err)
	}
	return n > 0, nil
}

// classify turns integrity failures from either driver into a
// ConstraintViolationError; other errors are wrapped with the table name.
func classify(table domain.Table, rec domain.Record, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return &domain.ConstraintViolationError{
			Table:      table,
			RecordID:   rec.RecordID(),
			Constraint: pgErr.ConstraintName,
			Err:        err,
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &domain.ConstraintViolationError{
			Table:      table,
			RecordID:   rec.RecordID(),
			Constraint: sqliteConstraint(sqliteErr.ExtendedCode),
			Err:        err,
		}
	}

	return fmt.Errorf("failed to insert into %s (id %s): %w", table, rec.RecordID(), err)
}

func sqliteConstraint(code sqlite3.ErrNoExtended) string {
	switch code {
	case sqlite3.ErrConstraintForeignKey:
		return "FOREIGN KEY"
	case sqlite3.ErrConstraintCheck:
		return "CHECK"
	case sqlite3.ErrConstraintNotNull:
		return "NOT NULL"
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return "UNIQUE"
	default:
		return ""
	}
}
