// Package etl moves the movie catalogue from the SQLite source into the
// destination and verifies the result.
package etl

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/logger"
	"github.com/lherron/moviesdb/internal/schema"
)

// DefaultBatchSize is used when a non-positive batch size is requested
const DefaultBatchSize = 10

// Queryer is satisfied by *sql.DB, *sql.Tx and *db.DB
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReaderOptions configures a Reader
type ReaderOptions struct {
	// Catalog supplies the expected column set per table. Defaults to
	// schema.Default().
	Catalog *schema.Catalog
	Logger  *logger.Logger
}

// Reader opens batched cursors over the tables of one store.
type Reader struct {
	q   Queryer
	cat *schema.Catalog
	log *logger.Logger
}

// NewReader creates a Reader over q
func NewReader(q Queryer, opts ReaderOptions) *Reader {
	cat := opts.Catalog
	if cat == nil {
		cat = schema.Default()
	}
	return &Reader{q: q, cat: cat, log: logger.OrNop(opts.Logger)}
}

// Open starts a fresh SELECT over table. The column set the store returns
// must match the catalogue before any batch is produced.
func (r *Reader) Open(ctx context.Context, table domain.Table, batchSize int) (*Cursor, error) {
	if !table.Valid() {
		return nil, &domain.SchemaMismatchError{Table: table, Reason: "unknown table"}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows, err := r.q.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if err := checkColumns(table, cols, r.cat.Table(table).ColumnNames()); err != nil {
		rows.Close()
		return nil, err
	}

	r.log.Debug("cursor opened", "table", table.String(), "batch_size", batchSize)
	return &Cursor{table: table, rows: rows, cols: cols, size: batchSize}, nil
}

func checkColumns(table domain.Table, got, want []string) error {
	var missing, extra []string
	for _, c := range want {
		if !slices.Contains(got, c) {
			missing = append(missing, c)
		}
	}
	for _, c := range got {
		if !slices.Contains(want, c) {
			extra = append(extra, c)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	var reasons []string
	if len(missing) > 0 {
		reasons = append(reasons, "missing columns: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		reasons = append(reasons, "unexpected columns: "+strings.Join(extra, ", "))
	}
	return &domain.SchemaMismatchError{Table: table, Reason: strings.Join(reasons, "; ")}
}

// Cursor yields the rows of one table as batches of decoded records.
// It holds at most one batch and cannot be restarted.
type Cursor struct {
	table domain.Table
	rows  *sql.Rows
	cols  []string
	size  int

	batch []domain.Record
	read  int64
	err   error
	done  bool
}

// Next fetches the next batch. It returns false when the table is
// exhausted or an error occurred; check Err afterwards.
func (c *Cursor) Next() bool {
	c.batch = nil
	if c.done {
		return false
	}

	batch := make([]domain.Record, 0, c.size)
	for len(batch) < c.size && c.rows.Next() {
		rec, err := c.scan()
		if err != nil {
			c.fail(err)
			return false
		}
		batch = append(batch, rec)
	}

	if len(batch) < c.size {
		if err := c.rows.Err(); err != nil {
			c.fail(fmt.Errorf("failed to read %s: %w", c.table, err))
			return false
		}
		c.done = true
		c.rows.Close()
	}
	if len(batch) == 0 {
		return false
	}

	c.batch = batch
	c.read += int64(len(batch))
	return true
}

func (c *Cursor) scan() (domain.Record, error) {
	vals := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan %s row: %w", c.table, err)
	}

	row := make(domain.Row, len(c.cols))
	for i, col := range c.cols {
		row[col] = vals[i]
	}
	return domain.Decode(c.table, row)
}

func (c *Cursor) fail(err error) {
	c.err = err
	c.done = true
	c.rows.Close()
}

// Batch returns the records fetched by the last successful Next
func (c *Cursor) Batch() []domain.Record {
	return c.batch
}

// Err returns the error that ended iteration, if any
func (c *Cursor) Err() error {
	return c.err
}

// Read returns the number of records yielded so far
func (c *Cursor) Read() int64 {
	return c.read
}

// Table returns the table the cursor reads
func (c *Cursor) Table() domain.Table {
	return c.table
}

// Close releases the underlying result set. It is safe to call more than once.
func (c *Cursor) Close() error {
	c.done = true
	c.batch = nil
	return c.rows.Close()
}
