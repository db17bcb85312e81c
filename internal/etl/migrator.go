package etl

import (
	"context"
	"database/sql"
	"time"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/logger"
	"github.com/lherron/moviesdb/internal/schema"
)

// TxBeginner is satisfied by *sql.DB and *db.DB
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// MigratorConfig holds the settings of a transfer run
type MigratorConfig struct {
	BatchSize int
	Catalog   *schema.Catalog
	Logger    *logger.Logger
}

// TableReport summarizes the transfer of one table
type TableReport struct {
	Table    domain.Table  `json:"table" yaml:"table"`
	Read     int64         `json:"read" yaml:"read"`
	Batches  int           `json:"batches" yaml:"batches"`
	Inserted int64         `json:"inserted" yaml:"inserted"`
	Skipped  int64         `json:"skipped" yaml:"skipped"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// RunReport lists the tables committed by a run, in transfer order.
type RunReport struct {
	Tables   []TableReport `json:"tables" yaml:"tables"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// Inserted returns the number of rows inserted across all tables
func (r *RunReport) Inserted() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Inserted
	}
	return n
}

// Skipped returns the number of rows skipped across all tables
func (r *RunReport) Skipped() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Skipped
	}
	return n
}

// Migrator copies every table from source to dest, one transaction per
// table, in transfer order.
type Migrator struct {
	dest   TxBeginner
	reader *Reader
	writer *Writer
	cfg    MigratorConfig
	log    *logger.Logger
}

// NewMigrator creates a Migrator. Zero config values fall back to defaults.
func NewMigrator(source Queryer, dest TxBeginner, cfg MigratorConfig) *Migrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Catalog == nil {
		cfg.Catalog = schema.Default()
	}
	log := logger.OrNop(cfg.Logger)

	return &Migrator{
		dest:   dest,
		reader: NewReader(source, ReaderOptions{Catalog: cfg.Catalog, Logger: log}),
		writer: NewWriter(cfg.Catalog, WriterOptions{Logger: log}),
		cfg:    cfg,
		log:    log,
	}
}

// Run transfers all tables. It stops at the first failing table, whose
// transaction is rolled back; tables committed before it stay committed
// and are listed in the returned report.
func (m *Migrator) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{}

	for _, table := range domain.Tables() {
		tr, err := m.migrateTable(ctx, table)
		if err != nil {
			m.log.Error("table transfer failed", "table", table.String(), "error", err)
			report.Duration = time.Since(start)
			return report, err
		}
		report.Tables = append(report.Tables, tr)
		m.log.Info("table transferred", "table", table.String(),
			"read", tr.Read, "inserted", tr.Inserted, "skipped", tr.Skipped)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (m *Migrator) migrateTable(ctx context.Context, table domain.Table) (TableReport, error) {
	start := time.Now()
	tr := TableReport{Table: table}

	tx, err := m.dest.BeginTx(ctx, nil)
	if err != nil {
		return tr, &TableError{Table: table, Stage: StageBegin, Err: err}
	}

	cur, err := m.reader.Open(ctx, table, m.cfg.BatchSize)
	if err != nil {
		tx.Rollback()
		return tr, &TableError{Table: table, Stage: StageRead, Err: err}
	}

	res, err := m.writer.Save(ctx, tx, table, cur)
	cur.Close()
	if err != nil {
		tx.Rollback()
		stage := StageWrite
		if cur.Err() != nil {
			stage = StageRead
		}
		return tr, &TableError{Table: table, Stage: stage, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return tr, &TableError{Table: table, Stage: StageCommit, Err: err}
	}

	tr.Read = cur.Read()
	tr.Batches = res.Batches
	tr.Inserted = res.Inserted
	tr.Skipped = res.Skipped
	tr.Duration = time.Since(start)
	return tr, nil
}
