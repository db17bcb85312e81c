package etl

import (
	"fmt"

	"github.com/lherron/moviesdb/internal/domain"
)

// Stage names the step of a table run that failed
type Stage string

const (
	StageBegin  Stage = "begin"
	StageCount  Stage = "count"
	StageRead   Stage = "read"
	StageWrite  Stage = "write"
	StageCommit Stage = "commit"
)

// TableError wraps a failure with the table it happened in.
type TableError struct {
	Table domain.Table
	Stage Stage
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %s failed: %v", e.Table, e.Stage, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }
