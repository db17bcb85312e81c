package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConnectionError is returned when a store cannot be opened or reached
type ConnectionError struct {
	Store string // "source" or "destination"
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s store: %v", e.Store, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaMismatchError is returned when a fetched row does not have the
// shape of the record type of its table.
type SchemaMismatchError struct {
	Table  Table
	Column string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch in table %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("schema mismatch in table %s, column %s: %s", e.Table, e.Column, e.Reason)
}

// ConstraintViolationError is returned when the destination rejects an
// insert for any reason other than a primary key conflict.
type ConstraintViolationError struct {
	Table      Table
	RecordID   uuid.UUID
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	constraint := e.Constraint
	if constraint == "" {
		constraint = "unknown"
	}
	return fmt.Sprintf("constraint violation in table %s (id %s, constraint %s): %v",
		e.Table, e.RecordID, constraint, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// MismatchKind says what the consistency checker found different
type MismatchKind string

const (
	MismatchCount MismatchKind = "count"
	MismatchValue MismatchKind = "value"
)

// ConsistencyMismatchError describes the first discrepancy found in a
// table. It is a check result; the checker never returns it as an error.
// Index and RecordID are set for value mismatches only.
type ConsistencyMismatchError struct {
	Table            Table        `json:"-" yaml:"-"`
	Kind             MismatchKind `json:"kind" yaml:"kind"`
	SourceCount      int64        `json:"source_count" yaml:"source_count"`
	DestinationCount int64        `json:"destination_count" yaml:"destination_count"`
	Index            *int         `json:"index,omitempty" yaml:"index,omitempty"`
	RecordID         *uuid.UUID   `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	Fields           []FieldDiff  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Diff             string       `json:"diff,omitempty" yaml:"diff,omitempty"`
}

func (e *ConsistencyMismatchError) Error() string {
	if e.Kind == MismatchCount {
		return fmt.Sprintf("table %s: row count mismatch: source=%d destination=%d",
			e.Table, e.SourceCount, e.DestinationCount)
	}
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Column
	}
	var (
		index int
		id    uuid.UUID
	)
	if e.Index != nil {
		index = *e.Index
	}
	if e.RecordID != nil {
		id = *e.RecordID
	}
	return fmt.Sprintf("table %s: value mismatch at index %d (id %s): %s",
		e.Table, index, id, strings.Join(cols, ", "))
}
