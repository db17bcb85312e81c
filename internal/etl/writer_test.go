package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/schema"
	"github.com/lherron/moviesdb/internal/testutil"
)

// sliceSource yields fixed batches
type sliceSource struct {
	batches [][]domain.Record
	cur     []domain.Record
	err     error
}

func (s *sliceSource) Next() bool {
	if len(s.batches) == 0 {
		return false
	}
	s.cur, s.batches = s.batches[0], s.batches[1:]
	return true
}

func (s *sliceSource) Batch() []domain.Record { return s.cur }
func (s *sliceSource) Err() error             { return s.err }

func TestWriter_SkipOnConflict(t *testing.T) {
	ctx := context.Background()
	dest := testutil.NewDestination(t)
	fix := testutil.NewFixture(3)

	existing := fix.Genres[1]
	existing.Name = "Already there"
	_, err := dest.ExecContext(ctx,
		"INSERT INTO genre (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)",
		existing.ID, existing.Name, existing.CreatedAt, existing.UpdatedAt)
	require.NoError(t, err)

	tx, err := dest.BeginTx(ctx, nil)
	require.NoError(t, err)
	res, err := NewWriter(schema.Default(), WriterOptions{}).
		Save(ctx, tx, domain.TableGenre, &sliceSource{batches: [][]domain.Record{fix.Records(domain.TableGenre)}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.EqualValues(t, 2, res.Inserted)
	assert.EqualValues(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 3, testutil.CountRows(t, dest, domain.TableGenre))

	var name string
	require.NoError(t, dest.QueryRowContext(ctx, "SELECT name FROM genre WHERE id = $1", existing.ID).Scan(&name))
	assert.Equal(t, "Already there", name, "first writer wins")
}

func TestWriter_DanglingForeignKey(t *testing.T) {
	ctx := context.Background()
	dest := testutil.NewDestination(t)

	link := domain.GenreFilmwork{
		ID:         testutil.FixtureID("orphan"),
		GenreID:    testutil.FixtureID("missing-genre"),
		FilmworkID: testutil.FixtureID("missing-film"),
		CreatedAt:  time.Date(2021, 6, 16, 0, 0, 0, 0, time.UTC),
	}

	tx, err := dest.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = NewWriter(nil, WriterOptions{}).
		Save(ctx, tx, domain.TableGenreFilmwork, &sliceSource{batches: [][]domain.Record{{link}}})
	require.NoError(t, tx.Rollback())

	var violation *domain.ConstraintViolationError
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Equal(t, domain.TableGenreFilmwork, violation.Table)
	assert.Equal(t, link.ID, violation.RecordID)
	assert.Equal(t, "FOREIGN KEY", violation.Constraint)
	assert.Equal(t, 0, testutil.CountRows(t, dest, domain.TableGenreFilmwork))
}

func TestWriter_CheckConstraint(t *testing.T) {
	ctx := context.Background()
	dest := testutil.NewDestination(t)

	film := testutil.NewFixture(1).Filmworks[0]
	rating := 150.0
	film.Rating = &rating

	tx, err := dest.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = NewWriter(nil, WriterOptions{}).
		Save(ctx, tx, domain.TableFilmwork, &sliceSource{batches: [][]domain.Record{{film}}})

	var violation *domain.ConstraintViolationError
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Equal(t, "CHECK", violation.Constraint)
}

func TestWriter_WrongTable(t *testing.T) {
	ctx := context.Background()
	dest := testutil.NewDestination(t)
	person := testutil.NewFixture(1).Persons[0]

	tx, err := dest.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = NewWriter(nil, WriterOptions{}).
		Save(ctx, tx, domain.TableGenre, &sliceSource{batches: [][]domain.Record{{person}}})

	var mismatch *domain.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, domain.TableGenre, mismatch.Table)
}

func TestWriter_SourceErrorPassesThrough(t *testing.T) {
	ctx := context.Background()
	dest := testutil.NewDestination(t)
	boom := errors.New("disk I/O error")

	tx, err := dest.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = NewWriter(nil, WriterOptions{}).
		Save(ctx, tx, domain.TablePerson, &sliceSource{err: boom})
	assert.Same(t, boom, err)
}

func TestClassify(t *testing.T) {
	rec := testutil.NewFixture(1).Filmworks[0]

	tests := []struct {
		name           string
		err            error
		wantViolation  bool
		wantConstraint string
	}{
		{
			name:           "check violation",
			err:            &pgconn.PgError{Code: "23514", ConstraintName: "film_work_rating_check"},
			wantViolation:  true,
			wantConstraint: "film_work_rating_check",
		},
		{
			name:           "foreign key violation",
			err:            &pgconn.PgError{Code: "23503", ConstraintName: "genre_film_work_genre_id_fkey"},
			wantViolation:  true,
			wantConstraint: "genre_film_work_genre_id_fkey",
		},
		{
			name: "undefined table",
			err:  &pgconn.PgError{Code: "42P01"},
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(domain.TableFilmwork, rec, tt.err)
			assert.ErrorIs(t, err, tt.err)

			var violation *domain.ConstraintViolationError
			assert.Equal(t, tt.wantViolation, errors.As(err, &violation))
			if tt.wantViolation {
				assert.Equal(t, tt.wantConstraint, violation.Constraint)
				assert.Equal(t, rec.ID, violation.RecordID)
			} else {
				assert.Contains(t, err.Error(), "film_work")
			}
		})
	}
}
