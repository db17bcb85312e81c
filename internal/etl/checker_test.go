package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/moviesdb/internal/db"
	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/testutil"
)

// migrated returns a source and a destination holding the same n-row fixture
func migrated(t *testing.T, n int) (*testutil.Fixture, *db.DB, *db.DB) {
	t.Helper()
	fix := testutil.NewFixture(n)
	source := testutil.NewSource(t, fix)
	dest := testutil.NewDestination(t)
	_, err := NewMigrator(source, dest, MigratorConfig{}).Run(context.Background())
	require.NoError(t, err)
	return fix, source, dest
}

func TestChecker_Consistent(t *testing.T) {
	_, source, dest := migrated(t, 12)

	for _, mode := range []CheckMode{CheckFull, CheckSpot} {
		report, err := NewChecker(source, dest, CheckerConfig{Mode: mode, BatchSize: 5}).Check(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Consistent, "mode %s", mode)
		assert.Equal(t, mode, report.Mode)
		require.Len(t, report.Tables, domain.TableCount)
		for _, tc := range report.Tables {
			assert.Equal(t, StatusOK, tc.Status, "%s", tc.Table)
			assert.EqualValues(t, 12, tc.SourceCount)
			assert.EqualValues(t, 12, tc.DestinationCount)
		}
	}
}

func TestChecker_CountMismatchStops(t *testing.T) {
	ctx := context.Background()
	fix, source, dest := migrated(t, 5)

	_, err := dest.ExecContext(ctx, "DELETE FROM person WHERE id = $1", fix.Persons[2].ID)
	require.NoError(t, err)

	report, err := NewChecker(source, dest, CheckerConfig{}).Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	assert.Equal(t, StatusOK, report.Tables[0].Status)
	person := report.Tables[1]
	assert.Equal(t, StatusMismatch, person.Status)
	require.NotNil(t, person.Mismatch)
	assert.Equal(t, domain.MismatchCount, person.Mismatch.Kind)
	assert.EqualValues(t, 5, person.Mismatch.SourceCount)
	assert.EqualValues(t, 4, person.Mismatch.DestinationCount)
	assert.Nil(t, person.Mismatch.Index)
	assert.Nil(t, person.Mismatch.RecordID)

	for _, tc := range report.Tables[2:] {
		assert.Equal(t, StatusSkipped, tc.Status, "%s", tc.Table)
	}
}

func TestChecker_ValueMismatch(t *testing.T) {
	ctx := context.Background()
	fix, source, dest := migrated(t, 5)
	target := fix.Filmworks[3]

	_, err := dest.ExecContext(ctx, "UPDATE film_work SET title = 'Changed' WHERE id = $1", target.ID)
	require.NoError(t, err)

	report, err := NewChecker(source, dest, CheckerConfig{}).Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	mismatches := report.Mismatches()
	require.Len(t, mismatches, 1)
	m := mismatches[0]
	assert.Equal(t, domain.TableFilmwork, m.Table)
	assert.Equal(t, domain.MismatchValue, m.Kind)
	require.NotNil(t, m.RecordID)
	assert.Equal(t, target.ID, *m.RecordID)
	require.Len(t, m.Fields, 1)
	assert.Equal(t, "title", m.Fields[0].Column)
	assert.Equal(t, `"Changed"`, m.Fields[0].Right)
	assert.Contains(t, m.Diff, "--- source")
	assert.Contains(t, m.Diff, "+++ destination")
	assert.Contains(t, m.Diff, `+title: "Changed"`)

	// Spot mode only looks at created_at
	spot, err := NewChecker(source, dest, CheckerConfig{Mode: CheckSpot}).Check(ctx)
	require.NoError(t, err)
	assert.True(t, spot.Consistent)
}

func TestChecker_SpotCreatedAt(t *testing.T) {
	ctx := context.Background()
	_, source, dest := migrated(t, 4)

	_, err := dest.ExecContext(ctx, "UPDATE genre SET created_at = '2000-01-01 00:00:00+00:00'")
	require.NoError(t, err)

	report, err := NewChecker(source, dest, CheckerConfig{Mode: CheckSpot}).Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	genre := report.Tables[0]
	require.NotNil(t, genre.Mismatch)
	assert.Equal(t, 1, genre.Compared)
	require.NotNil(t, genre.Mismatch.Index)
	assert.Equal(t, 0, *genre.Mismatch.Index)
	assert.Equal(t, "created_at", genre.Mismatch.Fields[0].Column)
}

func TestChecker_ContinueOnMismatch(t *testing.T) {
	ctx := context.Background()
	fix, source, dest := migrated(t, 3)

	_, err := dest.ExecContext(ctx, "UPDATE genre SET name = 'x' WHERE id = $1", fix.Genres[0].ID)
	require.NoError(t, err)
	_, err = dest.ExecContext(ctx, "DELETE FROM person_film_work WHERE id = $1", fix.PersonFilmworks[1].ID)
	require.NoError(t, err)

	report, err := NewChecker(source, dest, CheckerConfig{ContinueOnMismatch: true}).Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	mismatches := report.Mismatches()
	require.Len(t, mismatches, 2)
	assert.Equal(t, domain.TableGenre, mismatches[0].Table)
	assert.Equal(t, domain.TablePersonFilmwork, mismatches[1].Table)
	for _, tc := range report.Tables {
		assert.NotEqual(t, StatusSkipped, tc.Status)
	}
}

func TestChecker_MissingDestinationTable(t *testing.T) {
	ctx := context.Background()
	_, source, dest := migrated(t, 2)

	_, err := dest.ExecContext(ctx, "DROP TABLE person_film_work")
	require.NoError(t, err)

	_, err = NewChecker(source, dest, CheckerConfig{}).Check(ctx)
	require.Error(t, err)

	var tableErr *TableError
	require.True(t, errors.As(err, &tableErr), "got %v", err)
	assert.Equal(t, domain.TablePersonFilmwork, tableErr.Table)
	assert.Equal(t, StageCount, tableErr.Stage)
}

func TestParseCheckMode(t *testing.T) {
	for in, want := range map[string]CheckMode{"": CheckFull, "full": CheckFull, "spot": CheckSpot} {
		got, err := ParseCheckMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCheckMode("deep")
	assert.Error(t, err)
}

func TestChecker_UnparsableSourceDateIsAnError(t *testing.T) {
	ctx := context.Background()
	fix, _, dest := migrated(t, 2)
	broken := testutil.NewSource(t, fix, "UPDATE film_work SET creation_date = '16.06.2021'")

	report, err := NewChecker(broken, dest, CheckerConfig{}).Check(ctx)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Consistent)

	var tableErr *TableError
	require.True(t, errors.As(err, &tableErr), "got %v", err)
	assert.Equal(t, domain.TableFilmwork, tableErr.Table)
	assert.Equal(t, StageRead, tableErr.Stage)

	var mismatch *domain.SchemaMismatchError
	assert.True(t, errors.As(err, &mismatch))
}
