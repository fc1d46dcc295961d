package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roster = MergeSpec{
	Table:   "officers",
	Columns: []string{"name", "email", "territory_state"},
	Key:     []string{"email"},
}

func TestMergeRows_EmptyRows(t *testing.T) {
	n, err := MergeRows(context.TODO(), nil, roster, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMergeRows_InvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec MergeSpec
		want string
	}{
		{"no table", MergeSpec{Columns: []string{"email"}, Key: []string{"email"}}, "table is empty"},
		{"no columns", MergeSpec{Table: "officers", Key: []string{"email"}}, "merge officers: column list is empty"},
		{"no key", MergeSpec{Table: "officers", Columns: []string{"name", "email"}}, "merge officers: natural key is empty"},
		{"key outside columns", MergeSpec{Table: "officers", Columns: []string{"name"}, Key: []string{"email"}}, `key column "email" not in column list`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeRows(context.TODO(), nil, tt.spec, [][]any{{"a"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMergeRows_RowWidthMismatch(t *testing.T) {
	_, err := MergeRows(context.TODO(), nil, roster, [][]any{{"Asha", "asha@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 2 values, want 3")
}

func TestMergeRows_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_officers" \(LIKE "officers" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_officers"}, roster.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "officers" \("name", "email", "territory_state"\) SELECT .+ FROM "_stage_officers" ON CONFLICT \("email"\) DO UPDATE SET "name" = EXCLUDED."name", "territory_state" = EXCLUDED."territory_state"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"Asha", "asha@example.com", "Gujarat"},
		{"Ravi", "ravi@example.com", "Kerala"},
	}
	n, err := MergeRows(context.Background(), mock, roster, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRows_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_officers"}, roster.Columns).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = MergeRows(context.Background(), mock, roster, [][]any{{"Asha", "asha@example.com", "Gujarat"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge officers: copy into _stage_officers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRows_FoldFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_officers"}, roster.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "officers"`).WillReturnError(fmt.Errorf("unique violation"))
	mock.ExpectRollback()

	_, err = MergeRows(context.Background(), mock, roster, [][]any{{"Asha", "asha@example.com", "Gujarat"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge officers: fold staged rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastPerKey_LaterRowWins(t *testing.T) {
	rows := [][]any{
		{"Asha", "asha@example.com", "Gujarat"},
		{"Ravi", "ravi@example.com", "Kerala"},
		{"Asha Patel", "asha@example.com", "Maharashtra"},
	}

	out, err := lastPerKey(roster, rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []any{"Asha Patel", "asha@example.com", "Maharashtra"}, out[0])
	assert.Equal(t, []any{"Ravi", "ravi@example.com", "Kerala"}, out[1])
}

func TestLastPerKey_CompositeKey(t *testing.T) {
	spec := MergeSpec{Table: "coverage", Columns: []string{"state", "product", "officer"}, Key: []string{"state", "product"}}
	out, err := lastPerKey(spec, [][]any{
		{"Gujarat", "FO", "asha"},
		{"Gujarat", "HSD", "asha"},
		{"Gujarat", "FO", "ravi"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ravi", out[0][2])
}

func TestMergeSQL(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "sales"."officers" ("name", "email") SELECT "name", "email" FROM "_stage_sales_officers" ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name"`,
		mergeSQL(MergeSpec{Table: "sales.officers", Columns: []string{"name", "email"}, Key: []string{"email"}}))

	assert.Equal(t,
		`INSERT INTO "officers" ("email") SELECT "email" FROM "_stage_officers" ON CONFLICT ("email") DO NOTHING`,
		mergeSQL(MergeSpec{Table: "officers", Columns: []string{"email"}, Key: []string{"email"}}))
}

func TestStagingSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TEMP TABLE "_stage_sales_officers" (LIKE "sales"."officers" INCLUDING DEFAULTS) ON COMMIT DROP`,
		stagingSQL(MergeSpec{Table: "sales.officers"}))
}
