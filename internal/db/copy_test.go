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

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "officers", []string{"name", "email"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"officers"}, []string{"name", "email"}).WillReturnResult(2)

	rows := [][]any{{"Asha", "asha@example.com"}, {"Ravi", "ravi@example.com"}}
	n, err := CopyFrom(context.Background(), mock, "officers", []string{"name", "email"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"officers"}, []string{"name"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "officers", []string{"name"}, [][]any{{"Asha"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO officers")
	assert.NoError(t, mock.ExpectationsWereMet())
}
