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
	n, err := CopyFrom(context.TODO(), nil, "test_table", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"test_table"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, "test_table", []string{"a", "b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Schema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"results", "rows"}, []string{"a"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "results.rows", []string{"a"}, [][]any{{1}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"test_table"}, []string{"a", "b"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{1, "x"}}
	_, err = CopyFrom(context.Background(), mock, "test_table", []string{"a", "b"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO test_table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "run_rows" WHERE "run_id" = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"run_rows"}, []string{"run_id", "n"}).WillReturnResult(2)
	mock.ExpectExec(`UPDATE runs`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	cfg := ReplaceConfig{Table: "run_rows", KeyCol: "run_id", Key: "run-1", Columns: []string{"run_id", "n"}}
	n, err := ReplaceRows(context.Background(), mock, cfg, [][]any{{"run-1", 1}, {"run-1", 2}}, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE runs SET status = 'complete'")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_CopyFailsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM`).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"run_rows"}, []string{"n"}).WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	cfg := ReplaceConfig{Table: "run_rows", KeyCol: "run_id", Key: "run-1", Columns: []string{"n"}}
	_, err = ReplaceRows(context.Background(), mock, cfg, [][]any{{1}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO run_rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_Validation(t *testing.T) {
	_, err := ReplaceRows(context.Background(), nil, ReplaceConfig{Table: "t", KeyCol: "k"}, nil, nil)
	assert.ErrorContains(t, err, "no columns")

	_, err = ReplaceRows(context.Background(), nil, ReplaceConfig{Table: "t", Columns: []string{"a"}}, nil, nil)
	assert.ErrorContains(t, err, "no key column")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"results.rows", `"results"."rows"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}
