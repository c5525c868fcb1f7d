package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/stationreach/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const postgresRunColumns = `id, command, dataset, params, status, header, row_count, error, created_at, updated_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	command    TEXT NOT NULL,
	dataset    TEXT NOT NULL,
	params     JSONB NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'running',
	header     JSONB,
	row_count  INTEGER NOT NULL DEFAULT 0,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_rows (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	row_num INTEGER NOT NULL,
	record  TEXT[] NOT NULL,
	PRIMARY KEY (run_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, command, dataset string, params map[string]any) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, command, dataset, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, command, dataset, paramsJSON, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Command:   command,
		Dataset:   dataset,
		Params:    params,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SaveResult replaces the run's rows via COPY and marks it complete in the
// same transaction.
func (s *PostgresStore) SaveResult(ctx context.Context, runID string, header []string, records [][]string) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal header")
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{runID, i, rec}
	}

	_, err = db.ReplaceRows(ctx, s.pool, db.ReplaceConfig{
		Table:   "run_rows",
		KeyCol:  "run_id",
		Key:     runID,
		Columns: []string{"run_id", "row_num", "record"},
	}, rows, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE runs SET header = $1, row_count = $2, status = $3, error = NULL, updated_at = $4 WHERE id = $5`,
			headerJSON, len(records), string(RunStatusComplete), time.Now().UTC(), runID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update run result %s", runID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "run %s", runID)
		}
		return nil
	})
	return err
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.Command != "" {
		query += fmt.Sprintf(` AND command = $%d`, argN)
		args = append(args, filter.Command)
		argN++
	}
	if filter.Dataset != "" {
		query += fmt.Sprintf(` AND dataset = $%d`, argN)
		args = append(args, filter.Dataset)
		argN++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argN)
		args = append(args, filter.CreatedAfter)
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argN)
	args = append(args, defaultLimit(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ResultTable(ctx context.Context, runID string) (*Result, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT record FROM run_rows WHERE run_id = $1 ORDER BY row_num`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query rows %s", runID)
	}
	defer rows.Close()

	res := &Result{Header: run.Header, Records: make([][]string, 0, run.Rows)}
	for rows.Next() {
		var rec []string
		if err := rows.Scan(&rec); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		res.Records = append(res.Records, rec)
	}
	return res, eris.Wrap(rows.Err(), "postgres: rows iterate")
}

func scanPgRun(row pgx.Row) (*Run, error) {
	var r Run
	var paramsJSON, headerJSON []byte
	var errMsg *string

	if err := row.Scan(&r.ID, &r.Command, &r.Dataset, &paramsJSON, &r.Status, &headerJSON, &r.Rows, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
			return nil, eris.Wrap(err, "unmarshal params")
		}
	}
	if len(headerJSON) > 0 {
		if err := json.Unmarshal(headerJSON, &r.Header); err != nil {
			return nil, eris.Wrap(err, "unmarshal header")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}
