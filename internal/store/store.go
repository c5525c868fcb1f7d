package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("run not found")

// Run is one recorded command invocation.
type Run struct {
	ID        string         `json:"id"`
	Command   string         `json:"command"`
	Dataset   string         `json:"dataset"`
	Params    map[string]any `json:"params,omitempty"`
	Status    RunStatus      `json:"status"`
	Header    []string       `json:"header,omitempty"`
	Rows      int            `json:"rows"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Result is the stored table of a completed run.
type Result struct {
	Header  []string
	Records [][]string
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       RunStatus `json:"status,omitempty"`
	Command      string    `json:"command,omitempty"`
	Dataset      string    `json:"dataset,omitempty"`
	CreatedAfter time.Time `json:"created_after,omitempty"` // zero means no lower bound
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store persists runs and their result tables.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, command, dataset string, params map[string]any) (*Run, error)
	SaveResult(ctx context.Context, runID string, header []string, records [][]string) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Results
	ResultTable(ctx context.Context, runID string) (*Result, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver, migrated and ready to use.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "stationreach.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
