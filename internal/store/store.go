// Package store persists stage-run history and saved-config snapshots in
// SQLite or Postgres.
package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// StageRunFilter specifies criteria for listing stage runs.
type StageRunFilter struct {
	StageID string            `json:"stage_id,omitempty"`
	Status  model.StageStatus `json:"status,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

// SnapshotFilter specifies criteria for listing config snapshots.
type SnapshotFilter struct {
	Env   model.Environment `json:"env,omitempty"`
	Limit int               `json:"limit,omitempty"`
}

// Store persists local session history: stage attempts and the configs
// saved through the wizard.
type Store interface {
	// Stage runs
	RecordStageRun(ctx context.Context, run model.StageRun) error
	ListStageRuns(ctx context.Context, filter StageRunFilter) ([]model.StageRun, error)

	// Config snapshots
	SaveSnapshot(ctx context.Context, snap model.ConfigSnapshot) (*model.ConfigSnapshot, error)
	GetSnapshot(ctx context.Context, id string) (*model.ConfigSnapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.ConfigSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// Open connects to the configured backend and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if dsn == "" {
			dsn = "forecast.db"
		}
		if dir := filepath.Dir(dsn); !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrap(err, "store: create database dir")
			}
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
