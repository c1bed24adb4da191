package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecast-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS stage_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordStageRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "stage_runs"`).
		WithArgs("run-1", "validate", "/api/validate_data", "succeeded", []byte(`{"rows":3}`), "", start, start.Add(time.Second)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordStageRun(context.Background(), model.StageRun{
		ID:         "run-1",
		StageID:    "validate",
		Endpoint:   "/api/validate_data",
		Status:     model.StageSucceeded,
		Summary:    map[string]any{"rows": 3},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStageRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "stage_id", "endpoint", "status", "summary", "error", "started_at", "finished_at"}).
		AddRow("run-1", "validate", "/api/validate_data", "succeeded", []byte(`{"rows":3}`), "", start, start.Add(time.Second)).
		AddRow("run-0", "validate", "/api/validate_data", "failed", []byte(nil), "boom", start.Add(-time.Minute), start)

	mock.ExpectQuery(`SELECT id, stage_id, endpoint, status, summary, error, started_at, finished_at FROM stage_runs WHERE 1=1 AND stage_id = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("validate", 10).
		WillReturnRows(rows)

	runs, err := s.ListStageRuns(context.Background(), StageRunFilter{StageID: "validate", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.InDelta(t, 3, runs[0].Summary["rows"], 0.001)
	assert.Equal(t, model.StageFailed, runs[1].Status)
	assert.Nil(t, runs[1].Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStageRuns_StatusOnly(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`AND status = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("failed", defaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "stage_id", "endpoint", "status", "summary", "error", "started_at", "finished_at"}))

	runs, err := s.ListStageRuns(context.Background(), StageRunFilter{Status: model.StageFailed})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "config_snapshots" .* ON CONFLICT \("id"\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "prod", "configs/prod/a.yaml", "A", "ana", "approver", "meta: {}\n", []byte(`["w1"]`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap, err := s.SaveSnapshot(context.Background(), model.ConfigSnapshot{
		Env:      model.EnvProd,
		Path:     "configs/prod/a.yaml",
		Name:     "A",
		SavedBy:  "ana",
		Role:     model.RoleApprover,
		Document: []byte("meta: {}\n"),
		Warnings: []string{"w1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.False(t, snap.SavedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, env, path, name, saved_by, role, document, warnings, saved_at FROM config_snapshots WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSnapshot(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	saved := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM config_snapshots WHERE 1=1 AND env = \$1 ORDER BY saved_at DESC LIMIT \$2`).
		WithArgs("dev", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "env", "path", "name", "saved_by", "role", "document", "warnings", "saved_at"}).
			AddRow("s1", "dev", "configs/dev/a.yaml", "A", "ana", "editor", "a: 1\n", []byte(`["check lead time"]`), saved))

	snaps, err := s.ListSnapshots(context.Background(), SnapshotFilter{Env: model.EnvDev, Limit: 5})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, model.EnvDev, snaps[0].Env)
	assert.Equal(t, []string{"check lead time"}, snaps[0].Warnings)
	assert.Equal(t, "a: 1\n", string(snaps[0].Document))
	assert.NoError(t, mock.ExpectationsWereMet())
}
