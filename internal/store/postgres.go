package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/db"
	"github.com/sells-group/forecast-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	stageRunColumns = []string{"id", "stage_id", "endpoint", "status", "summary", "error", "started_at", "finished_at"}
	snapshotColumns = []string{"id", "env", "path", "name", "saved_by", "role", "document", "warnings", "saved_at"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY,
	stage_id    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	status      TEXT NOT NULL,
	summary     JSONB,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS config_snapshots (
	id       TEXT PRIMARY KEY,
	env      TEXT NOT NULL,
	path     TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	saved_by TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL,
	warnings JSONB,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_stage_runs_stage ON stage_runs(stage_id);
CREATE INDEX IF NOT EXISTS idx_stage_runs_started ON stage_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_config_snapshots_env ON config_snapshots(env, saved_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordStageRun(ctx context.Context, run model.StageRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	summary, err := marshalJSONB(run.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	_, err = s.pool.Exec(ctx, db.InsertSQL("stage_runs", stageRunColumns, nil),
		run.ID, run.StageID, run.Endpoint, string(run.Status), summary, run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert stage run %s", run.ID)
}

func (s *PostgresStore) ListStageRuns(ctx context.Context, filter StageRunFilter) ([]model.StageRun, error) {
	query := `SELECT id, stage_id, endpoint, status, summary, error, started_at, finished_at FROM stage_runs WHERE 1=1`
	var args []any
	if filter.StageID != "" {
		args = append(args, filter.StageID)
		query += ` AND stage_id = $1`
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = ` + placeholder(len(args))
	}
	args = append(args, listLimit(filter.Limit))
	query += ` ORDER BY started_at DESC LIMIT ` + placeholder(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stage runs")
	}
	defer rows.Close()

	var runs []model.StageRun
	for rows.Next() {
		var (
			r       model.StageRun
			status  string
			summary []byte
		)
		if err := rows.Scan(&r.ID, &r.StageID, &r.Endpoint, &status, &summary, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage run")
		}
		r.Status = model.StageStatus(status)
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &r.Summary); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal summary %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list stage runs iterate")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap model.ConfigSnapshot) (*model.ConfigSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	warnings, err := marshalJSONB(snap.Warnings)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal warnings")
	}

	_, err = s.pool.Exec(ctx, db.InsertSQL("config_snapshots", snapshotColumns, []string{"id"}),
		snap.ID, string(snap.Env), snap.Path, snap.Name, snap.SavedBy, string(snap.Role),
		string(snap.Document), warnings, snap.SavedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save snapshot %s", snap.ID)
	}
	return &snap, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.ConfigSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, env, path, name, saved_by, role, document, warnings, saved_at FROM config_snapshots WHERE id = $1`,
		id,
	)
	snap, err := scanPostgresSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: snapshot %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", id)
	}
	return snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.ConfigSnapshot, error) {
	query := `SELECT id, env, path, name, saved_by, role, document, warnings, saved_at FROM config_snapshots WHERE 1=1`
	var args []any
	if filter.Env != "" {
		args = append(args, string(filter.Env))
		query += ` AND env = $1`
	}
	args = append(args, listLimit(filter.Limit))
	query += ` ORDER BY saved_at DESC LIMIT ` + placeholder(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.ConfigSnapshot
	for rows.Next() {
		snap, err := scanPostgresSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func scanPostgresSnapshot(row scanner) (*model.ConfigSnapshot, error) {
	var (
		snap      model.ConfigSnapshot
		env, role string
		document  string
		warnings  []byte
	)
	if err := row.Scan(&snap.ID, &env, &snap.Path, &snap.Name, &snap.SavedBy, &role, &document, &warnings, &snap.SavedAt); err != nil {
		return nil, err
	}
	snap.Env = model.Environment(env)
	snap.Role = model.Role(role)
	snap.Document = []byte(document)
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &snap.Warnings); err != nil {
			return nil, eris.Wrap(err, "unmarshal warnings")
		}
	}
	return &snap, nil
}

// marshalJSONB encodes v for a JSONB column, or nil for empty values.
func marshalJSONB[T any](v T) ([]byte, error) {
	text, err := marshalNullable(v)
	if err != nil || text == nil {
		return nil, err
	}
	return []byte(text.(string)), nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
