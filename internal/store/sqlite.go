package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/forecast-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY,
	stage_id    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	status      TEXT NOT NULL,
	summary     TEXT,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config_snapshots (
	id       TEXT PRIMARY KEY,
	env      TEXT NOT NULL,
	path     TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	saved_by TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL,
	warnings TEXT,
	saved_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_runs_stage ON stage_runs(stage_id);
CREATE INDEX IF NOT EXISTS idx_stage_runs_started ON stage_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_config_snapshots_env ON config_snapshots(env, saved_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordStageRun(ctx context.Context, run model.StageRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	summary, err := marshalNullable(run.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, stage_id, endpoint, status, summary, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StageID, run.Endpoint, string(run.Status), summary, run.Error,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
	)
	return eris.Wrapf(err, "sqlite: insert stage run %s", run.ID)
}

func (s *SQLiteStore) ListStageRuns(ctx context.Context, filter StageRunFilter) ([]model.StageRun, error) {
	query := `SELECT id, stage_id, endpoint, status, summary, error, started_at, finished_at FROM stage_runs WHERE 1=1`
	var args []any

	if filter.StageID != "" {
		query += ` AND stage_id = ?`
		args = append(args, filter.StageID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stage runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.StageRun
	for rows.Next() {
		var (
			r                 model.StageRun
			status            string
			summary           sql.NullString
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.StageID, &r.Endpoint, &status, &summary, &r.Error, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage run")
		}
		r.Status = model.StageStatus(status)
		if summary.Valid && summary.String != "" {
			if err := json.Unmarshal([]byte(summary.String), &r.Summary); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal summary %s", r.ID)
			}
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list stage runs iterate")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.ConfigSnapshot) (*model.ConfigSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	warnings, err := marshalNullable(snap.Warnings)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal warnings")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO config_snapshots (id, env, path, name, saved_by, role, document, warnings, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   env = excluded.env, path = excluded.path, name = excluded.name,
		   saved_by = excluded.saved_by, role = excluded.role,
		   document = excluded.document, warnings = excluded.warnings, saved_at = excluded.saved_at`,
		snap.ID, string(snap.Env), snap.Path, snap.Name, snap.SavedBy, string(snap.Role),
		string(snap.Document), warnings, formatTime(snap.SavedAt),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save snapshot %s", snap.ID)
	}
	return &snap, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.ConfigSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, env, path, name, saved_by, role, document, warnings, saved_at FROM config_snapshots WHERE id = ?`,
		id,
	)
	snap, err := scanSQLiteSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: snapshot %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", id)
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.ConfigSnapshot, error) {
	query := `SELECT id, env, path, name, saved_by, role, document, warnings, saved_at FROM config_snapshots WHERE 1=1`
	var args []any
	if filter.Env != "" {
		query += ` AND env = ?`
		args = append(args, string(filter.Env))
	}
	query += ` ORDER BY saved_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var snaps []model.ConfigSnapshot
	for rows.Next() {
		snap, err := scanSQLiteSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSnapshot(row scanner) (*model.ConfigSnapshot, error) {
	var (
		snap      model.ConfigSnapshot
		env, role string
		document  string
		warnings  sql.NullString
		savedAt   string
	)
	if err := row.Scan(&snap.ID, &env, &snap.Path, &snap.Name, &snap.SavedBy, &role, &document, &warnings, &savedAt); err != nil {
		return nil, err
	}
	snap.Env = model.Environment(env)
	snap.Role = model.Role(role)
	snap.Document = []byte(document)
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &snap.Warnings); err != nil {
			return nil, eris.Wrap(err, "unmarshal warnings")
		}
	}
	t, err := parseTime(savedAt)
	if err != nil {
		return nil, err
	}
	snap.SavedAt = t
	return &snap, nil
}

// marshalNullable encodes v as JSON text, or NULL for empty values.
func marshalNullable[T any](v T) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch string(b) {
	case "null", "{}", "[]":
		return nil, nil
	}
	return string(b), nil
}

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t, nil
}
