// Package tracking records pipeline runs, their parameters and metrics,
// and the model artifacts they produce, in a local SQLite database.
package tracking

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run or model does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Model stages.
const (
	StageStaging    = "staging"
	StageProduction = "production"
	StageArchived   = "archived"
)

// Store persists runs and models to a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the tracking database at path
// and ensures the schema exists.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	s := &Store{db: db}

	if err := s.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("executing %s: %w", pragma, err)
		}
	}
	return nil
}

// migrations is an ordered list of SQL statements to run.
// Each migration runs inside a transaction.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT     PRIMARY KEY,
		name        TEXT     NOT NULL,
		status      TEXT     NOT NULL DEFAULT 'running',
		error       TEXT,
		started_at  DATETIME NOT NULL,
		finished_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS run_params (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		key    TEXT NOT NULL,
		value  TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS run_metrics (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		key    TEXT NOT NULL,
		value  REAL NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS models (
		id         INTEGER  PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT     NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path       TEXT     NOT NULL,
		stage      TEXT     NOT NULL DEFAULT 'staging',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_models_stage ON models(stage)`,
}

func (s *Store) migrate() error {
	for i, migration := range migrations {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i, err)
		}
		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("running migration %d: %w", i, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i, err)
		}
	}
	return nil
}

// Run is a single recorded pipeline execution.
type Run struct {
	ID         string
	Name       string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Params     map[string]string
	Metrics    map[string]float64
}

// Model is a persisted artifact produced by a run.
type Model struct {
	ID        int64
	RunID     string
	Path      string
	Stage     string
	CreatedAt time.Time
}

// CreateRun records the start of a new run.
func (s *Store) CreateRun(id, name string) (*Run, error) {
	started := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, name, status, started_at) VALUES (?, ?, ?, ?)`,
		id, name, StatusRunning, started,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run %s: %w", id, err)
	}
	return &Run{ID: id, Name: name, Status: StatusRunning, StartedAt: started}, nil
}

// FinishRun marks a run finished or failed. errMsg is empty on success.
func (s *Store) FinishRun(id string, errMsg string) error {
	status := StatusFinished
	if errMsg != "" {
		status = StatusFailed
	}
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// LogParam records one configuration value for a run.
// Logging the same key again overwrites the previous value.
func (s *Store) LogParam(runID, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_params (run_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
		runID, key, value,
	)
	if err != nil {
		return fmt.Errorf("logging param %s for run %s: %w", key, runID, err)
	}
	return nil
}

// LogParams records a set of parameters in one transaction.
func (s *Store) LogParams(runID string, params map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning param batch for run %s: %w", runID, err)
	}
	for key, value := range params {
		if _, err := tx.Exec(
			`INSERT INTO run_params (run_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
			runID, key, value,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("logging param %s for run %s: %w", key, runID, err)
		}
	}
	return tx.Commit()
}

// LogMetric records one evaluation result for a run.
func (s *Store) LogMetric(runID, key string, value float64) error {
	_, err := s.db.Exec(
		`INSERT INTO run_metrics (run_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
		runID, key, value,
	)
	if err != nil {
		return fmt.Errorf("logging metric %s for run %s: %w", key, runID, err)
	}
	return nil
}

// LogMetrics records a set of metrics in one transaction.
func (s *Store) LogMetrics(runID string, metrics map[string]float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning metric batch for run %s: %w", runID, err)
	}
	for key, value := range metrics {
		if _, err := tx.Exec(
			`INSERT INTO run_metrics (run_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
			runID, key, value,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("logging metric %s for run %s: %w", key, runID, err)
		}
	}
	return tx.Commit()
}

// SaveModel registers an artifact produced by a run, in the staging stage.
func (s *Store) SaveModel(runID, path string) (*Model, error) {
	result, err := s.db.Exec(
		`INSERT INTO models (run_id, path, stage) VALUES (?, ?, ?)`,
		runID, path, StageStaging,
	)
	if err != nil {
		return nil, fmt.Errorf("saving model for run %s: %w", runID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting model id: %w", err)
	}
	return s.GetModel(id)
}

// PromoteModel moves a model to production, archiving whatever was
// in production before it.
func (s *Store) PromoteModel(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning promotion of model %d: %w", id, err)
	}
	if _, err := tx.Exec(
		`UPDATE models SET stage = ? WHERE stage = ? AND id != ?`,
		StageArchived, StageProduction, id,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("archiving production models: %w", err)
	}
	result, err := tx.Exec(`UPDATE models SET stage = ? WHERE id = ?`, StageProduction, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("promoting model %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("checking promotion of model %d: %w", id, err)
	}
	if n == 0 {
		tx.Rollback()
		return fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// GetModel returns a model by its ID.
func (s *Store) GetModel(id int64) (*Model, error) {
	row := s.db.QueryRow(
		`SELECT id, run_id, path, stage, created_at FROM models WHERE id = ?`, id,
	)
	m := &Model{}
	err := row.Scan(&m.ID, &m.RunID, &m.Path, &m.Stage, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying model %d: %w", id, err)
	}
	return m, nil
}

// LatestModel returns the most recently registered model in the given
// stage, or an error when the stage is empty.
func (s *Store) LatestModel(stage string) (*Model, error) {
	row := s.db.QueryRow(
		`SELECT id, run_id, path, stage, created_at FROM models
		 WHERE stage = ? ORDER BY id DESC LIMIT 1`, stage,
	)
	m := &Model{}
	err := row.Scan(&m.ID, &m.RunID, &m.Path, &m.Stage, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stage %s: %w", stage, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest %s model: %w", stage, err)
	}
	return m, nil
}

// ListModels returns models for a run, newest first.
func (s *Store) ListModels(runID string) ([]*Model, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, path, stage, created_at FROM models
		 WHERE run_id = ? ORDER BY id DESC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing models for run %s: %w", runID, err)
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		m := &Model{}
		if err := rows.Scan(&m.ID, &m.RunID, &m.Path, &m.Stage, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// AllModels returns every registered model, newest first.
func (s *Store) AllModels() ([]*Model, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, path, stage, created_at FROM models ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		m := &Model{}
		if err := rows.Scan(&m.ID, &m.RunID, &m.Path, &m.Stage, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// GetRun returns a run with its parameters and metrics attached.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, name, status, COALESCE(error, ''), started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}

	r.Params, err = s.runParams(id)
	if err != nil {
		return nil, err
	}
	r.Metrics, err = s.runMetrics(id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns runs newest first, without params or metrics.
// limit <= 0 means no limit.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT id, name, status, COALESCE(error, ''), started_at, finished_at
		 FROM runs ORDER BY started_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.Name, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func (s *Store) runParams(runID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM run_params WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying params for run %s: %w", runID, err)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning param: %w", err)
		}
		params[key] = value
	}
	return params, rows.Err()
}

func (s *Store) runMetrics(runID string) (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT key, value FROM run_metrics WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying metrics for run %s: %w", runID, err)
	}
	defer rows.Close()

	metrics := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		metrics[key] = value
	}
	return metrics, rows.Err()
}
