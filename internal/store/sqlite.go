package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/runjs/internal/model"

	_ "modernc.org/sqlite"
)

const createWorkersTable = `
CREATE TABLE IF NOT EXISTS workers (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    status      TEXT NOT NULL,
    main_module TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    started_at  DATETIME,
    finished_at DATETIME
)`

const createLogLinesTable = `
CREATE TABLE IF NOT EXISTS log_lines (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    worker_id  TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    stream     TEXT NOT NULL,
    line       TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

const createLogLinesIndex = `
CREATE INDEX IF NOT EXISTS idx_log_lines_worker ON log_lines (worker_id, seq)`

const selectWorker = `SELECT id, run_id, status, main_module, error,
	duration_ms, created_at, started_at, finished_at
FROM workers`

// ErrNotFound is returned when a worker is not found.
var ErrNotFound = errors.New("worker not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
// ":memory:" gives a private database for the lifetime of the store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every new connection to ":memory:" is a fresh, empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// migrations run in order; later statements depend on earlier tables.
var migrations = []struct {
	name string
	stmt string
}{
	{"workers table", createWorkersTable},
	{"log_lines table", createLogLinesTable},
	{"log_lines index", createLogLinesIndex},
}

func migrate(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("create %s: %w", m.name, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateWorker inserts a new worker record.
func (s *SQLiteStore) CreateWorker(ctx context.Context, w *model.Worker) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workers (
			id, run_id, status, main_module, error,
			duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.RunID, w.Status, w.MainModule, w.Error,
		w.DurationMS, w.CreatedAt, w.StartedAt, w.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert worker: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorker(row scanner) (*model.Worker, error) {
	w := &model.Worker{}
	err := row.Scan(
		&w.ID, &w.RunID, &w.Status, &w.MainModule, &w.Error,
		&w.DurationMS, &w.CreatedAt, &w.StartedAt, &w.FinishedAt,
	)
	return w, err
}

// GetWorker retrieves a worker by ID.
func (s *SQLiteStore) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	w, err := scanWorker(s.db.QueryRowContext(ctx, selectWorker+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

// ListWorkers returns the workers of one run in creation order. An empty
// runID lists every recorded worker.
func (s *SQLiteStore) ListWorkers(ctx context.Context, runID string) ([]*model.Worker, error) {
	query, args := selectWorker+" ORDER BY created_at ASC, id ASC", []any{}
	if runID != "" {
		query, args = selectWorker+" WHERE run_id = ? ORDER BY created_at ASC, id ASC", []any{runID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	workers := []*model.Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workers: %w", err)
	}
	return workers, nil
}

// UpdateWorkerStatus moves a worker to status after validating the
// transition. Entering running sets started_at; a terminal status sets
// finished_at.
func (s *SQLiteStore) UpdateWorkerStatus(ctx context.Context, id, status string) error {
	return s.transition(ctx, id, status, func(tx *sql.Tx, now time.Time) error {
		var err error
		switch {
		case status == model.StatusRunning:
			_, err = tx.ExecContext(ctx,
				"UPDATE workers SET status = ?, started_at = ? WHERE id = ?",
				status, now, id)
		case model.IsTerminal(status):
			_, err = tx.ExecContext(ctx,
				"UPDATE workers SET status = ?, finished_at = ? WHERE id = ?",
				status, now, id)
		default:
			_, err = tx.ExecContext(ctx,
				"UPDATE workers SET status = ? WHERE id = ?",
				status, id)
		}
		return err
	})
}

// FinishWorker records a worker's terminal status along with its error
// message (empty on success) and run duration.
func (s *SQLiteStore) FinishWorker(ctx context.Context, id, status, errMsg string, durationMS int) error {
	if !model.IsTerminal(status) {
		return fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, status)
	}
	return s.transition(ctx, id, status, func(tx *sql.Tx, now time.Time) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE workers SET status = ?, error = ?, duration_ms = ?, finished_at = ?
			WHERE id = ?`,
			status, errMsg, durationMS, now, id)
		return err
	})
}

// transition reads the current status, validates the move to status and
// applies update in one transaction.
func (s *SQLiteStore) transition(ctx context.Context, id, status string, update func(*sql.Tx, time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM workers WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read worker status: %w", err)
	}

	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current, status)
	}

	if err := update(tx, time.Now().UTC()); err != nil {
		return fmt.Errorf("update worker status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// GetWorkerStats returns counts by status and the average duration of
// finished workers.
func (s *SQLiteStore) GetWorkerStats(ctx context.Context) (*WorkerStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &WorkerStats{CountByStatus: map[string]int{}}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM workers GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	rows.Close()

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM workers WHERE duration_ms IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}
	return stats, nil
}

// InsertLogLine stores one console line. CreatedAt defaults to now.
func (s *SQLiteStore) InsertLogLine(ctx context.Context, line model.LogLine) error {
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO log_lines (worker_id, seq, stream, line, created_at) VALUES (?, ?, ?, ?, ?)",
		line.WorkerID, line.Seq, line.Stream, line.Line, line.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log line: %w", err)
	}
	return nil
}

// GetLogLines returns a worker's console lines ordered by sequence number.
func (s *SQLiteStore) GetLogLines(ctx context.Context, workerID string) ([]model.LogLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, worker_id, seq, stream, line, created_at
		FROM log_lines WHERE worker_id = ? ORDER BY seq ASC`, workerID)
	if err != nil {
		return nil, fmt.Errorf("get log lines: %w", err)
	}
	defer rows.Close()

	lines := []model.LogLine{}
	for rows.Next() {
		var l model.LogLine
		if err := rows.Scan(&l.ID, &l.WorkerID, &l.Seq, &l.Stream, &l.Line, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log lines: %w", err)
	}
	return lines, nil
}
