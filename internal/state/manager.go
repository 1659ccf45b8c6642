package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBName is the journal file created inside the data directory
const DBName = "drivesync.db"

// Operation statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Manager journals remote operations run through the service
type Manager struct {
	db *sql.DB
}

// Operation is one journaled remote call
type Operation struct {
	ID        int64
	RunID     string // groups the operations of one service instance
	Target    string // file id, file name or spreadsheet id
	Name      string // display name or range
	Action    string // e.g. "file.upload.create", "sheet.write"
	StartTime time.Time
	EndTime   time.Time
	Status    string // "success" or "failed"
	Bytes     int64
	Error     string
}

// Duration is how long the operation ran
func (o Operation) Duration() time.Duration {
	return o.EndTime.Sub(o.StartTime)
}

// NewManager opens (or creates) the journal in dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		bytes INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operations_target_time ON operations(target, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);
	CREATE INDEX IF NOT EXISTS idx_operations_run ON operations(run_id);
	`

	_, err := m.db.Exec(schema)
	return err
}

// Save journals an operation and sets its ID
func (m *Manager) Save(op *Operation) error {
	if op.Status != StatusSuccess && op.Status != StatusFailed {
		return fmt.Errorf("invalid status: %s (must be 'success' or 'failed')", op.Status)
	}
	if op.Target == "" || op.Action == "" {
		return fmt.Errorf("operation needs a target and an action")
	}

	query := `
		INSERT INTO operations (run_id, target, name, action, start_time, end_time, status, bytes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := m.db.Exec(query,
		op.RunID,
		op.Target,
		op.Name,
		op.Action,
		op.StartTime,
		op.EndTime,
		op.Status,
		op.Bytes,
		op.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		op.ID = id
	}
	return nil
}

const selectColumns = `SELECT id, run_id, target, name, action, start_time, end_time, status, bytes, error FROM operations`

// History returns the newest operations on one target
func (m *Manager) History(target string, limit int) ([]Operation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(selectColumns+`
		WHERE target = ?
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanOperations(rows)
}

// AllHistory returns the newest operations across all targets
func (m *Manager) AllHistory(limit int) ([]Operation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(selectColumns+`
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query all history: %w", err)
	}
	return scanOperations(rows)
}

// Run returns every operation recorded under runID, oldest first
func (m *Manager) Run(runID string) ([]Operation, error) {
	rows, err := m.db.Query(selectColumns+`
		WHERE run_id = ?
		ORDER BY start_time ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return scanOperations(rows)
}

// LastSuccess returns the newest successful operation on target, or nil
func (m *Manager) LastSuccess(target string) (*Operation, error) {
	row := m.db.QueryRow(selectColumns+`
		WHERE target = ? AND status = 'success'
		ORDER BY start_time DESC, id DESC
		LIMIT 1`, target)

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}
	return op, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(s scanner) (*Operation, error) {
	var op Operation
	var errText sql.NullString
	err := s.Scan(
		&op.ID,
		&op.RunID,
		&op.Target,
		&op.Name,
		&op.Action,
		&op.StartTime,
		&op.EndTime,
		&op.Status,
		&op.Bytes,
		&errText,
	)
	if err != nil {
		return nil, err
	}
	op.Error = errText.String
	return &op, nil
}

func scanOperations(rows *sql.Rows) ([]Operation, error) {
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, *op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}
