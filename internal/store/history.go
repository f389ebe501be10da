// Package store persists an append-only record of cell executions. The
// history survives kernel restarts and process exits, so past runs stay
// queryable after the notebook itself has moved on.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gobook/internal/logging"
)

// HistoryStore is an SQLite-backed execution log. Thread-safe; one store
// per database file.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// ExecutionRecord is one logged run of a cell.
type ExecutionRecord struct {
	ID          int64     `json:"id"`
	CellID      string    `json:"cell_id"`
	Code        string    `json:"code"`
	Success     bool      `json:"success"`
	DurationMs  int64     `json:"duration_ms"`
	OutputBytes int       `json:"output_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Open creates or opens the history database at path.
func Open(path string) (*HistoryStore, error) {
	logging.StoreDebug("Opening history store at path: %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	hs := &HistoryStore{db: db, dbPath: path}
	if err := hs.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}

	logging.Store("HistoryStore initialized at %s", path)
	return hs, nil
}

// ensureSchema creates the executions table if it doesn't exist.
func (hs *HistoryStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cell_id TEXT NOT NULL,
		code TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		duration_ms INTEGER NOT NULL,
		output_bytes INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_executions_cell ON executions(cell_id);
	CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at);
	`

	_, err := hs.db.Exec(schema)
	return err
}

// RecordExecution appends one run to the log. Implements the notebook's
// history recorder; failures are logged and swallowed so a broken disk
// never blocks execution.
func (hs *HistoryStore) RecordExecution(cellID, code string, success bool, duration time.Duration, outputBytes int) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	_, err := hs.db.Exec(
		`INSERT INTO executions (cell_id, code, success, duration_ms, output_bytes) VALUES (?, ?, ?, ?, ?)`,
		cellID, code, success, duration.Milliseconds(), outputBytes,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record execution for cell %s: %v", cellID, err)
		return
	}
	logging.StoreDebug("Recorded execution: cell=%s success=%v duration=%v", cellID, success, duration)
}

// Recent returns up to limit executions, newest first.
func (hs *HistoryStore) Recent(limit int) ([]ExecutionRecord, error) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := hs.db.Query(
		`SELECT id, cell_id, code, success, duration_ms, output_bytes, created_at
		 FROM executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var r ExecutionRecord
		if err := rows.Scan(&r.ID, &r.CellID, &r.Code, &r.Success, &r.DurationMs, &r.OutputBytes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ForCell returns every logged run of one cell, oldest first.
func (hs *HistoryStore) ForCell(cellID string) ([]ExecutionRecord, error) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	rows, err := hs.db.Query(
		`SELECT id, cell_id, code, success, duration_ms, output_bytes, created_at
		 FROM executions WHERE cell_id = ? ORDER BY id ASC`, cellID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions for cell %s: %w", cellID, err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var r ExecutionRecord
		if err := rows.Scan(&r.ID, &r.CellID, &r.Code, &r.Success, &r.DurationMs, &r.OutputBytes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the total number of logged executions.
func (hs *HistoryStore) Count() (int, error) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	var n int
	err := hs.db.QueryRow(`SELECT COUNT(*) FROM executions`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (hs *HistoryStore) Close() error {
	return hs.db.Close()
}
