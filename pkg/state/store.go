// Package state provides persistent storage for analysis run history.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store manages persistent run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run represents one analysis run over an input file.
type Run struct {
	ID           string                 `json:"id"`
	Status       string                 `json:"status"`
	InputPath    string                 `json:"input_path"`
	InputSize    int64                  `json:"input_size,omitempty"`
	OutputDir    string                 `json:"output_dir,omitempty"`
	CaseCount    int64                  `json:"case_count,omitempty"`
	EventCount   int64                  `json:"event_count,omitempty"`
	SkippedCases int64                  `json:"skipped_cases,omitempty"`
	VariantCount int64                  `json:"variant_count,omitempty"`
	EdgeCount    int64                  `json:"edge_count,omitempty"`
	LoopCount    int64                  `json:"loop_count,omitempty"`
	DurationMS   int64                  `json:"duration_ms,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Config       map[string]interface{} `json:"config,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// NewStore creates a new run-history store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			input_path TEXT NOT NULL,
			input_size BIGINT,
			output_dir TEXT,
			case_count BIGINT,
			event_count BIGINT,
			skipped_cases BIGINT,
			variant_count BIGINT,
			edge_count BIGINT,
			loop_count BIGINT,
			duration_ms BIGINT,
			error TEXT,
			config JSON,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun creates a new run record.
func (s *Store) CreateRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, _ := json.Marshal(run.Config)

	_, err := s.db.Exec(`
		INSERT INTO runs (id, status, input_path, input_size, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Status, run.InputPath, run.InputSize, string(configJSON), run.CreatedAt)

	return err
}

// UpdateRun updates a run record.
func (s *Store) UpdateRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, _ := json.Marshal(run.Config)

	_, err := s.db.Exec(`
		UPDATE runs SET
			status = ?,
			output_dir = ?,
			case_count = ?,
			event_count = ?,
			skipped_cases = ?,
			variant_count = ?,
			edge_count = ?,
			loop_count = ?,
			duration_ms = ?,
			error = ?,
			config = ?,
			completed_at = ?
		WHERE id = ?
	`, run.Status, run.OutputDir, run.CaseCount, run.EventCount, run.SkippedCases,
		run.VariantCount, run.EdgeCount, run.LoopCount, run.DurationMS, run.Error,
		string(configJSON), run.CompletedAt, run.ID)

	return err
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := &Run{}
	var configJSON sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRow(`
		SELECT id, status, input_path, input_size, output_dir, case_count,
		       event_count, skipped_cases, variant_count, edge_count, loop_count,
		       duration_ms, error, config, created_at, completed_at
		FROM runs WHERE id = ?
	`, id).Scan(
		&run.ID, &run.Status, &run.InputPath, &run.InputSize, &run.OutputDir,
		&run.CaseCount, &run.EventCount, &run.SkippedCases, &run.VariantCount,
		&run.EdgeCount, &run.LoopCount, &run.DurationMS, &run.Error,
		&configJSON, &run.CreatedAt, &completedAt,
	)

	if err != nil {
		return nil, err
	}

	if configJSON.Valid {
		json.Unmarshal([]byte(configJSON.String), &run.Config)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, status, input_path, input_size, output_dir, case_count,
		       event_count, skipped_cases, variant_count, edge_count, loop_count,
		       duration_ms, error, created_at, completed_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime
		err := rows.Scan(
			&run.ID, &run.Status, &run.InputPath, &run.InputSize, &run.OutputDir,
			&run.CaseCount, &run.EventCount, &run.SkippedCases, &run.VariantCount,
			&run.EdgeCount, &run.LoopCount, &run.DurationMS, &run.Error,
			&run.CreatedAt, &completedAt,
		)
		if err != nil {
			continue
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// CleanupOldRuns removes runs older than the retention period.
func (s *Store) CleanupOldRuns(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	result, err := s.db.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// GetStats returns aggregate run statistics.
func (s *Store) GetStats() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	var total, completed, failed int64
	s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&total)
	s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE status = 'completed'`).Scan(&completed)
	s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE status = 'failed'`).Scan(&failed)

	stats["total_runs"] = total
	stats["completed_runs"] = completed
	stats["failed_runs"] = failed

	var totalCases, totalEvents int64
	s.db.QueryRow(`SELECT COALESCE(SUM(case_count), 0), COALESCE(SUM(event_count), 0) FROM runs WHERE status = 'completed'`).Scan(&totalCases, &totalEvents)
	stats["total_cases"] = totalCases
	stats["total_events"] = totalEvents

	return stats, nil
}
