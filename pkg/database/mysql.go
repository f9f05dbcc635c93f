package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SatelliteQE/airgun-sub001/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

//go:embed schema.sql
var schema string

// DB stores navigation runs and the results of their steps.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the tables if they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// ==================== Navigation Runs ====================

// CreateRun stores a new run together with its destinations.
func (db *DB) CreateRun(ctx context.Context, run *models.NavigationRun) error {
	query := `
		INSERT INTO navigation_runs (id, temporal_run_id, temporal_workflow_id, status, destinations, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	destinations, err := json.Marshal(run.Destinations)
	if err != nil {
		return fmt.Errorf("failed to encode destinations: %w", err)
	}
	run.DestinationsJSON = string(destinations)
	if run.StartedAt == nil {
		now := time.Now()
		run.StartedAt = &now
	}

	_, err = db.conn.ExecContext(ctx, query,
		run.ID,
		run.TemporalRunID,
		run.TemporalWorkflowID,
		run.Status,
		run.DestinationsJSON,
		run.StartedAt,
	)

	return err
}

// SetTemporalIDs links a run to the workflow execution that carries it.
func (db *DB) SetTemporalIDs(ctx context.Context, id, workflowID, runID string) error {
	query := `UPDATE navigation_runs SET temporal_workflow_id = ?, temporal_run_id = ? WHERE id = ?`
	_, err := db.conn.ExecContext(ctx, query, workflowID, runID, id)
	return err
}

const runColumns = `id, temporal_run_id, temporal_workflow_id, status, destinations,
		       started_at, completed_at, COALESCE(error_message, '')`

func scanRun(scan func(dest ...any) error) (*models.NavigationRun, error) {
	var run models.NavigationRun
	err := scan(
		&run.ID,
		&run.TemporalRunID,
		&run.TemporalWorkflowID,
		&run.Status,
		&run.DestinationsJSON,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	if run.DestinationsJSON != "" {
		if err := json.Unmarshal([]byte(run.DestinationsJSON), &run.Destinations); err != nil {
			return nil, fmt.Errorf("failed to decode destinations of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// GetRun retrieves a run by ID, or nil when there is none.
func (db *DB) GetRun(ctx context.Context, id string) (*models.NavigationRun, error) {
	query := `SELECT ` + runColumns + ` FROM navigation_runs WHERE id = ?`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.NavigationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM navigation_runs ORDER BY started_at DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.NavigationRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// UpdateRunStatus updates the status of a run, stamping completion for terminal states.
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE navigation_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW() ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	return err
}

// ==================== Step Results ====================

// RecordStep stores the outcome of one navigation step.
func (db *DB) RecordStep(ctx context.Context, result models.StepResult) error {
	query := `
		INSERT INTO step_results (id, run_id, entity, step, sequence_id, status, retry_count,
		                          screenshot_path, error_message, executed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		result.ID,
		result.RunID,
		result.Entity,
		result.Step,
		result.SequenceID,
		result.Status,
		result.RetryCount,
		result.ScreenshotPath,
		result.ErrorMessage,
		result.ExecutedAt,
		result.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to insert step result: %w", err)
	}
	return nil
}

// GetStepResults retrieves the step results of a run in execution order.
func (db *DB) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT id, run_id, entity, step, sequence_id, status, retry_count,
		       screenshot_path, COALESCE(error_message, ''), executed_at, duration_ms
		FROM step_results
		WHERE run_id = ?
		ORDER BY sequence_id
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []models.StepResult
	for rows.Next() {
		var result models.StepResult
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.Entity,
			&result.Step,
			&result.SequenceID,
			&result.Status,
			&result.RetryCount,
			&result.ScreenshotPath,
			&result.ErrorMessage,
			&result.ExecutedAt,
			&result.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}
