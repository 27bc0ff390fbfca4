package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pdfrag/internal/workflow"
)

// RunRepo persists workflow runs.
// It implements workflow.RunStore.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = "id, event_id, function, status, stage, input, output, error, created_at, updated_at"

// CreateRun inserts a run. It returns false when a run with the same id exists.
func (r *RunRepo) CreateRun(ctx context.Context, run *workflow.Run) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		run.ID, run.EventID, run.Function, string(run.Status), run.Stage,
		[]byte(run.Input), []byte(run.Output), run.Error,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// UpdateRun overwrites the mutable fields of a run.
func (r *RunRepo) UpdateRun(ctx context.Context, run *workflow.Run) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, stage = ?, output = ?, error = ?, updated_at = ? WHERE id = ?",
		string(run.Status), run.Stage, []byte(run.Output), run.Error, formatTime(run.UpdatedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return workflow.ErrRunNotFound
	}
	return nil
}

// GetRun returns workflow.ErrRunNotFound when no run has the id.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*workflow.Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRunsByEvent returns the runs triggered by an event, oldest first.
func (r *RunRepo) ListRunsByEvent(ctx context.Context, eventID string) ([]*workflow.Run, error) {
	return r.list(ctx, "SELECT "+runColumns+" FROM runs WHERE event_id = ? ORDER BY created_at, id", eventID)
}

// ListRunsByStatus returns runs in any of the statuses, oldest first.
func (r *RunRepo) ListRunsByStatus(ctx context.Context, statuses ...workflow.RunStatus) ([]*workflow.Run, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return r.list(ctx, "SELECT "+runColumns+" FROM runs WHERE status IN ("+placeholders+") ORDER BY created_at, id", args...)
}

func (r *RunRepo) list(ctx context.Context, query string, args ...any) ([]*workflow.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*workflow.Run, error) {
	var run workflow.Run
	var status, createdAt, updatedAt string
	var input, output []byte
	err := s.Scan(&run.ID, &run.EventID, &run.Function, &status, &run.Stage,
		&input, &output, &run.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = workflow.RunStatus(status)
	if len(input) > 0 {
		run.Input = input
	}
	if len(output) > 0 {
		run.Output = output
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}
	return &run, nil
}
