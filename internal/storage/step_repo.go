package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StepRepo persists completed step outputs.
// It implements workflow.StepStore.
type StepRepo struct {
	db *sql.DB
}

// NewStepRepo creates a new StepRepo.
func NewStepRepo(db *sql.DB) *StepRepo {
	return &StepRepo{db: db}
}

// LoadStep returns the saved output of a step and whether it exists.
func (r *StepRepo) LoadStep(ctx context.Context, runID, name string) ([]byte, bool, error) {
	var output []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT output FROM steps WHERE run_id = ? AND name = ?",
		runID, name,
	).Scan(&output)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query step: %w", err)
	}
	return output, true, nil
}

// SaveStep records a step output, replacing any earlier one.
func (r *StepRepo) SaveStep(ctx context.Context, runID, name string, output []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, name, output, completed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, name) DO UPDATE SET output = excluded.output, completed_at = excluded.completed_at`,
		runID, name, output, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// WorkflowStore combines the run and step repositories into a workflow.Store.
type WorkflowStore struct {
	*RunRepo
	*StepRepo
}

// NewWorkflowStore creates a workflow store on db.
func NewWorkflowStore(db *sql.DB) *WorkflowStore {
	return &WorkflowStore{RunRepo: NewRunRepo(db), StepRepo: NewStepRepo(db)}
}
