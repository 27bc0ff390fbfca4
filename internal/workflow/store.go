package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusQueued    RunStatus = "Queued"
	StatusRunning   RunStatus = "Running"
	StatusCompleted RunStatus = "Completed"
	StatusFailed    RunStatus = "Failed"
	StatusCancelled RunStatus = "Cancelled"
)

// Terminal reports whether no further work will happen for a run in this status.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run is one execution of a registered function for one triggering event.
type Run struct {
	ID        string
	EventID   string
	Function  string
	Status    RunStatus
	Stage     string          // Last stage entered; on failure, the failing stage
	Input     json.RawMessage // Event data the run was started with
	Output    json.RawMessage // Function result, set when completed
	Error     string          // Failure message, set when failed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepStore persists step outputs so a re-executed run skips completed steps.
type StepStore interface {
	// LoadStep returns the saved output of a step and whether it exists.
	LoadStep(ctx context.Context, runID, name string) ([]byte, bool, error)
	// SaveStep records the output of a completed step. Saving twice overwrites.
	SaveStep(ctx context.Context, runID, name string, output []byte) error
}

// RunStore persists run records.
type RunStore interface {
	// CreateRun inserts a run. It returns false without error when the id already exists.
	CreateRun(ctx context.Context, run *Run) (bool, error)
	// UpdateRun overwrites status, stage, output and error of an existing run.
	UpdateRun(ctx context.Context, run *Run) error
	// GetRun returns ErrRunNotFound when the run does not exist.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRunsByEvent returns the runs triggered by one event, oldest first.
	ListRunsByEvent(ctx context.Context, eventID string) ([]*Run, error)
	// ListRunsByStatus returns runs in any of the given statuses, oldest first.
	ListRunsByStatus(ctx context.Context, statuses ...RunStatus) ([]*Run, error)
}

// Store is the persistence the runner needs.
type Store interface {
	StepStore
	RunStore
}
