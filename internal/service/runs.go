package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_service.go -package=mocks pdfrag/internal/service RunService

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/workflow"
)

// RunLister is the read side of the run store.
type RunLister interface {
	GetRun(ctx context.Context, id string) (*workflow.Run, error)
	ListRunsByEvent(ctx context.Context, eventID string) ([]*workflow.Run, error)
}

// RunView is the externally visible state of a run.
type RunView struct {
	RunID     string
	EventID   string
	Function  string
	Status    workflow.RunStatus
	Stage     string
	Output    json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunService reports the status and output of triggered work.
type RunService interface {
	// Runs lists the runs started by an event, oldest first. An event whose
	// runs are not recorded yet has no runs.
	Runs(ctx context.Context, eventID string) ([]RunView, error)
	// Run returns one run by id.
	Run(ctx context.Context, runID string) (RunView, error)
}

// runService implements RunService.
type runService struct {
	runs RunLister
}

// NewRunService creates a new RunService.
func NewRunService(runs RunLister) RunService {
	return &runService{runs: runs}
}

func (s *runService) Runs(ctx context.Context, eventID string) ([]RunView, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, &ValidationError{Field: "event_id", Message: "cannot be empty"}
	}

	runs, err := s.runs.ListRunsByEvent(ctx, eventID)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to list runs", "event_id", eventID, "error", err)
		return nil, WrapError(err, "failed to list runs")
	}

	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, toRunView(run))
	}
	return views, nil
}

func (s *runService) Run(ctx context.Context, runID string) (RunView, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			return RunView{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return RunView{}, WrapError(err, "failed to get run")
	}
	return toRunView(run), nil
}

func toRunView(run *workflow.Run) RunView {
	return RunView{
		RunID:     run.ID,
		EventID:   run.EventID,
		Function:  run.Function,
		Status:    run.Status,
		Stage:     run.Stage,
		Output:    run.Output,
		Error:     run.Error,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
}
