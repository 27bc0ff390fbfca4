package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pdfrag/internal/service"
)

// RunsHandler reports the runs started by events.
type RunsHandler struct {
	runs service.RunService
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(runs service.RunService) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// RunResponse is the state of one run.
//
// swagger:model RunResponse
type RunResponse struct {
	RunID    string `json:"run_id"`
	EventID  string `json:"event_id"`
	Function string `json:"function"`
	// Queued, Running, Completed, Failed or Cancelled
	Status string `json:"status"`
	// Last step started, or the step that failed
	Stage     string          `json:"stage,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// RunsResponse lists runs.
//
// swagger:model RunsResponse
type RunsResponse struct {
	Data []RunResponse `json:"data"`
}

// ListByEvent handles GET /v1/events/{eventID}/runs.
func (h *RunsHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runs, err := h.runs.Runs(ctx, chi.URLParam(r, "eventID"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list runs")
		return
	}

	resp := RunsResponse{Data: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Data = append(resp.Data, toRunResponse(run))
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /v1/runs/{runID}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	run, err := h.runs.Run(ctx, chi.URLParam(r, "runID"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to get run")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toRunResponse(run))
}

func toRunResponse(run service.RunView) RunResponse {
	return RunResponse{
		RunID:     run.RunID,
		EventID:   run.EventID,
		Function:  run.Function,
		Status:    string(run.Status),
		Stage:     run.Stage,
		Output:    run.Output,
		Error:     run.Error,
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: run.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
