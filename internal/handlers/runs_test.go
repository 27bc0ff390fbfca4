package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"pdfrag/internal/service"
	"pdfrag/internal/service/mocks"
	"pdfrag/internal/workflow"
)

func runsRouter(h *RunsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/events/{eventID}/runs", h.ListByEvent)
	r.Get("/v1/runs/{runID}", h.Get)
	return r
}

func TestRunsHandler_ListByEvent(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		mockSetup  func(*mocks.MockRunService)
		wantStatus int
		check      func(t *testing.T, resp RunsResponse)
	}{
		{
			name: "completed query run",
			mockSetup: func(m *mocks.MockRunService) {
				m.EXPECT().Runs(gomock.Any(), "evt-1").Return([]service.RunView{{
					RunID:     "run-1",
					EventID:   "evt-1",
					Function:  "rag-query-pdf-ai",
					Status:    workflow.StatusCompleted,
					Stage:     "llm-answer",
					Output:    json.RawMessage(`{"answer":"42","sources":["a.pdf"],"num_contexts":1}`),
					CreatedAt: created,
					UpdatedAt: created.Add(time.Second),
				}}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp RunsResponse) {
				if len(resp.Data) != 1 {
					t.Fatalf("len(data) = %d, want 1", len(resp.Data))
				}
				run := resp.Data[0]
				if run.Status != "Completed" {
					t.Errorf("status = %q, want Completed", run.Status)
				}
				var out struct {
					Answer string `json:"answer"`
				}
				if err := json.Unmarshal(run.Output, &out); err != nil || out.Answer != "42" {
					t.Errorf("output = %s (%v)", run.Output, err)
				}
				if run.CreatedAt != "2026-03-01T12:00:00Z" {
					t.Errorf("created_at = %q", run.CreatedAt)
				}
			},
		},
		{
			name: "event without runs yet",
			mockSetup: func(m *mocks.MockRunService) {
				m.EXPECT().Runs(gomock.Any(), "evt-1").Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp RunsResponse) {
				if resp.Data == nil || len(resp.Data) != 0 {
					t.Errorf("data = %v, want empty list", resp.Data)
				}
			},
		},
		{
			name: "store failure",
			mockSetup: func(m *mocks.MockRunService) {
				m.EXPECT().Runs(gomock.Any(), "evt-1").Return(nil, errors.New("disk I/O error"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runs := mocks.NewMockRunService(ctrl)
			tt.mockSetup(runs)

			w := httptest.NewRecorder()
			runsRouter(NewRunsHandler(runs)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/events/evt-1/runs", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.check != nil {
				var resp RunsResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.check(t, resp)
			}
		})
	}
}

func TestRunsHandler_Get(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "found", wantStatus: http.StatusOK},
		{name: "not found", err: fmt.Errorf("run x: %w", service.ErrNotFound), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runs := mocks.NewMockRunService(ctrl)
			runs.EXPECT().Run(gomock.Any(), "run-9").Return(service.RunView{
				RunID:  "run-9",
				Status: workflow.StatusFailed,
				Stage:  "embed",
				Error:  "EmbeddingProviderError",
			}, tt.err)

			w := httptest.NewRecorder()
			runsRouter(NewRunsHandler(runs)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/run-9", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.err != nil {
				return
			}
			var resp RunResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != "Failed" || resp.Stage != "embed" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}
