package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"pdfrag/internal/service"
	"pdfrag/internal/service/mocks"
)

func newTestDeps(t *testing.T) (*Deps, *mocks.MockTriggerService, *mocks.MockRunService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	triggers := mocks.NewMockTriggerService(ctrl)
	runs := mocks.NewMockRunService(ctrl)
	return &Deps{
		Triggers:       triggers,
		Runs:           runs,
		Uploads:        mocks.NewMockUploadService(ctrl),
		CollectionName: "pdfs",
		IndexHTML:      "<html><body>Test</body></html>",
	}, triggers, runs
}

func TestNewRouter(t *testing.T) {
	deps, _, _ := newTestDeps(t)

	router := NewRouter(deps)

	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	deps, triggers, runs := newTestDeps(t)
	triggers.EXPECT().TriggerIngest(gomock.Any(), service.IngestRequest{PDFPath: "a.pdf"}).
		Return(service.IngestAck{Message: "PDF ingestion started", PDFPath: "a.pdf", SourceID: "a.pdf", EventID: "e"}, nil)
	runs.EXPECT().Runs(gomock.Any(), "evt-7").Return(nil, nil)
	runs.EXPECT().Run(gomock.Any(), "run-7").Return(service.RunView{RunID: "run-7"}, nil)

	router := NewRouter(deps)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "GET root serves HTML", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "POST /rag/ingest-pdf", method: http.MethodPost, path: "/rag/ingest-pdf", body: `{"pdf_path":"a.pdf"}`, wantStatus: http.StatusOK},
		{name: "POST /rag/query-pdf exists", method: http.MethodPost, path: "/rag/query-pdf", wantStatus: http.StatusBadRequest},
		{name: "POST /rag/upload exists", method: http.MethodPost, path: "/rag/upload", wantStatus: http.StatusBadRequest},
		{name: "GET /rag/ingest-pdf method not allowed", method: http.MethodGet, path: "/rag/ingest-pdf", wantStatus: http.StatusMethodNotAllowed},
		{name: "GET event runs", method: http.MethodGet, path: "/v1/events/evt-7/runs", wantStatus: http.StatusOK},
		{name: "GET run", method: http.MethodGet, path: "/v1/runs/run-7", wantStatus: http.StatusOK},
		{name: "GET health with in-memory index", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK},
		{name: "stats not mounted without provider", method: http.MethodGet, path: "/api/index/stats", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_RootServesHTML(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	htmlContent := "<html><body>Test HTML</body></html>"
	deps.IndexHTML = htmlContent

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Router GET / status = %v, want %v", w.Code, http.StatusOK)
	}

	if w.Body.String() != htmlContent {
		t.Errorf("Router GET / body = %v, want %v", w.Body.String(), htmlContent)
	}

	if w.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Router GET / Content-Type = %v, want text/html; charset=utf-8", w.Header().Get("Content-Type"))
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	deps, _, _ := newTestDeps(t)

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/rag/query-pdf", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// Check CORS headers are present
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
}
