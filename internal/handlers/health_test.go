package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pdfrag/internal/indexer"
)

type fakeChecker struct {
	exists bool
	err    error
}

func (f fakeChecker) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, f.err
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		checker    CollectionChecker
		method     string
		wantStatus int
		wantCheck  string
	}{
		{name: "healthy", checker: fakeChecker{exists: true}, method: http.MethodGet, wantStatus: http.StatusOK, wantCheck: "ok"},
		{name: "missing collection", checker: fakeChecker{}, method: http.MethodGet, wantStatus: http.StatusServiceUnavailable, wantCheck: "error"},
		{name: "store unreachable", checker: fakeChecker{err: errors.New("connection refused")}, method: http.MethodGet, wantStatus: http.StatusServiceUnavailable, wantCheck: "error"},
		{name: "in-memory index", checker: nil, method: http.MethodGet, wantStatus: http.StatusOK, wantCheck: "in_memory"},
		{name: "method not allowed", checker: nil, method: http.MethodPost, wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checker, "pdfs")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCheck == "" {
				return
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Checks["vector_store"] != tt.wantCheck {
				t.Errorf("vector_store = %q, want %q", resp.Checks["vector_store"], tt.wantCheck)
			}
		})
	}
}

type fakeStats struct {
	stats *indexer.IndexingCoverageStats
	err   error
	model string
}

func (f *fakeStats) GetIndexingCoverageStats(_ context.Context, model string) (*indexer.IndexingCoverageStats, error) {
	f.model = model
	return f.stats, f.err
}

func TestIndexStatsHandler_ServeHTTP(t *testing.T) {
	t.Run("returns stats", func(t *testing.T) {
		stats := &fakeStats{stats: &indexer.IndexingCoverageStats{DocsProcessed: 2, ChunksStored: 9, ChunkerVersion: indexer.ChunkerVersion}}
		w := httptest.NewRecorder()
		NewIndexStatsHandler(stats, "text-embedding-3-large").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/index/stats", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if stats.model != "text-embedding-3-large" {
			t.Errorf("model = %q", stats.model)
		}
		var resp indexer.IndexingCoverageStats
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.DocsProcessed != 2 || resp.ChunksStored != 9 {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("registry failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewIndexStatsHandler(&fakeStats{err: errors.New("locked")}, "m").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/index/stats", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}
