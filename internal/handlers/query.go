package handlers

import (
	"encoding/json"
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/service"
)

// QueryHandler handles HTTP requests that trigger a RAG query.
type QueryHandler struct {
	triggers service.TriggerService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(triggers service.TriggerService) *QueryHandler {
	return &QueryHandler{triggers: triggers}
}

// QueryRequest represents the HTTP request payload for a query.
//
// swagger:model QueryRequest
type QueryRequest struct {
	Question string `json:"question"`
	// Number of contexts to retrieve; defaults to 5
	TopK *int `json:"top_k,omitempty"`
}

// QueryResponse acknowledges a query trigger.
//
// swagger:model QueryResponse
type QueryResponse struct {
	Message  string `json:"message"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	EventID  string `json:"event_id"`
}

// ServeHTTP handles HTTP requests that trigger a query.
//
// swagger:route POST /rag/query-pdf queryPDF
//
// # Ask a question over the ingested documents
//
// The answer is produced asynchronously; poll /v1/events/{event_id}/runs.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ack, err := h.triggers.TriggerQuery(ctx, service.QueryRequest{
		Question: req.Question,
		TopK:     req.TopK,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to trigger query")
		return
	}

	writeJSON(ctx, w, http.StatusOK, QueryResponse{
		Message:  ack.Message,
		Question: ack.Question,
		TopK:     ack.TopK,
		EventID:  ack.EventID,
	})
}
