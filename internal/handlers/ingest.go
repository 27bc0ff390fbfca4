package handlers

import (
	"encoding/json"
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/service"
)

// IngestHandler handles HTTP requests that trigger document ingestion.
type IngestHandler struct {
	triggers service.TriggerService
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(triggers service.TriggerService) *IngestHandler {
	return &IngestHandler{triggers: triggers}
}

// IngestRequest represents the HTTP request payload for ingestion.
//
// swagger:model IngestRequest
type IngestRequest struct {
	// Path of the document on the server
	PDFPath string `json:"pdf_path"`
	// Stable id of the document; defaults to pdf_path
	SourceID string `json:"source_id,omitempty"`
}

// IngestResponse acknowledges an ingestion trigger.
//
// swagger:model IngestResponse
type IngestResponse struct {
	Message  string `json:"message"`
	PDFPath  string `json:"pdf_path"`
	SourceID string `json:"source_id"`
	// Id of the published event; poll /v1/events/{event_id}/runs for the result
	EventID string `json:"event_id"`
}

// ServeHTTP handles HTTP requests that trigger ingestion.
//
// swagger:route POST /rag/ingest-pdf ingestPDF
//
// # Trigger ingestion of a document
//
// The response returns as soon as the trigger is published.
//
// responses:
//
//	'200':
//	  description: Ingestion triggered
//	  schema:
//	    "$ref": "#/definitions/IngestResponse"
//	'400':
//	  description: Invalid request
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Event backend unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ack, err := h.triggers.TriggerIngest(ctx, service.IngestRequest{
		PDFPath:  req.PDFPath,
		SourceID: req.SourceID,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to trigger ingestion")
		return
	}

	writeJSON(ctx, w, http.StatusOK, toIngestResponse(ack))
}

func toIngestResponse(ack service.IngestAck) IngestResponse {
	return IngestResponse{
		Message:  ack.Message,
		PDFPath:  ack.PDFPath,
		SourceID: ack.SourceID,
		EventID:  ack.EventID,
	}
}
