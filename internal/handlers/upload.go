package handlers

import (
	"errors"
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/service"
)

// DefaultMaxUploadBytes bounds a multipart upload request.
const DefaultMaxUploadBytes = 64 << 20

// UploadHandler accepts a multipart PDF upload and triggers its ingestion.
type UploadHandler struct {
	uploads  service.UploadService
	maxBytes int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploads service.UploadService, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes}
}

// ServeHTTP handles multipart uploads with the document in the "file" field.
//
// swagger:route POST /rag/upload uploadPDF
//
// # Upload a PDF and ingest it
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		logger.WarnContext(ctx, "invalid upload", "error", err)
		writeError(w, http.StatusBadRequest, "A multipart file field named \"file\" is required")
		return
	}
	defer file.Close()

	ack, err := h.uploads.Save(ctx, header.Filename, file)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to store upload")
		return
	}

	writeJSON(ctx, w, http.StatusOK, toIngestResponse(ack))
}
