package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_upload_service.go -package=mocks pdfrag/internal/service UploadService

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pdfrag/internal/contextutil"
)

// UploadService stores uploaded documents and triggers their ingestion.
type UploadService interface {
	// Save writes the document under the upload directory and triggers
	// ingestion with the file name as source id.
	Save(ctx context.Context, filename string, content io.Reader) (IngestAck, error)
}

// uploadService implements UploadService.
type uploadService struct {
	dir      string
	triggers TriggerService
	maxBytes int64
}

// NewUploadService creates a new UploadService writing into dir.
// maxBytes bounds a single upload; zero means unbounded.
func NewUploadService(dir string, triggers TriggerService, maxBytes int64) UploadService {
	return &uploadService{
		dir:      dir,
		triggers: triggers,
		maxBytes: maxBytes,
	}
}

func (s *uploadService) Save(ctx context.Context, filename string, content io.Reader) (IngestAck, error) {
	logger := contextutil.LoggerFromContext(ctx)

	name := filepath.Base(filepath.Clean("/" + strings.TrimSpace(filename)))
	if name == "/" || name == "." || name == "" {
		return IngestAck{}, &ValidationError{Field: "file", Message: "file name is required"}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return IngestAck{}, &ValidationError{Field: "file", Message: "only PDF files are accepted"}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return IngestAck{}, WrapError(err, "failed to create upload directory")
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return IngestAck{}, WrapError(err, "failed to create upload file")
	}
	defer os.Remove(tmp.Name())

	reader := content
	if s.maxBytes > 0 {
		reader = io.LimitReader(content, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return IngestAck{}, WrapError(err, "failed to write upload")
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return IngestAck{}, &ValidationError{Field: "file", Message: fmt.Sprintf("exceeds %d bytes", s.maxBytes)}
	}
	if n == 0 {
		return IngestAck{}, &ValidationError{Field: "file", Message: "is empty"}
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return IngestAck{}, WrapError(err, "failed to store upload")
	}
	logger.InfoContext(ctx, "upload stored", "path", path, "bytes", n)

	return s.triggers.TriggerIngest(ctx, IngestRequest{PDFPath: path, SourceID: name})
}
