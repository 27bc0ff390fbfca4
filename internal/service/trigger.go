package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_trigger_service.go -package=mocks pdfrag/internal/service TriggerService

import (
	"context"
	"fmt"
	"strings"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/events"
	"pdfrag/internal/indexer"
	"pdfrag/internal/rag"
)

// IngestRequest represents an ingestion trigger in the domain layer.
type IngestRequest struct {
	PDFPath  string
	SourceID string
}

// IngestAck acknowledges an accepted ingestion trigger.
type IngestAck struct {
	Message  string
	PDFPath  string
	SourceID string
	EventID  string
}

// QueryRequest represents a query trigger in the domain layer.
// A nil TopK selects the default.
type QueryRequest struct {
	Question string
	TopK     *int
}

// QueryAck acknowledges an accepted query trigger.
type QueryAck struct {
	Message  string
	Question string
	TopK     int
	EventID  string
}

// TriggerService validates triggers and publishes them as events.
// Work happens asynchronously; results are read back by event id.
type TriggerService interface {
	// TriggerIngest publishes an ingestion event for one document.
	TriggerIngest(ctx context.Context, req IngestRequest) (IngestAck, error)
	// TriggerQuery publishes a query event.
	TriggerQuery(ctx context.Context, req QueryRequest) (QueryAck, error)
}

// triggerService implements TriggerService.
type triggerService struct {
	publisher   events.Publisher
	defaultTopK int
}

// NewTriggerService creates a new TriggerService.
func NewTriggerService(publisher events.Publisher, defaultTopK int) TriggerService {
	if defaultTopK <= 0 {
		defaultTopK = rag.DefaultTopK
	}
	return &triggerService{
		publisher:   publisher,
		defaultTopK: defaultTopK,
	}
}

// TriggerIngest publishes an ingestion event. The source id defaults to the path.
func (s *triggerService) TriggerIngest(ctx context.Context, req IngestRequest) (IngestAck, error) {
	logger := contextutil.LoggerFromContext(ctx)

	pdfPath := strings.TrimSpace(req.PDFPath)
	if pdfPath == "" {
		logger.WarnContext(ctx, "empty pdf_path in ingest request")
		return IngestAck{}, &ValidationError{Field: "pdf_path", Message: "cannot be empty"}
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		sourceID = pdfPath
	}

	event, err := events.New(events.NameIngestPDF, indexer.IngestInput{PDFPath: pdfPath, SourceID: sourceID})
	if err != nil {
		return IngestAck{}, WrapError(err, "failed to build ingest event")
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish ingest event", "error", err)
		return IngestAck{}, fmt.Errorf("failed to publish ingest event: %w: %w", ErrExternalService, err)
	}

	logger.InfoContext(ctx, "ingestion triggered", "event_id", event.ID, "pdf_path", pdfPath, "source_id", sourceID)
	return IngestAck{
		Message:  "PDF ingestion started",
		PDFPath:  pdfPath,
		SourceID: sourceID,
		EventID:  event.ID,
	}, nil
}

// TriggerQuery publishes a query event. top_k must be positive when given.
func (s *triggerService) TriggerQuery(ctx context.Context, req QueryRequest) (QueryAck, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		logger.WarnContext(ctx, "empty question in query request")
		return QueryAck{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	topK := s.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 {
		logger.WarnContext(ctx, "invalid top_k in query request", "top_k", topK)
		return QueryAck{}, &ValidationError{Field: "top_k", Message: "must be greater than 0"}
	}

	event, err := events.New(events.NameQueryPDF, rag.QueryInput{Question: question, TopK: &topK})
	if err != nil {
		return QueryAck{}, WrapError(err, "failed to build query event")
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish query event", "error", err)
		return QueryAck{}, fmt.Errorf("failed to publish query event: %w: %w", ErrExternalService, err)
	}

	logger.InfoContext(ctx, "query triggered", "event_id", event.ID, "top_k", topK)
	return QueryAck{
		Message:  "PDF query started",
		Question: question,
		TopK:     topK,
		EventID:  event.ID,
	}, nil
}
