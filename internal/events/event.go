package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event envelope.
	SchemaVersionV1 = 1

	// NameIngestPDF asks for one document to be ingested.
	NameIngestPDF = "rag/ingest_pdf"
	// NameQueryPDF asks for a question to be answered.
	NameQueryPDF = "rag/query_pdf_ai"
)

// Event is a transport-neutral trigger envelope.
type Event struct {
	SchemaVersion int             `json:"schema_version"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Data          json.RawMessage `json:"data"`
	TS            time.Time       `json:"ts"`
}

// New creates an event with a fresh id and data encoded as JSON.
func New(name string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}
	return &Event{
		SchemaVersion: SchemaVersionV1,
		ID:            uuid.NewString(),
		Name:          name,
		Data:          raw,
		TS:            time.Now().UTC(),
	}, nil
}

// Decode unmarshals the event data into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, e.Name, err)
	}
	return nil
}

// Key returns the partition key of the event: the source id of an ingest
// trigger (falling back to its path), empty otherwise.
func (e *Event) Key() string {
	if e.Name != NameIngestPDF {
		return ""
	}
	var data struct {
		PDFPath  string `json:"pdf_path"`
		SourceID string `json:"source_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}
	if data.SourceID != "" {
		return data.SourceID
	}
	return data.PDFPath
}

// TopicName maps an event name to a broker topic, e.g. "rag" and
// "rag/ingest_pdf" give "rag.rag.ingest_pdf".
func TopicName(prefix, name string) string {
	topic := strings.ReplaceAll(name, "/", ".")
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}
