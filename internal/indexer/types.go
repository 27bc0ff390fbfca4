package indexer

// FunctionName is the workflow function that ingests one document.
const FunctionName = "rag-ingest-pdf"

// IngestInput is the data of an ingestion trigger.
type IngestInput struct {
	PDFPath  string `json:"pdf_path"`
	SourceID string `json:"source_id,omitempty"`
}

// IngestResult is the output of a completed ingestion run.
type IngestResult struct {
	Ingested int `json:"ingested"`
}

// loaded is the output of the load-and-chunk step.
type loaded struct {
	SourceID    string   `json:"source_id"`
	Path        string   `json:"path"`
	Chunks      []string `json:"chunks"`
	ContentHash string   `json:"content_hash"`
}
