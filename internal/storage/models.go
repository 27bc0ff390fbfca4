package storage

import "time"

// Source is the bookkeeping record for an ingested document.
// ChunkCount is the number of chunks written by the last successful ingestion,
// used to find stale ordinals when a document shrinks.
type Source struct {
	SourceID    string
	Path        string
	ChunkCount  int
	ContentHash string // SHA256 hex string of extracted text
	UpdatedAt   time.Time
}
