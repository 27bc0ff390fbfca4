package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks pdfrag/internal/vectorstore VectorStore

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for malformed upsert or search calls.
var ErrInvalidArgument = errors.New("invalid argument")

// Payload is the data stored alongside each vector.
type Payload struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Point represents a vector point with its payload.
type Point struct {
	ID      string
	Vec     []float32
	Payload Payload
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Source  string
	Text    string
}

// UpsertError reports the ids of points that were not written.
// Points outside FailedIDs were written successfully.
type UpsertError struct {
	FailedIDs []string
	Err       error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("failed to upsert %d points: %v", len(e.FailedIDs), e.Err)
}

func (e *UpsertError) Unwrap() error {
	return e.Err
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or replaces points by id. A partial failure returns *UpsertError.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns at most k points nearest to query, best first.
	// k must be positive.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// Delete removes points by their IDs. Unknown ids are ignored.
	Delete(ctx context.Context, collection string, ids []string) error
}

// NewPoints zips aligned ids, vectors and payloads into points.
func NewPoints(ids []string, vectors [][]float32, payloads []Payload) ([]Point, error) {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return nil, fmt.Errorf("%w: %d ids, %d vectors, %d payloads", ErrInvalidArgument, len(ids), len(vectors), len(payloads))
	}
	points := make([]Point, len(ids))
	for i := range ids {
		points[i] = Point{ID: ids[i], Vec: vectors[i], Payload: payloads[i]}
	}
	return points, nil
}

func validateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be greater than 0, got %d", ErrInvalidArgument, k)
	}
	return nil
}
