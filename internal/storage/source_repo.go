package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_source_store.go -package=mocks pdfrag/internal/storage SourceStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// SourceStore defines the interface for source bookkeeping.
type SourceStore interface {
	// Get returns the source record. Returns nil and ErrNotFound if not found.
	Get(ctx context.Context, sourceID string) (*Source, error)
	// Upsert inserts a source or replaces the existing record with the same id.
	Upsert(ctx context.Context, source *Source) error
	// List returns all sources ordered by source id.
	List(ctx context.Context) ([]Source, error)
}

// SourceRepo provides methods for source operations.
// It implements the SourceStore interface.
type SourceRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSourceRepo creates a new SourceRepo.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db, now: time.Now}
}

// Get returns the source record. Returns nil and ErrNotFound if not found.
func (r *SourceRepo) Get(ctx context.Context, sourceID string) (*Source, error) {
	var src Source
	var updatedAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT source_id, path, chunk_count, content_hash, updated_at FROM sources WHERE source_id = ?",
		sourceID,
	).Scan(&src.SourceID, &src.Path, &src.ChunkCount, &src.ContentHash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	if src.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}
	return &src, nil
}

// Upsert inserts a source or replaces the existing record with the same id.
// UpdatedAt is set to the current time.
func (r *SourceRepo) Upsert(ctx context.Context, source *Source) error {
	source.UpdatedAt = r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (source_id, path, chunk_count, content_hash, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source_id) DO UPDATE SET
		 path = excluded.path, chunk_count = excluded.chunk_count,
		 content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		source.SourceID, source.Path, source.ChunkCount, source.ContentHash, formatTime(source.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// List returns all sources ordered by source id.
func (r *SourceRepo) List(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT source_id, path, chunk_count, content_hash, updated_at FROM sources ORDER BY source_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		var updatedAt string
		if err := rows.Scan(&src.SourceID, &src.Path, &src.ChunkCount, &src.ContentHash, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if src.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}
