package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "v2.0"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// IndexingCoverageStats summarises what the source registry knows about the index.
type IndexingCoverageStats struct {
	// DocsProcessed is the number of sources ingested at least once.
	DocsProcessed int `json:"docs_processed"`
	// DocsWith0Chunks is the number of sources whose last ingestion produced no chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// ChunksStored is the number of records the sources currently own.
	ChunksStored int `json:"chunks_stored"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// GetIndexingCoverageStats computes coverage statistics from the source registry.
func (p *Pipeline) GetIndexingCoverageStats(ctx context.Context, embeddingModelName string) (*IndexingCoverageStats, error) {
	stats := &IndexingCoverageStats{
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   IndexVersion(embeddingModelName, p.chunker.Size(), p.chunker.Overlap()),
	}
	if p.sources == nil {
		return stats, nil
	}

	sources, err := p.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	for _, src := range sources {
		stats.DocsProcessed++
		stats.ChunksStored += src.ChunkCount
		if src.ChunkCount == 0 {
			stats.DocsWith0Chunks++
		}
	}
	return stats, nil
}

// IndexVersion hashes the parameters that determine chunk ids and vectors.
func IndexVersion(embeddingModelName string, chunkSize, chunkOverlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|chunkOverlap=%d",
		ChunkerVersion, embeddingModelName, chunkSize, chunkOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// chunkTokenStats estimates token statistics for chunk texts.
func chunkTokenStats(chunks []string) ChunkTokenStats {
	tokenCounts := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		// Estimate tokens from rune count (approximation: ~4 chars per token)
		tokenCount := int(math.Round(float64(utf8.RuneCountInString(chunk)) / TokensPerRune))
		if tokenCount < 1 {
			tokenCount = 1
		}
		tokenCounts = append(tokenCounts, tokenCount)
	}
	return computeTokenStats(tokenCounts)
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
