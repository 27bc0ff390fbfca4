package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/llm"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/workflow"
)

// Step names of an ingestion run.
const (
	StepLoad   = "load-and-chunk"
	StepEmbed  = "embed"
	StepUpsert = "upsert"
	StepPrune  = "prune"
)

// TextReader extracts the text of a document on disk.
type TextReader interface {
	ReadText(path string) (string, error)
}

// Pipeline ingests documents into the vector store: load and chunk, embed,
// upsert, then delete records left over from a longer previous version.
type Pipeline struct {
	reader      TextReader
	chunker     *Chunker
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	sources     storage.SourceStore
	collection  string
}

// NewPipeline creates a new ingestion pipeline.
// sources may be nil, in which case stale records are never pruned.
func NewPipeline(
	reader TextReader,
	chunker *Chunker,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	sources storage.SourceStore,
	collection string,
) *Pipeline {
	return &Pipeline{
		reader:      reader,
		chunker:     chunker,
		embedder:    embedder,
		vectorStore: vectorStore,
		sources:     sources,
		collection:  collection,
	}
}

// Ingest runs the ingestion of one document as durable steps.
// Each step's output is saved by steps, so a re-executed run resumes after
// the last completed step.
func (p *Pipeline) Ingest(ctx context.Context, steps *workflow.Steps, in IngestInput) (IngestResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := workflow.Step(ctx, steps, StepLoad, func(ctx context.Context) (loaded, error) {
		return p.load(ctx, in)
	})
	if err != nil {
		return IngestResult{}, err
	}

	vectors, err := workflow.Step(ctx, steps, StepEmbed, func(ctx context.Context) ([][]float32, error) {
		return p.embed(ctx, doc.Chunks)
	})
	if err != nil {
		return IngestResult{}, err
	}

	ingested, err := workflow.Step(ctx, steps, StepUpsert, func(ctx context.Context) (int, error) {
		return p.upsert(ctx, doc, vectors)
	})
	if err != nil {
		return IngestResult{}, err
	}

	if _, err := workflow.Step(ctx, steps, StepPrune, func(ctx context.Context) (int, error) {
		return p.prune(ctx, doc)
	}); err != nil {
		return IngestResult{}, err
	}

	logger.InfoContext(ctx, "ingested document", "source_id", doc.SourceID, "chunks", ingested)
	return IngestResult{Ingested: ingested}, nil
}

func (p *Pipeline) load(ctx context.Context, in IngestInput) (loaded, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if in.PDFPath == "" {
		return loaded{}, workflow.NewError(workflow.ErrInvalidArgument, StepLoad, errors.New("pdf_path is required"))
	}
	sourceID := in.SourceID
	if sourceID == "" {
		sourceID = in.PDFPath
	}

	text, err := p.reader.ReadText(in.PDFPath)
	if err != nil {
		return loaded{}, workflow.NewError(workflow.ErrLoad, StepLoad, fmt.Errorf("failed to read %s: %w", in.PDFPath, err))
	}

	chunks := p.chunker.Chunk(text)
	hash := sha256.Sum256([]byte(text))

	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "source_id", sourceID, "path", in.PDFPath)
	} else {
		stats := chunkTokenStats(chunks)
		logger.DebugContext(ctx, "document chunked", "source_id", sourceID, "chunks", len(chunks),
			"tokens_min", stats.Min, "tokens_max", stats.Max, "tokens_p95", stats.P95)
	}

	return loaded{
		SourceID:    sourceID,
		Path:        in.PDFPath,
		Chunks:      chunks,
		ContentHash: fmt.Sprintf("%x", hash),
	}, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, workflow.NewError(workflow.ErrEmbeddingProvider, StepEmbed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, workflow.NewError(workflow.ErrEmbeddingProvider, StepEmbed,
			fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors)))
	}
	for i, vec := range vectors {
		if len(vec) == 0 || len(vec) != len(vectors[0]) {
			return nil, workflow.NewError(workflow.ErrEmbeddingProvider, StepEmbed,
				fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(vec), len(vectors[0])))
		}
	}
	return vectors, nil
}

func (p *Pipeline) upsert(ctx context.Context, doc loaded, vectors [][]float32) (int, error) {
	if len(doc.Chunks) == 0 {
		return 0, nil
	}

	ids := ChunkIDs(doc.SourceID, 0, len(doc.Chunks))
	payloads := make([]vectorstore.Payload, len(doc.Chunks))
	for i, chunk := range doc.Chunks {
		payloads[i] = vectorstore.Payload{Source: doc.SourceID, Text: chunk}
	}

	points, err := vectorstore.NewPoints(ids, vectors, payloads)
	if err != nil {
		return 0, workflow.NewError(workflow.ErrInvalidArgument, StepUpsert, err)
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		wfErr := workflow.NewError(workflow.ErrUpsert, StepUpsert, err)
		var upsertErr *vectorstore.UpsertError
		if errors.As(err, &upsertErr) {
			wfErr.FailedIDs = upsertErr.FailedIDs
		} else {
			wfErr.FailedIDs = ids
		}
		return 0, wfErr
	}
	return len(points), nil
}

// prune deletes the ordinals a previous, longer ingestion of the source wrote
// and records the new chunk count.
func (p *Pipeline) prune(ctx context.Context, doc loaded) (int, error) {
	if p.sources == nil {
		return 0, nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	previous := 0
	existing, err := p.sources.Get(ctx, doc.SourceID)
	switch {
	case err == nil:
		previous = existing.ChunkCount
	case errors.Is(err, storage.ErrNotFound):
	default:
		return 0, workflow.NewError(workflow.ErrUpsert, StepPrune, fmt.Errorf("failed to load source: %w", err))
	}

	stale := ChunkIDs(doc.SourceID, len(doc.Chunks), previous)
	if len(stale) > 0 {
		if err := p.vectorStore.Delete(ctx, p.collection, stale); err != nil {
			return 0, workflow.NewError(workflow.ErrUpsert, StepPrune, err)
		}
		logger.InfoContext(ctx, "deleted stale chunks", "source_id", doc.SourceID, "count", len(stale))
	}

	if err := p.sources.Upsert(ctx, &storage.Source{
		SourceID:    doc.SourceID,
		Path:        doc.Path,
		ChunkCount:  len(doc.Chunks),
		ContentHash: doc.ContentHash,
	}); err != nil {
		return 0, workflow.NewError(workflow.ErrUpsert, StepPrune, err)
	}
	return len(stale), nil
}
