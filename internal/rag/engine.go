package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/llm"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/workflow"
)

// Step names of a query run.
const (
	StepSearch = "embed-and-search"
	StepAnswer = "llm-answer"
)

// Engine provides RAG (Retrieval-Augmented Generation) functionality.
type Engine interface {
	// Query retrieves the contexts nearest to the question and asks the model to
	// answer from them.
	Query(ctx context.Context, steps *workflow.Steps, in QueryInput) (QueryResult, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	chat        llm.ChatClient
	collection  string
	opts        Options
}

// NewEngine creates a new RAG engine.
func NewEngine(
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	chat llm.ChatClient,
	collection string,
	opts Options,
) Engine {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	return &ragEngine{
		embedder:    embedder,
		vectorStore: vectorStore,
		chat:        chat,
		collection:  collection,
		opts:        opts,
	}
}

// Query answers a question using RAG.
// Invalid input fails before any provider or store call. An empty store still
// produces a model call with an empty context block.
func (e *ragEngine) Query(ctx context.Context, steps *workflow.Steps, in QueryInput) (QueryResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return QueryResult{}, workflow.NewError(workflow.ErrInvalidArgument, StepSearch, errors.New("question is required"))
	}
	topK := e.opts.DefaultTopK
	if in.TopK != nil {
		topK = *in.TopK
	}
	if topK <= 0 {
		return QueryResult{}, workflow.NewError(workflow.ErrInvalidArgument, StepSearch,
			fmt.Errorf("top_k must be greater than 0, got %d", topK))
	}

	logger.InfoContext(ctx, "RAG query started", "question", question, "top_k", topK)

	found, err := workflow.Step(ctx, steps, StepSearch, func(ctx context.Context) (retrieved, error) {
		return e.search(ctx, question, topK)
	})
	if err != nil {
		return QueryResult{}, err
	}

	answer, err := workflow.Step(ctx, steps, StepAnswer, func(ctx context.Context) (string, error) {
		return e.answer(ctx, question, found.Contexts)
	})
	if err != nil {
		return QueryResult{}, err
	}

	logger.InfoContext(ctx, "RAG query completed", "contexts", len(found.Contexts), "answer_length", len(answer))

	return QueryResult{
		Answer:      answer,
		Sources:     found.Sources,
		NumContexts: len(found.Contexts),
	}, nil
}

func (e *ragEngine) search(ctx context.Context, question string, topK int) (retrieved, error) {
	logger := contextutil.LoggerFromContext(ctx)

	embeddings, err := e.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return retrieved{}, workflow.NewError(workflow.ErrEmbeddingProvider, StepSearch, fmt.Errorf("failed to embed question: %w", err))
	}
	if len(embeddings) != 1 {
		return retrieved{}, workflow.NewError(workflow.ErrEmbeddingProvider, StepSearch,
			fmt.Errorf("expected 1 embedding for question, got %d", len(embeddings)))
	}

	results, err := e.vectorStore.Search(ctx, e.collection, embeddings[0], topK)
	if err != nil {
		if errors.Is(err, vectorstore.ErrInvalidArgument) {
			return retrieved{}, workflow.NewError(workflow.ErrInvalidArgument, StepSearch, err)
		}
		return retrieved{}, workflow.NewError(workflow.ErrVectorStore, StepSearch, fmt.Errorf("failed to search vector store: %w", err))
	}

	out := retrieved{
		Contexts: make([]string, 0, len(results)),
		Sources:  make([]string, 0, len(results)),
	}
	seen := make(map[string]struct{}, len(results))
	for i, result := range results {
		out.Contexts = append(out.Contexts, result.Text)
		if _, dup := seen[result.Source]; !dup && result.Source != "" {
			seen[result.Source] = struct{}{}
			out.Sources = append(out.Sources, result.Source)
		}
		logger.DebugContext(ctx, "retrieved context", "rank", i+1, "score", result.Score, "source", result.Source, "point_id", result.PointID)
	}

	logger.InfoContext(ctx, "vector search completed", "results_count", len(results), "k_requested", topK)
	return out, nil
}

func (e *ragEngine) answer(ctx context.Context, question string, contexts []string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(contexts) == 0 {
		logger.WarnContext(ctx, "no contexts retrieved, asking model without grounding")
	}

	messages := buildMessages(question, contexts)
	logger.DebugContext(ctx, "sending request to LLM", "user_message_length", len(messages[1].Content))

	answer, err := e.chat.ChatWithMessages(ctx, messages, llm.ChatParams{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return "", workflow.NewError(workflow.ErrLLMInference, StepAnswer, err)
	}
	return strings.TrimSpace(answer), nil
}
