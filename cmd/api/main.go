package main

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pdfrag/internal/admission"
	"pdfrag/internal/config"
	"pdfrag/internal/events"
	"pdfrag/internal/extract"
	"pdfrag/internal/handlers"
	"pdfrag/internal/http"
	"pdfrag/internal/inbox"
	"pdfrag/internal/indexer"
	"pdfrag/internal/llm"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/worker"
	"pdfrag/internal/workflow"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API ingests PDF documents into a vector index and answers questions grounded in them.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: PDF RAG API
//   description: |
//     Triggers for document ingestion and question answering. Both run asynchronously;
//     each trigger returns an event id whose runs report status and output.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

//go:embed index.html
var indexHTML string

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	workflowStore := storage.NewWorkflowStore(db)
	sourceRepo := storage.NewSourceRepo(db)

	// Vector store: Qdrant, or an in-process index for local runs
	var (
		vectorStore   vectorstore.VectorStore
		healthChecker handlers.CollectionChecker
	)
	switch cfg.VectorStore {
	case config.VectorStoreMemory:
		vectorStore = vectorstore.NewMemoryStore()
		slog.Warn("Using in-memory vector store; the index is lost on restart")
	default:
		qdrant, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.UpsertBatchSize)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		defer func() {
			_ = qdrant.Close()
		}()
		if err := qdrant.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)
		vectorStore = qdrant
		healthChecker = qdrant
	}

	// Validate embedding vector size. An unreachable provider or a missing
	// credential is not fatal here; runs report it as a provider error.
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	if _, err := embedder.EmbedTexts(ctx, []string{"test"}); err != nil {
		if errors.Is(err, llm.ErrDimensionMismatch) {
			log.Fatalf("Embedding vector size mismatch: %v", err)
		}
		slog.Warn("Embedding provider check failed", "error", err)
	} else {
		slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)
	}

	chunker, err := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create chunker: %v", err)
	}

	// Create ingestion pipeline
	ingestPipeline := indexer.NewPipeline(
		extract.DefaultRegistry(),
		chunker,
		embedder,
		vectorStore,
		sourceRepo,
		cfg.QdrantCollection,
	)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Create RAG engine
	ragEngine := rag.NewEngine(
		embedder,
		vectorStore,
		llmClient,
		cfg.QdrantCollection,
		rag.Options{
			Model:       cfg.LLMModelName,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			DefaultTopK: cfg.DefaultTopK,
		},
	)
	slog.Info("RAG engine initialized")

	// Durable runs
	runner := workflow.NewRunner(workflowStore, workflow.RetryPolicy{
		MaxAttempts: cfg.StepMaxAttempts,
		Backoff:     cfg.StepBackoff,
		MaxBackoff:  workflow.DefaultRetryPolicy.MaxBackoff,
	})
	runner.Register(indexer.FunctionName, workflow.Handle(ingestPipeline.Ingest))
	runner.Register(rag.FunctionName, workflow.Handle(ragEngine.Query))

	// Event transport
	var (
		publisher events.Publisher
		consumer  events.Consumer
	)
	switch cfg.EventBackend {
	case config.EventBackendKafka:
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		if err != nil {
			log.Fatalf("Failed to create Kafka publisher: %v", err)
		}
		kafkaConsumer, err := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopicPrefix,
			events.NameIngestPDF, events.NameQueryPDF)
		if err != nil {
			log.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		publisher, consumer = kafkaPublisher, kafkaConsumer
		slog.Info("Kafka event backend ready", "brokers", cfg.KafkaBrokers, "group_id", cfg.KafkaGroupID)
	default:
		bus := events.NewChannelBus(256)
		publisher, consumer = bus, bus
	}

	admissionController, err := admission.New(admission.Policy{
		ThrottleLimit:  cfg.IngestThrottleLimit,
		ThrottlePeriod: cfg.IngestThrottlePeriod,
		RatePeriod:     cfg.IngestRateLimitPeriod,
	})
	if err != nil {
		log.Fatalf("Invalid ingestion admission policy: %v", err)
	}

	triggers := service.NewTriggerService(publisher, cfg.DefaultTopK)
	eventWorker := worker.New(consumer, runner, admissionController)

	// The worker outlives the signal so events published during shutdown
	// are still recorded as runs.
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := eventWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Event worker stopped", "error", err)
		}
	}()

	// Pick up runs interrupted by the last shutdown; queued ingestions are admitted again
	resumed, err := runner.Resume(ctx, eventWorker.ResumeGate)
	if err != nil {
		slog.Error("Failed to resume unfinished runs", "error", err)
	} else if resumed > 0 {
		slog.Info("Resumed unfinished runs", "count", resumed)
	}

	var producers sync.WaitGroup
	if cfg.WatchDir != "" {
		watcher, err := inbox.NewWatcher(cfg.WatchDir, triggers, inbox.DefaultSettle)
		if err != nil {
			log.Fatalf("Failed to watch %s: %v", cfg.WatchDir, err)
		}
		producers.Add(1)
		go func() {
			defer producers.Done()
			if err := watcher.Run(ctx); err != nil {
				slog.Error("Inbox watcher stopped", "error", err)
			}
		}()
	}

	// Create router with dependencies
	deps := &http.Deps{
		Triggers:       triggers,
		Runs:           service.NewRunService(workflowStore),
		Uploads:        service.NewUploadService(cfg.UploadDir, triggers, cfg.MaxUploadBytes),
		MaxUploadBytes: cfg.MaxUploadBytes + 1<<20,
		VectorStore:    healthChecker,
		CollectionName: cfg.QdrantCollection,
		Stats:          ingestPipeline,
		EmbeddingModel: cfg.EmbeddingModelName,
		IndexHTML:      indexHTML,
	}
	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	stop()
	producers.Wait()
	// Buffered events are drained into queued runs; admission waits end with workerCtx.
	stopWorker()
	<-workerDone

	runsDone := make(chan struct{})
	go func() {
		runner.Wait()
		close(runsDone)
	}()
	select {
	case <-runsDone:
	case <-shutdownCtx.Done():
		// Runs still executing resume from their last completed step on the next start.
		slog.Warn("Shutdown timed out with runs in flight")
	}
	if err := consumer.Close(); err != nil {
		slog.Warn("Failed to close event consumer", "error", err)
	}
	if err := publisher.Close(); err != nil && !errors.Is(err, events.ErrClosed) {
		slog.Warn("Failed to close event publisher", "error", err)
	}
	slog.Info("Shutdown complete")
}
