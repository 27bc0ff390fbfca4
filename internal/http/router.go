package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pdfrag/internal/handlers"
	"pdfrag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Triggers       service.TriggerService
	Runs           service.RunService
	Uploads        service.UploadService
	MaxUploadBytes int64

	// VectorStore is checked by the health endpoint; nil for an in-memory index.
	VectorStore    handlers.CollectionChecker
	CollectionName string
	Stats          handlers.StatsProvider
	EmbeddingModel string

	IndexHTML string // Embedded HTML content
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	// Add CORS middleware
	r.Use(CORS)

	runsHandler := handlers.NewRunsHandler(deps.Runs)

	r.Route("/rag", func(r chi.Router) {
		r.Method(http.MethodPost, "/ingest-pdf", handlers.NewIngestHandler(deps.Triggers))
		r.Method(http.MethodPost, "/query-pdf", handlers.NewQueryHandler(deps.Triggers))
		r.Method(http.MethodPost, "/upload", handlers.NewUploadHandler(deps.Uploads, deps.MaxUploadBytes))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events/{eventID}/runs", runsHandler.ListByEvent)
		r.Get("/runs/{runID}", runsHandler.Get)
	})

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.VectorStore, deps.CollectionName))
		if deps.Stats != nil {
			r.Method(http.MethodGet, "/index/stats", handlers.NewIndexStatsHandler(deps.Stats, deps.EmbeddingModel))
		}
	})

	// Serve HTML page at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(deps.IndexHTML))
	})

	return r
}
