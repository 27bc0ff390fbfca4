package handlers

import (
	"context"
	"net/http"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
)

// StatsProvider computes coverage statistics for the index.
type StatsProvider interface {
	GetIndexingCoverageStats(ctx context.Context, embeddingModelName string) (*indexer.IndexingCoverageStats, error)
}

// IndexStatsHandler handles HTTP requests for indexing statistics.
type IndexStatsHandler struct {
	stats          StatsProvider
	embeddingModel string
}

// NewIndexStatsHandler creates a new IndexStatsHandler.
func NewIndexStatsHandler(stats StatsProvider, embeddingModel string) *IndexStatsHandler {
	return &IndexStatsHandler{stats: stats, embeddingModel: embeddingModel}
}

// ServeHTTP handles HTTP requests for indexing statistics.
//
// swagger:route GET /api/index/stats indexStats
//
// # Indexing coverage statistics
//
// responses:
//
//	'200':
//	  description: Statistics
//	'500':
//	  description: Internal server error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *IndexStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.stats.GetIndexingCoverageStats(ctx, h.embeddingModel)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get indexing stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get indexing stats")
		return
	}

	writeJSON(ctx, w, http.StatusOK, stats)
}
