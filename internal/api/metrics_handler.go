package api

import (
	"log/slog"
	"net/http"

	"github.com/echoscribe/echoscribe-api/internal/api/shared"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// MetricsHandler serves the in-process metrics snapshot on the internal
// surface. The endpoint is meant for operators and scrapers, not clients.
type MetricsHandler struct {
	metrics *track.Metrics
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metrics *track.Metrics) *MetricsHandler {
	if metrics == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("metrics cannot be nil for MetricsHandler")
	}
	return &MetricsHandler{metrics: metrics}
}

// GetMetrics handles GET /internal/metrics requests
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := h.metrics.Snapshot()
	logger.FromContext(r.Context()).Debug("metrics snapshot served",
		slog.Int("counters", len(snapshot.Counters)),
		slog.Int("latencies", len(snapshot.Latencies)))
	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}
