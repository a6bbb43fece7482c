package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain/event"
	"github.com/vertextoedge/localai-desktop/internal/port"
)

// DebugHandler handles debug endpoint requests
type DebugHandler struct {
	store   port.Store
	metrics *event.MetricsHandler
	hub     *Hub
	logger  *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(store port.Store, metrics *event.MetricsHandler, hub *Hub, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		store:   store,
		metrics: metrics,
		hub:     hub,
		logger:  logger,
	}
}

// HandleStats reports event counters, history counts and WebSocket clients
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"ws_clients":          h.hub.ClientCount(),
		"ws_dropped_progress": h.hub.Dropped(),
	}

	if h.metrics != nil {
		response["events"] = h.metrics.GetMetrics()
	}

	if h.store != nil {
		counts, err := h.store.CountByStatus(r.Context())
		if err != nil {
			h.logger.Error("failed to count acquisitions", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to count acquisitions"})
			return
		}
		response["acquisitions"] = counts
	}

	writeJSON(w, http.StatusOK, response)
}
