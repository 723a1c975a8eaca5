package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"plantcare/internal/models"
	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// HistoryResponse lists recent scans, newest first
type HistoryResponse struct {
	Success bool                  `json:"success"`
	Count   int                   `json:"count"`
	Data    []models.HistoryEntry `json:"data"`
}

// HistoryHandler handles scan history requests
type HistoryHandler struct {
	responder
	historyService *services.HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(historyService *services.HistoryService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HistoryHandler {
	return &HistoryHandler{
		responder:      responder{logger: logger, metrics: metricsCollector},
		historyService: historyService,
	}
}

// RegisterRoutes registers history routes
func (h *HistoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/history", h.List).Methods("GET")
	router.HandleFunc("/api/history", h.Clear).Methods("DELETE")
}

// List handles GET /api/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.historyService.Recent(r.Context())
	if err != nil {
		h.handleError(w, r, "HISTORY_ERROR", err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	h.sendJSON(w, HistoryResponse{Success: true, Count: len(entries), Data: entries}, http.StatusOK)
}

// Clear handles DELETE /api/history
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.historyService.Clear(r.Context()); err != nil {
		h.handleError(w, r, "HISTORY_ERROR", err)
		return
	}
	h.sendJSON(w, MessageResponse{Success: true, Message: "History cleared."}, http.StatusOK)
}
