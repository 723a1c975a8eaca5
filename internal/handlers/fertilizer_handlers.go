package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"plantcare/internal/models"
	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// RecommendRequest is the body of POST /api/fertilizers/recommend.
// Nutrient fields are pointers so that a missing value is told apart from zero.
type RecommendRequest struct {
	Nitrogen    *float64 `json:"nitrogen" validate:"required,gte=0,lte=100"`
	Phosphorus  *float64 `json:"phosphorus" validate:"required,gte=0,lte=100"`
	Potassium   *float64 `json:"potassium" validate:"required,gte=0,lte=100"`
	Crop        string   `json:"crop" validate:"required,notblank"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty" validate:"omitnil,gte=0,lte=100"`
	Rainfall    *float64 `json:"rainfall,omitempty" validate:"omitnil,gte=0"`
}

func (req RecommendRequest) reading() models.SoilReading {
	return models.SoilReading{
		Nitrogen:    *req.Nitrogen,
		Phosphorus:  *req.Phosphorus,
		Potassium:   *req.Potassium,
		Crop:        req.Crop,
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
		Rainfall:    req.Rainfall,
	}
}

// RecommendResponse wraps a fertilizer recommendation
type RecommendResponse struct {
	Success bool                  `json:"success"`
	Data    models.Recommendation `json:"data"`
	Message string                `json:"message"`
}

// CatalogueResponse lists the purchasable fertilizers
type CatalogueResponse struct {
	Success bool                   `json:"success"`
	Count   int                    `json:"count"`
	Data    []models.CatalogueItem `json:"data"`
}

// FertilizerHandler handles fertilizer catalogue and recommendation requests
type FertilizerHandler struct {
	responder
	fertilizerService *services.FertilizerService
}

// NewFertilizerHandler creates a new fertilizer handler
func NewFertilizerHandler(fertilizerService *services.FertilizerService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FertilizerHandler {
	return &FertilizerHandler{
		responder:         responder{logger: logger, metrics: metricsCollector},
		fertilizerService: fertilizerService,
	}
}

// RegisterRoutes registers fertilizer routes
func (h *FertilizerHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/fertilizers").Subrouter()
	api.HandleFunc("", h.Catalogue).Methods("GET")
	api.HandleFunc("/recommend", h.Recommend).Methods("POST")
}

// Catalogue handles GET /api/fertilizers
func (h *FertilizerHandler) Catalogue(w http.ResponseWriter, r *http.Request) {
	items := h.fertilizerService.Catalogue()
	h.sendJSON(w, CatalogueResponse{Success: true, Count: len(items), Data: items}, http.StatusOK)
}

// Recommend handles POST /api/fertilizers/recommend
func (h *FertilizerHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, "RECOMMEND_ERROR", err)
		return
	}

	rec := h.fertilizerService.Recommend(r.Context(), req.reading())

	h.sendJSON(w, RecommendResponse{
		Success: true,
		Data:    rec,
		Message: "Fertilizer recommendation generated. Always validate with a soil health card.",
	}, http.StatusOK)
}
