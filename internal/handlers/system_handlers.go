package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// APIVersion is reported by /health, / and the OpenAPI document.
const APIVersion = "1.0.0"

// HealthResponse reports service readiness
type HealthResponse struct {
	Status           string `json:"status"`
	ModelLoaded      bool   `json:"model_loaded"`
	ModelPath        string `json:"model_path"`
	SupportedClasses int    `json:"supported_classes"`
	Version          string `json:"version"`
}

// WelcomeResponse is the API root document
type WelcomeResponse struct {
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	Status         string            `json:"status"`
	Endpoints      map[string]string `json:"endpoints"`
	Model          string            `json:"model"`
	SupportedCrops []string          `json:"supported_crops"`
	// FertilizerCrops are the crops with their own NPK bands.
	FertilizerCrops []string `json:"fertilizer_crops"`
}

// supportedLeafCrops are the plants the disease classifier covers.
var supportedLeafCrops = []string{
	"Apple", "Blueberry", "Cherry", "Corn/Maize", "Grape",
	"Orange", "Peach", "Bell Pepper", "Potato", "Raspberry",
	"Soybean", "Squash", "Strawberry", "Tomato",
}

var endpointIndex = map[string]string{
	"health":               "GET  /health",
	"predict":              "POST /api/predict",
	"classes":              "GET  /api/classes",
	"fertilizers":          "GET  /api/fertilizers",
	"fertilizer_recommend": "POST /api/fertilizers/recommend",
	"history":              "GET  /api/history",
	"clear_history":        "DEL  /api/history",
	"chat":                 "POST /api/chat",
	"chat_history":         "GET  /api/chat/history",
	"clear_chat_history":   "DEL  /api/chat/history",
	"docs":                 "GET  /docs",
	"openapi":              "GET  /api/docs/openapi.json",
	"metrics":              "GET  /metrics",
}

// SystemHandler serves the health check and the welcome document
type SystemHandler struct {
	responder
	predictionService *services.PredictionService
	fertilizerService *services.FertilizerService
	modelPath         string
}

// NewSystemHandler creates a new system handler. modelPath is reported verbatim by /health.
func NewSystemHandler(predictionService *services.PredictionService, fertilizerService *services.FertilizerService, modelPath string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SystemHandler {
	return &SystemHandler{
		responder:         responder{logger: logger, metrics: metricsCollector},
		predictionService: predictionService,
		fertilizerService: fertilizerService,
		modelPath:         modelPath,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/", h.Welcome).Methods("GET")
}

// Health handles GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, HealthResponse{
		Status:           "ok",
		ModelLoaded:      h.predictionService.ModelLoaded(),
		ModelPath:        h.modelPath,
		SupportedClasses: len(h.predictionService.Classes()),
		Version:          APIVersion,
	}, http.StatusOK)
}

// Welcome handles GET /
func (h *SystemHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	model := "Demo classifier (deterministic mock, no trained model configured)"
	if h.predictionService.ModelLoaded() {
		model = "MobileNetV2 (transfer learning) served over REST"
	}
	h.sendJSON(w, WelcomeResponse{
		Name:            "PlantCare AI — Crop Disease Detection API",
		Version:         APIVersion,
		Status:          "running",
		Endpoints:       endpointIndex,
		Model:           model,
		SupportedCrops:  supportedLeafCrops,
		FertilizerCrops: h.fertilizerService.SupportedCrops(),
	}, http.StatusOK)
}
