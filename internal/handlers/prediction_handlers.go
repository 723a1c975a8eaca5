package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"plantcare/internal/models"
	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

const (
	// MaxUploadBytes is the largest leaf image accepted by POST /api/predict.
	MaxUploadBytes = 16 << 20

	multipartOverhead = 1 << 20
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/bmp"}

// PredictionHandler handles disease detection requests
type PredictionHandler struct {
	responder
	predictionService *services.PredictionService
}

// PredictionResponse is the body of a successful prediction
type PredictionResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Data    *models.PredictionResult `json:"data"`
}

// ClassesResponse lists the labels the classifier can produce
type ClassesResponse struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Classes []string `json:"classes"`
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(predictionService *services.PredictionService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PredictionHandler {
	return &PredictionHandler{
		responder:         responder{logger: logger, metrics: metricsCollector},
		predictionService: predictionService,
	}
}

// RegisterRoutes registers prediction routes
func (h *PredictionHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/predict", h.Predict).Methods("POST")
	api.HandleFunc("/classes", h.Classes).Methods("GET")
}

// Predict handles POST /api/predict
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, r, "File too large. Max allowed: 16 MB.", http.StatusRequestEntityTooLarge)
			return
		}
		h.sendError(w, r, "multipart field 'file' is required", http.StatusUnprocessableEntity)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !isAllowedImageType(contentType) {
		h.sendError(w, r, fmt.Sprintf("Unsupported media type '%s'. Allowed types: %s",
			contentType, strings.Join(allowedImageTypes, ", ")), http.StatusUnsupportedMediaType)
		return
	}

	image, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		h.handleError(w, r, "PREDICT_READ_ERROR", err)
		return
	}
	if len(image) > MaxUploadBytes {
		h.sendError(w, r, "File too large. Max allowed: 16 MB.", http.StatusRequestEntityTooLarge)
		return
	}
	if len(image) == 0 {
		h.sendError(w, r, "Uploaded file is empty.", http.StatusBadRequest)
		return
	}

	result, err := h.predictionService.Predict(r.Context(), image, header.Filename)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			h.logger.Error(r.Context(), "[PREDICT_TREATMENT_ERROR] Treatment data missing", nil, err)
			h.sendError(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		h.handleError(w, r, "PREDICT_ERROR", err)
		return
	}

	h.sendJSON(w, PredictionResponse{
		Success: true,
		Message: fmt.Sprintf("Disease detection complete — %s identified.", result.Condition),
		Data:    result,
	}, http.StatusOK)
}

// Classes handles GET /api/classes
func (h *PredictionHandler) Classes(w http.ResponseWriter, r *http.Request) {
	classes := h.predictionService.Classes()
	h.sendJSON(w, ClassesResponse{Success: true, Count: len(classes), Classes: classes}, http.StatusOK)
}

func isAllowedImageType(contentType string) bool {
	for _, t := range allowedImageTypes {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}
