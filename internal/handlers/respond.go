package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"plantcare/internal/models"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageResponse is the body of endpoints that only report an outcome
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// responder holds the response helpers shared by every handler
type responder struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// sendJSON sends a JSON response
func (h *responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *responder) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIError(strconv.Itoa(statusCode), routeName(r))

	response := ErrorResponse{
		Success: false,
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// handleError maps a service error onto a status code. Unknown errors are logged
// and reported with an opaque message.
func (h *responder) handleError(w http.ResponseWriter, r *http.Request, tag string, err error) {
	var verr *models.ValidationError
	var nf *models.NotFoundError
	var tooLarge *bodyTooLargeError

	switch {
	case errors.As(err, &tooLarge):
		h.sendError(w, r, tooLarge.Error(), http.StatusRequestEntityTooLarge)
	case errors.As(err, &verr):
		h.sendError(w, r, verr.Message, http.StatusUnprocessableEntity)
	case errors.As(err, &nf):
		h.sendError(w, r, nf.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrUnavailable):
		h.sendError(w, r, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, models.ErrUpstream):
		h.logger.Error(r.Context(), "["+tag+"] Upstream dependency failed", nil, err)
		h.sendError(w, r, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error(r.Context(), "["+tag+"] Request failed", logging.Fields{
			"path": r.URL.Path,
		}, err)
		h.sendError(w, r, "An internal server error occurred. Please check server logs.", http.StatusInternalServerError)
	}
}
