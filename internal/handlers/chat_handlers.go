package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"plantcare/internal/models"
	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
	Model   string `json:"model,omitempty"`
}

// ChatResponse is the assistant's reply to one message
type ChatResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Model      string `json:"model"`
	TokensUsed *int   `json:"tokens_used"`
}

// ChatHistoryResponse is the stored conversation in chronological order
type ChatHistoryResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	History []models.ChatMessage `json:"history"`
}

// ChatHandler handles assistant chat requests
type ChatHandler struct {
	responder
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ChatHandler {
	return &ChatHandler{
		responder:   responder{logger: logger, metrics: metricsCollector},
		chatService: chatService,
	}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/chat").Subrouter()
	api.HandleFunc("", h.Send).Methods("POST")
	api.HandleFunc("/history", h.History).Methods("GET")
	api.HandleFunc("/history", h.Clear).Methods("DELETE")
}

// Send handles POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, "CHAT_ERROR", err)
		return
	}

	reply, err := h.chatService.Send(r.Context(), req.Message, req.Model)
	if err != nil {
		h.handleError(w, r, "CHAT_ERROR", err)
		return
	}

	h.sendJSON(w, ChatResponse{
		Success:    true,
		Message:    reply.Message,
		Model:      reply.Model,
		TokensUsed: reply.TokensUsed,
	}, http.StatusOK)
}

// History handles GET /api/chat/history
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chatService.History(r.Context())
	if err != nil {
		h.handleError(w, r, "CHAT_ERROR", err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	h.sendJSON(w, ChatHistoryResponse{Success: true, Count: len(msgs), History: msgs}, http.StatusOK)
}

// Clear handles DELETE /api/chat/history
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.Clear(r.Context()); err != nil {
		h.handleError(w, r, "CHAT_ERROR", err)
		return
	}
	h.sendJSON(w, MessageResponse{Success: true, Message: "Chat history cleared."}, http.StatusOK)
}
