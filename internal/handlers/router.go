package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plantcare/internal/services"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Prediction *services.PredictionService
	Fertilizer *services.FertilizerService
	History    *services.HistoryService
	Chat       *services.ChatService
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	CORSOrigins []string
	ModelPath   string
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter wires every handler onto a gorilla/mux router. Request IDs and
// CORS wrap the router itself so 404, 405 and preflight responses carry
// them too; mux only runs Use middleware for matched routes.
func NewRouter(svc Services, cfg RouterConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) http.Handler {
	router := mux.NewRouter()

	shared := &responder{logger: logger, metrics: metricsCollector}
	router.Use(instrumentMiddleware(logger, metricsCollector))
	router.Use(recoverMiddleware(shared))

	NewSystemHandler(svc.Prediction, svc.Fertilizer, cfg.ModelPath, logger, metricsCollector).RegisterRoutes(router)
	NewPredictionHandler(svc.Prediction, logger, metricsCollector).RegisterRoutes(router)
	NewFertilizerHandler(svc.Fertilizer, logger, metricsCollector).RegisterRoutes(router)
	NewHistoryHandler(svc.History, logger, metricsCollector).RegisterRoutes(router)
	NewChatHandler(svc.Chat, logger, metricsCollector).RegisterRoutes(router)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/docs", SwaggerUI).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.sendError(w, r, "resource not found: "+r.URL.Path, http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.sendError(w, r, "method "+r.Method+" not allowed on "+r.URL.Path, http.StatusMethodNotAllowed)
	})

	return requestIDMiddleware(corsMiddleware(cfg.CORSOrigins)(router))
}
