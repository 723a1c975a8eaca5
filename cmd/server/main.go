package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"plantcare/internal/classifier"
	"plantcare/internal/config"
	"plantcare/internal/fertilizer"
	"plantcare/internal/handlers"
	"plantcare/internal/repository"
	"plantcare/internal/services"
	"plantcare/internal/treatment"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
	"plantcare/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("plantcare-api", handlers.APIVersion, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting PlantCare API server", logging.Fields{
		"version":          handlers.APIVersion,
		"server_host":      cfg.Server.Host,
		"server_port":      cfg.Server.Port,
		"reference_source": cfg.Reference.Source,
		"model_url":        cfg.Model.URL,
	})

	shutdownTracing, err := tracing.Setup(cfg.Tracing.Enabled, "plantcare-api", handlers.APIVersion)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to set up tracing", nil, err)
	}
	defer shutdownTracing(context.Background())

	metricsCollector := metrics.NewCollector("plantcare")

	// Session store: scan and chat history live in an in-memory database
	db, err := database.Open(&database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open session store", nil, err)
	}
	defer db.Close()

	if err := repository.Apply(ctx, db, repository.SessionSchema); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to create session schema", nil, err)
	}

	ref, err := loadReference(ctx, cfg.Reference, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load reference data", logging.Fields{
			"source": cfg.Reference.Source,
		}, err)
	}
	engine, err := fertilizer.NewEngine(ref)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid reference data", nil, err)
	}

	kb, err := treatment.Default()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load treatment knowledge base", nil, err)
	}

	leafClassifier, closeClassifier, err := classifier.New(ctx, cfg.Model, cfg.Cache, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to build classifier", nil, err)
	}
	defer closeClassifier()

	// A nil *GeminiChatModel must not become a non-nil ChatModel.
	var chatModel services.ChatModel
	gemini, err := services.NewGeminiChatModel(ctx, cfg.Chat.APIKey)
	switch {
	case err != nil:
		logger.Error(ctx, "[STARTUP] Chat model unavailable", nil, err)
	case gemini == nil:
		logger.Warn(ctx, "[STARTUP] GEMINI_API_KEY not set, chat endpoint will answer 503", nil)
	default:
		chatModel = gemini
	}

	historyService := services.NewHistoryService(repository.NewHistoryRepository(db, logger, metricsCollector), logger, metricsCollector)
	svc := handlers.Services{
		Prediction: services.NewPredictionService(leafClassifier, kb, historyService, logger, metricsCollector),
		Fertilizer: services.NewFertilizerService(engine, logger, metricsCollector),
		History:    historyService,
		Chat: services.NewChatService(chatModel, repository.NewChatRepository(db, logger),
			cfg.Chat.DefaultModel, cfg.Chat.HistoryTurns, logger),
	}

	router := handlers.NewRouter(svc, handlers.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		ModelPath:   cfg.Model.Path,
	}, logger, metricsCollector)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address":           server.Addr,
			"supported_classes": kb.Len(),
			"model_loaded":      leafClassifier.ModelLoaded(),
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", nil, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", nil, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", nil)
}

// loadReference reads the agronomic tables from the configured source.
func loadReference(ctx context.Context, cfg config.ReferenceConfig, logger *logging.StructuredLogger, m *metrics.Collector) (*fertilizer.ReferenceData, error) {
	switch cfg.Source {
	case "file":
		return fertilizer.LoadReferenceFile(cfg.File)
	case "postgres":
		db, err := database.Open(&database.Config{
			Driver:       database.DriverPostgres,
			DSN:          cfg.PostgresDSN,
			MaxOpenConns: 2,
			MaxIdleConns: 1,
		}, logger, m)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return repository.NewReferenceRepository(db, logger).Load(ctx)
	default:
		return fertilizer.DefaultReference()
	}
}
