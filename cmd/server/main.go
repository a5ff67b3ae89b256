package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"reverie/internal/config"
	"reverie/internal/domain/models"
	"reverie/internal/handler"
	"reverie/internal/llm"
	"reverie/internal/llm/pricing"
	"reverie/internal/middleware"
	"reverie/internal/repository/postgres"
	"reverie/internal/service/contextdata"
	"reverie/internal/service/conversation"
	"reverie/internal/service/flag"
	"reverie/internal/service/profile"
	"reverie/internal/service/session"
	"reverie/internal/service/settings"
	"reverie/internal/service/systemmessage"
	"reverie/internal/vector"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logWriter io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logWriter = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}

	profileRepo := postgres.NewProfileRepository(repoConfig)
	sessionRepo := postgres.NewSessionRepository(repoConfig)
	turnRepo := postgres.NewTurnRepository(repoConfig)
	contextDataRepo := postgres.NewContextDataRepository(repoConfig)
	systemMessageRepo := postgres.NewSystemMessageRepository(repoConfig)
	settingRepo := postgres.NewSettingRepository(repoConfig)
	flagRepo := postgres.NewFlagRepository(repoConfig)
	requestLogRepo := postgres.NewRequestLogRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Vector store
	store, err := vector.NewQdrantStore(vector.QdrantConfig{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		log.Fatalf("Failed to connect to qdrant: %v", err)
	}
	defer store.Close()

	if err := vector.EnsureAll(ctx, store, cfg.EmbeddingDimension); err != nil {
		log.Fatalf("Failed to ensure vector collections: %v", err)
	}
	logger.Info("vector collections ready", "dimension", cfg.EmbeddingDimension)

	// LLM stack: pricing, audit, transports, factory
	priceRegistry, err := pricing.NewRegistry(logger)
	if err != nil {
		log.Fatalf("Failed to load pricing tables: %v", err)
	}

	auditor := llm.NewAuditor(requestLogRepo, priceRegistry, logger)
	geminiClient := llm.NewGeminiClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, auditor, logger)
	claudeClient := llm.NewClaudeClient(cfg.ClaudeBaseURL, cfg.AnthropicAPIKey, auditor, logger)
	factory := llm.NewFactory(geminiClient, claudeClient)
	technical := llm.NewTechnicalCaller(factory)
	embedder := llm.NewGeminiEmbedder(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.EmbeddingModel, auditor, logger)

	counter, err := llm.NewTokenCounter(settings.DefaultGeminiModel)
	if err != nil {
		log.Fatalf("Failed to create token counter: %v", err)
	}

	// Services
	activeCache := profile.NewActiveCache(profileRepo)
	settingsService := settings.NewService(settingRepo, logger)
	profileService := profile.NewService(profileRepo, contextDataRepo, flagRepo, systemMessageRepo, txManager, activeCache, logger)
	sessionService := session.NewService(sessionRepo, logger)
	systemMessageService := systemmessage.NewService(systemMessageRepo, txManager, logger)
	contextDataService := contextdata.NewService(contextDataRepo, store, embedder, counter, txManager, logger)
	flagService := flag.NewService(flagRepo, logger)

	// Turn pipeline
	retriever := conversation.NewSemanticRetriever(settingsService, contextDataRepo, turnRepo, store, embedder, technical, logger)
	orchestrator := conversation.NewOrchestrator(logger,
		conversation.NewTypeEnricher(models.ContextTypeQuote, contextDataRepo),
		conversation.NewTypeEnricher(models.ContextTypePersonaVoiceSample, contextDataRepo),
		conversation.NewTypeEnricher(models.ContextTypeMemory, contextDataRepo),
		conversation.NewTypeEnricher(models.ContextTypeInsight, contextDataRepo),
		conversation.NewTypeEnricher(models.ContextTypeCharacterProfile, contextDataRepo),
		conversation.NewTypeEnricher(models.ContextTypeGeneric, contextDataRepo),
		conversation.NewSemanticDataEnricher(retriever),
		conversation.NewTriggerEnricher(contextDataRepo, turnRepo, settingsService, logger),
		conversation.NewPerceptionEnricher(systemMessageRepo, settingsService, technical, logger),
		conversation.NewDialogueLogEnricher(turnRepo),
		conversation.NewTurnHistoryEnricher(turnRepo),
		conversation.NewFlagEnricher(flagRepo),
	)
	stateBuilder := conversation.NewStateBuilder(settingsService, systemMessageRepo, contextDataRepo, logger)
	requestBuilder := conversation.NewRequestBuilder(settingsService, systemMessageRepo, cfg.ResponseSeparator)
	stripper := conversation.NewStripper(turnRepo, settingsService, technical, logger)
	pipeline := conversation.NewPipeline(
		activeCache,
		sessionRepo,
		turnRepo,
		contextDataRepo,
		flagRepo,
		settingsService,
		stateBuilder,
		orchestrator,
		requestBuilder,
		factory,
		stripper,
		logger,
	)
	turnService := conversation.NewTurnService(turnRepo, cfg.ResponseSeparator, logger)

	stripCtx, stopStripper := context.WithCancel(ctx)
	stripper.Start(stripCtx)

	// Handlers
	conversationHandler := handler.NewConversationHandler(pipeline, turnService, stripper, logger)
	contextDataHandler := handler.NewContextDataHandler(contextDataService, logger)
	systemMessageHandler := handler.NewSystemMessageHandler(systemMessageService, logger)
	profileHandler := handler.NewProfileHandler(profileService, logger)
	sessionHandler := handler.NewSessionHandler(sessionService, logger)
	settingsHandler := handler.NewSettingsHandler(settingsService, logger)
	flagHandler := handler.NewFlagHandler(flagService, logger)
	requestLogHandler := handler.NewRequestLogHandler(auditor, logger)
	healthHandler := handler.NewHealthHandler(pool)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Check)

	// Conversation routes
	mux.HandleFunc("POST /api/conversation", conversationHandler.ProcessInput)
	mux.HandleFunc("POST /api/conversation/debug", conversationHandler.Debug)
	mux.HandleFunc("GET /api/conversation/turns/{sessionId}", conversationHandler.ListTurns)
	mux.HandleFunc("PUT /api/conversation/turns/{id}/reject", conversationHandler.ToggleReject)
	mux.HandleFunc("PUT /api/conversation/turns/{id}/response", conversationHandler.UpdateResponse)
	mux.HandleFunc("PUT /api/conversation/turns/{id}/input", conversationHandler.UpdateInput)
	mux.HandleFunc("PUT /api/conversation/turns/{id}/stripped", conversationHandler.UpdateStripped)
	mux.HandleFunc("POST /api/conversation/turns/{id}/restrip", conversationHandler.Restrip)
	mux.HandleFunc("POST /api/conversation/sessions/{sessionId}/clear-all-stripped", conversationHandler.ClearAllStripped)

	// Context data routes
	mux.HandleFunc("POST /api/contextdata", contextDataHandler.Create)
	mux.HandleFunc("GET /api/contextdata", contextDataHandler.List)
	mux.HandleFunc("GET /api/contextdata/{id}", contextDataHandler.Get)
	mux.HandleFunc("PUT /api/contextdata/{id}", contextDataHandler.Update)
	mux.HandleFunc("DELETE /api/contextdata/{id}", contextDataHandler.Delete)
	mux.HandleFunc("POST /api/contextdata/{id}/availability", contextDataHandler.ChangeAvailability)
	mux.HandleFunc("POST /api/contextdata/{id}/use-next-turn", contextDataHandler.UseNextTurn)
	mux.HandleFunc("POST /api/contextdata/{id}/use-every-turn", contextDataHandler.UseEveryTurn)
	mux.HandleFunc("POST /api/contextdata/{id}/clear-manual", contextDataHandler.ClearManual)
	mux.HandleFunc("POST /api/contextdata/{id}/embed", contextDataHandler.Embed)
	mux.HandleFunc("POST /api/contextdata/{id}/archive", contextDataHandler.Archive)
	mux.HandleFunc("POST /api/contextdata/{id}/restore", contextDataHandler.Restore)

	// System message routes
	mux.HandleFunc("POST /api/systemmessages", systemMessageHandler.Create)
	mux.HandleFunc("GET /api/systemmessages", systemMessageHandler.List)
	mux.HandleFunc("GET /api/systemmessages/{id}", systemMessageHandler.Get)
	mux.HandleFunc("PUT /api/systemmessages/{id}", systemMessageHandler.Update)
	mux.HandleFunc("DELETE /api/systemmessages/{id}", systemMessageHandler.Delete)
	mux.HandleFunc("GET /api/systemmessages/{id}/versions", systemMessageHandler.Versions)
	mux.HandleFunc("POST /api/systemmessages/{id}/activate", systemMessageHandler.Activate)
	mux.HandleFunc("POST /api/systemmessages/{id}/archive", systemMessageHandler.Archive)
	mux.HandleFunc("POST /api/systemmessages/{id}/restore", systemMessageHandler.Restore)

	// Profile routes
	mux.HandleFunc("GET /api/profiles", profileHandler.List)
	mux.HandleFunc("POST /api/profiles", profileHandler.Create)
	mux.HandleFunc("GET /api/profiles/active", profileHandler.GetActive)
	mux.HandleFunc("GET /api/profiles/{id}", profileHandler.Get)
	mux.HandleFunc("PUT /api/profiles/{id}", profileHandler.Rename)
	mux.HandleFunc("DELETE /api/profiles/{id}", profileHandler.Delete)
	mux.HandleFunc("POST /api/profiles/{id}/activate", profileHandler.Activate)
	mux.HandleFunc("POST /api/profiles/{id}/duplicate", profileHandler.Duplicate)

	// Session routes
	mux.HandleFunc("GET /api/sessions", sessionHandler.List)
	mux.HandleFunc("POST /api/sessions", sessionHandler.Create)
	mux.HandleFunc("GET /api/sessions/{id}", sessionHandler.Get)
	mux.HandleFunc("PUT /api/sessions/{id}", sessionHandler.Rename)
	mux.HandleFunc("DELETE /api/sessions/{id}", sessionHandler.Delete)
	mux.HandleFunc("POST /api/sessions/{id}/activate", sessionHandler.Activate)

	// Settings routes
	mux.HandleFunc("GET /api/settings", settingsHandler.GetAll)
	mux.HandleFunc("PUT /api/settings/{name}", settingsHandler.Set)
	mux.HandleFunc("DELETE /api/settings/{name}", settingsHandler.Delete)

	// Flag routes
	mux.HandleFunc("GET /api/flags", flagHandler.List)
	mux.HandleFunc("POST /api/flags", flagHandler.Create)
	mux.HandleFunc("PUT /api/flags/{id}", flagHandler.Update)
	mux.HandleFunc("DELETE /api/flags/{id}", flagHandler.Delete)

	// LLM audit log routes
	mux.HandleFunc("GET /api/llmlogs", requestLogHandler.List)
	mux.HandleFunc("GET /api/llmlogs/turn/{turnId}", requestLogHandler.ListByTurn)
	mux.HandleFunc("GET /api/llmlogs/{requestId}", requestLogHandler.Get)

	// Middleware chain: Recovery innermost, CORS outermost so OPTIONS
	// pre-flights never reach the routes.
	var httpHandler http.Handler = mux
	httpHandler = middleware.Recovery(logger)(httpHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     httpHandler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout is disabled: a turn dispatch holds the response open
		// for the provider's full latency.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Block until a shutdown signal, then drain: stripper first so queued
	// jobs land, then in-flight HTTP.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	stripper.Stop()
	stopStripper()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
