package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reverie/internal/config"
	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/llm"
	"reverie/internal/llm/pricing"
	"reverie/internal/repository/postgres"
	"reverie/internal/service/conversation"
	"reverie/internal/service/profile"
	"reverie/internal/service/session"
	"reverie/internal/service/settings"
	"reverie/internal/vector"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type CLI struct {
	ctx      context.Context
	pipeline *conversation.Pipeline
	turns    *conversation.TurnService
	sessions *session.Service
	settings *settings.Service
	scanner  *bufio.Scanner
	profile  *models.Profile
	logger   *slog.Logger
}

// setupLogger creates a logger that writes to both console and file
func setupLogger(logsDir string) (*slog.Logger, string, error) {
	if logsDir == "" {
		logsDir = "logs"
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFilename := filepath.Join(logsDir, fmt.Sprintf("conversation_cli_%s.log", timestamp))

	logFile, err := os.Create(logFilename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}

	// Console: INFO level, text format
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	// File: DEBUG level with source locations
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format("2006-01-02 15:04:05"))
				}
			}
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return a
		},
	})

	logger := slog.New(&multiHandler{
		handlers: []slog.Handler{consoleHandler, fileHandler},
	})
	return logger, logFilename, nil
}

// multiHandler writes to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, logFile, err := setupLogger(cfg.LogDir)
	if err != nil {
		fmt.Printf("Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("session started", "log_file", logFile)

	ctx := context.Background()
	logger.Debug("connecting to database")
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		fmt.Printf("%s❌ Failed to connect to database: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
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

	logger.Debug("connecting to vector store", "host", cfg.QdrantHost, "port", cfg.QdrantPort)
	store, err := vector.NewQdrantStore(vector.QdrantConfig{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		logger.Error("vector store connection failed", "error", err)
		fmt.Printf("%s❌ Failed to connect to qdrant: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	defer store.Close()

	if err := vector.EnsureAll(ctx, store, cfg.EmbeddingDimension); err != nil {
		logger.Error("vector collection setup failed", "error", err)
		fmt.Printf("%s❌ Failed to ensure vector collections: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	logger.Debug("setting up LLM providers")
	priceRegistry, err := pricing.NewRegistry(logger)
	if err != nil {
		logger.Error("pricing table load failed", "error", err)
		fmt.Printf("%s❌ Failed to load pricing tables: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	auditor := llm.NewAuditor(requestLogRepo, priceRegistry, logger)
	geminiClient := llm.NewGeminiClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, auditor, logger)
	claudeClient := llm.NewClaudeClient(cfg.ClaudeBaseURL, cfg.AnthropicAPIKey, auditor, logger)
	factory := llm.NewFactory(geminiClient, claudeClient)
	technical := llm.NewTechnicalCaller(factory)
	embedder := llm.NewGeminiEmbedder(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.EmbeddingModel, auditor, logger)
	logger.Info("LLM providers initialized")

	activeCache := profile.NewActiveCache(profileRepo)
	settingsService := settings.NewService(settingRepo, logger)
	profileService := profile.NewService(profileRepo, contextDataRepo, flagRepo, systemMessageRepo, txManager, activeCache, logger)
	sessionService := session.NewService(sessionRepo, logger)

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
	logger.Info("conversation services initialized")

	stripCtx, stopStripper := context.WithCancel(ctx)
	stripper.Start(stripCtx)
	defer func() {
		stripper.Stop()
		stopStripper()
	}()

	activeProfile, err := profileService.GetActive(ctx)
	if err != nil {
		logger.Error("no active profile", "error", err)
		if errors.Is(err, domain.ErrNoActiveProfile) {
			fmt.Printf("%s❌ No active profile. Run cmd/seed first.%s\n", colorRed, colorReset)
		} else {
			fmt.Printf("%s❌ Failed to load active profile: %v%s\n", colorRed, err, colorReset)
		}
		os.Exit(1)
	}

	cli := &CLI{
		ctx:      ctx,
		pipeline: pipeline,
		turns:    turnService,
		sessions: sessionService,
		settings: settingsService,
		scanner:  bufio.NewScanner(os.Stdin),
		profile:  activeProfile,
		logger:   logger,
	}

	if err := cli.ensureActiveSession(); err != nil {
		logger.Error("session setup failed", "error", err)
		fmt.Printf("%s❌ Failed to set up a session: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	cli.run()
}

// ensureActiveSession creates and activates a session when the profile has
// none.
func (cli *CLI) ensureActiveSession() error {
	_, err := cli.sessions.GetActive(cli.ctx, cli.profile.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNoActiveSession) {
		return err
	}

	created, err := cli.sessions.Create(cli.ctx, &session.CreateRequest{
		ProfileID: cli.profile.ID,
		Activate:  true,
	})
	if err != nil {
		return err
	}
	cli.logger.Info("session created", "session_id", created.ID, "name", created.Name)
	return nil
}

func (cli *CLI) run() {
	cli.logger.Info("CLI started",
		"profile_id", cli.profile.ID,
		"profile_name", cli.profile.Name,
	)

	fmt.Printf("\n%s╔══════════════════════════════════════╗%s\n", colorCyan, colorReset)
	fmt.Printf("%s║      Reverie Conversation CLI        ║%s\n", colorCyan, colorReset)
	fmt.Printf("%s╚══════════════════════════════════════╝%s\n", colorCyan, colorReset)
	fmt.Printf("%sProfile: %s%s\n\n", colorBlue, cli.profile.Name, colorReset)

	for {
		active, err := cli.sessions.GetActive(cli.ctx, cli.profile.ID)
		sessionLabel := "none"
		if err == nil {
			sessionLabel = fmt.Sprintf("#%d %s", active.Number, active.Name)
		}

		fmt.Println("\n" + strings.Repeat("─", 40))
		fmt.Printf("Session: %s\n", sessionLabel)
		fmt.Println("Main Menu:")
		fmt.Println("1. Send a message")
		fmt.Println("2. View conversation")
		fmt.Println("3. Switch or create session")
		fmt.Println("4. Tune generation settings")
		fmt.Println("5. Preview next request")
		fmt.Println("6. Exit")
		fmt.Print("\nSelect option (1-6): ")

		choice := cli.readLine()
		fmt.Println()

		cli.logger.Debug("menu selection", "choice", choice)

		switch choice {
		case "1":
			cli.sendMessageFlow()
		case "2":
			cli.viewConversation()
		case "3":
			cli.switchSessionFlow()
		case "4":
			cli.tuneSettingsFlow()
		case "5":
			cli.previewRequestFlow()
		case "6":
			cli.logger.Info("CLI exiting")
			fmt.Printf("%s✓ Goodbye!%s\n", colorGreen, colorReset)
			return
		default:
			cli.logger.Warn("invalid menu choice", "choice", choice)
			fmt.Printf("%s⚠ Invalid choice. Please enter 1-6.%s\n", colorYellow, colorReset)
		}
	}
}

func (cli *CLI) sendMessageFlow() {
	cli.logger.Info("starting message flow")
	fmt.Printf("%s=== Send Message ===%s\n\n", colorCyan, colorReset)

	fmt.Print("You: ")
	message := cli.readLine()
	if message == "" {
		cli.logger.Warn("empty message provided")
		fmt.Printf("%s⚠ Message cannot be empty%s\n", colorYellow, colorReset)
		return
	}
	cli.logger.Debug("message entered", "length", len(message))

	fmt.Printf("\n%s⏳ Running turn...%s\n", colorBlue, colorReset)
	turn, err := cli.pipeline.ProcessInput(cli.ctx, message)
	if err != nil {
		cli.logger.Error("turn failed", "error", err)
		fmt.Printf("%s❌ Turn failed: %v%s\n", colorRed, err, colorReset)
		if turn != nil {
			fmt.Printf("%s⚠ Turn %d kept with the failure recorded%s\n", colorYellow, turn.ID, colorReset)
		}
		return
	}

	cli.logger.Info("turn complete", "turn_id", turn.ID)
	fmt.Printf("%s✓ Turn %d complete%s\n", colorGreen, turn.ID, colorReset)

	fmt.Printf("\n%s--- Response ---%s\n", colorGreen, colorReset)
	fmt.Println(turn.DisplayResponse)
	if hidden := len(turn.Response) - len(turn.DisplayResponse); hidden > 0 {
		fmt.Printf("%s  [technical section hidden: %d chars]%s\n", colorBlue, hidden, colorReset)
	}
}

func (cli *CLI) viewConversation() {
	cli.logger.Info("viewing conversation")
	fmt.Printf("%s=== View Conversation ===%s\n\n", colorCyan, colorReset)

	active, err := cli.sessions.GetActive(cli.ctx, cli.profile.ID)
	if err != nil {
		cli.logger.Error("failed to resolve active session", "error", err)
		fmt.Printf("%s❌ Failed to resolve active session: %v%s\n", colorRed, err, colorReset)
		return
	}

	turns, err := cli.turns.ListBySession(cli.ctx, active.ID)
	if err != nil {
		cli.logger.Error("failed to list turns", "error", err, "session_id", active.ID)
		fmt.Printf("%s❌ Failed to list turns: %v%s\n", colorRed, err, colorReset)
		return
	}
	cli.logger.Debug("turns retrieved", "count", len(turns))

	if len(turns) == 0 {
		fmt.Printf("%s⚠ No turns in this session yet%s\n", colorYellow, colorReset)
		return
	}

	fmt.Printf("%s--- Session #%d: %s ---%s\n", colorCyan, active.Number, active.Name, colorReset)
	for i := range turns {
		cli.displayTurn(&turns[i])
		fmt.Println()
	}
}

func (cli *CLI) displayTurn(turn *models.Turn) {
	fmt.Printf("%s[YOU]%s %s\n", colorBlue, colorReset, turn.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Println(turn.Input)

	label := fmt.Sprintf("%s[ASSISTANT]%s", colorGreen, colorReset)
	if !turn.Accepted {
		label += fmt.Sprintf(" %s(rejected)%s", colorYellow, colorReset)
	}
	fmt.Println(label)

	response := turn.DisplayResponse
	if response == "" {
		response = turn.Response
	}
	if response == "" {
		fmt.Printf("%s  (no response recorded)%s\n", colorYellow, colorReset)
	} else {
		fmt.Println(response)
	}

	if turn.StrippedTurn != "" {
		fmt.Printf("%s  [stripped summary: %d chars]%s\n", colorYellow, len(turn.StrippedTurn), colorReset)
	}
}

func (cli *CLI) switchSessionFlow() {
	fmt.Printf("%s=== Switch Session ===%s\n\n", colorCyan, colorReset)

	sessions, err := cli.sessions.List(cli.ctx, cli.profile.ID)
	if err != nil {
		cli.logger.Error("failed to list sessions", "error", err)
		fmt.Printf("%s❌ Failed to list sessions: %v%s\n", colorRed, err, colorReset)
		return
	}

	fmt.Println("Sessions:")
	for i, s := range sessions {
		marker := " "
		if s.IsActive {
			marker = "*"
		}
		fmt.Printf("%d. %s #%d %s\n", i+1, marker, s.Number, s.Name)
	}
	fmt.Print("\nSelect session number (or 0 to create new): ")

	choice := cli.readLine()
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 0 || idx > len(sessions) {
		cli.logger.Warn("invalid session selection", "choice", choice)
		fmt.Printf("%s⚠ Invalid choice%s\n", colorYellow, colorReset)
		return
	}

	if idx == 0 {
		fmt.Print("New session name (press enter for default): ")
		name := cli.readLine()
		created, err := cli.sessions.Create(cli.ctx, &session.CreateRequest{
			ProfileID: cli.profile.ID,
			Name:      name,
			Activate:  true,
		})
		if err != nil {
			cli.logger.Error("failed to create session", "error", err)
			fmt.Printf("%s❌ Failed to create session: %v%s\n", colorRed, err, colorReset)
			return
		}
		cli.logger.Info("session created", "session_id", created.ID, "name", created.Name)
		fmt.Printf("%s✓ Session #%d %q is now active%s\n", colorGreen, created.Number, created.Name, colorReset)
		return
	}

	selected := sessions[idx-1]
	if err := cli.sessions.Activate(cli.ctx, selected.ID); err != nil {
		cli.logger.Error("failed to activate session", "error", err, "session_id", selected.ID)
		fmt.Printf("%s❌ Failed to activate session: %v%s\n", colorRed, err, colorReset)
		return
	}
	cli.logger.Info("session activated", "session_id", selected.ID)
	fmt.Printf("%s✓ Session #%d %q is now active%s\n", colorGreen, selected.Number, selected.Name, colorReset)
}

// selectProvider prompts for the dispatch provider
func (cli *CLI) selectProvider() string {
	current := cli.settings.String(cli.ctx, settings.KeyLLMProvider, settings.DefaultLLMProvider)

	fmt.Printf("\n%sSelect provider (current: %s):%s\n", colorCyan, current, colorReset)
	fmt.Println("1. Gemini")
	fmt.Println("2. Claude")
	fmt.Println("0. Skip (keep current)")
	fmt.Print("\nChoice: ")

	choice := cli.readLine()
	cli.logger.Debug("provider selection", "choice", choice)

	switch choice {
	case "1":
		return llm.ProviderGemini
	case "2":
		return llm.ProviderClaude
	case "0", "":
		return ""
	default:
		fmt.Printf("%s⚠ Invalid choice, keeping current%s\n", colorYellow, colorReset)
		return ""
	}
}

// selectModel prompts for a model matching the provider
func (cli *CLI) selectModel(provider string) (key, model string) {
	if provider == llm.ProviderClaude {
		fmt.Printf("\n%sSelect Claude model:%s\n", colorCyan, colorReset)
		fmt.Println("1. Claude Sonnet 4.5 [default]")
		fmt.Println("2. Claude Haiku 4.5")
		fmt.Println("3. Claude Opus 4.1")
		fmt.Println("0. Skip (keep current)")
		fmt.Print("\nChoice: ")

		choice := cli.readLine()
		cli.logger.Debug("model selection", "provider", provider, "choice", choice)

		switch choice {
		case "1", "":
			return settings.KeyClaudeModel, "claude-sonnet-4-5"
		case "2":
			return settings.KeyClaudeModel, "claude-haiku-4-5"
		case "3":
			return settings.KeyClaudeModel, "claude-opus-4-1"
		case "0":
			return "", ""
		default:
			fmt.Printf("%s⚠ Invalid choice, keeping current%s\n", colorYellow, colorReset)
			return "", ""
		}
	}

	fmt.Printf("\n%sSelect Gemini model:%s\n", colorCyan, colorReset)
	fmt.Println("1. Gemini 2.5 Flash [default]")
	fmt.Println("2. Gemini 2.5 Pro")
	fmt.Println("3. Gemini 2.5 Flash Lite")
	fmt.Println("0. Skip (keep current)")
	fmt.Print("\nChoice: ")

	choice := cli.readLine()
	cli.logger.Debug("model selection", "provider", provider, "choice", choice)

	switch choice {
	case "1", "":
		return settings.KeyGeminiModel, "gemini-2.5-flash"
	case "2":
		return settings.KeyGeminiModel, "gemini-2.5-pro"
	case "3":
		return settings.KeyGeminiModel, "gemini-2.5-flash-lite"
	case "0":
		return "", ""
	default:
		fmt.Printf("%s⚠ Invalid choice, keeping current%s\n", colorYellow, colorReset)
		return "", ""
	}
}

// selectTemperature prompts for a temperature preset
func (cli *CLI) selectTemperature() string {
	fmt.Printf("\n%sSelect temperature:%s\n", colorCyan, colorReset)
	fmt.Println("1. Precise (0.0)")
	fmt.Println("2. Balanced (0.7)")
	fmt.Println("3. Creative (1.0) [default]")
	fmt.Println("4. Custom (enter value 0-2)")
	fmt.Println("0. Skip (keep current)")
	fmt.Print("\nChoice: ")

	choice := cli.readLine()
	cli.logger.Debug("temperature selection", "choice", choice)

	switch choice {
	case "1":
		return "0.0"
	case "2":
		return "0.7"
	case "3", "":
		return "1.0"
	case "4":
		fmt.Print("Enter temperature (0-2): ")
		raw := cli.readLine()
		if val, err := strconv.ParseFloat(raw, 64); err == nil && val >= 0 && val <= 2 {
			return raw
		}
		fmt.Printf("%s⚠ Invalid value, keeping current%s\n", colorYellow, colorReset)
		return ""
	case "0":
		return ""
	default:
		fmt.Printf("%s⚠ Invalid choice, keeping current%s\n", colorYellow, colorReset)
		return ""
	}
}

// selectThinking prompts for reasoning settings matching the provider
func (cli *CLI) selectThinking(provider string) map[string]string {
	fmt.Printf("\n%sConfigure thinking?%s (y/n): ", colorCyan, colorReset)
	response := strings.ToLower(cli.readLine())
	if response != "y" && response != "yes" {
		cli.logger.Debug("thinking configuration skipped")
		return nil
	}

	out := make(map[string]string)

	if provider == llm.ProviderClaude {
		fmt.Printf("\n%sSelect thinking budget:%s\n", colorCyan, colorReset)
		fmt.Println("1. Low (2000 tokens)")
		fmt.Println("2. Medium (5000 tokens) [default]")
		fmt.Println("3. High (12000 tokens)")
		fmt.Print("\nChoice: ")

		choice := cli.readLine()
		cli.logger.Debug("thinking budget selection", "choice", choice)

		switch choice {
		case "1":
			out[settings.KeyClaudeThinkingBudget] = "2000"
		case "3":
			out[settings.KeyClaudeThinkingBudget] = "12000"
		default:
			out[settings.KeyClaudeThinkingBudget] = "5000"
		}
		return out
	}

	fmt.Printf("\n%sSelect thinking level:%s\n", colorCyan, colorReset)
	fmt.Println("1. Low")
	fmt.Println("2. Medium [default]")
	fmt.Println("3. High")
	fmt.Print("\nChoice: ")

	choice := cli.readLine()
	cli.logger.Debug("thinking level selection", "choice", choice)

	switch choice {
	case "1":
		out[settings.KeyGeminiThinkingLevel] = "low"
	case "3":
		out[settings.KeyGeminiThinkingLevel] = "high"
	default:
		out[settings.KeyGeminiThinkingLevel] = "medium"
	}

	fmt.Print("Include thoughts in output? (y/n): ")
	include := strings.ToLower(cli.readLine())
	if include == "y" || include == "yes" {
		out[settings.KeyGeminiIncludeThoughts] = "true"
	} else {
		out[settings.KeyGeminiIncludeThoughts] = "false"
	}
	return out
}

func (cli *CLI) tuneSettingsFlow() {
	cli.logger.Info("tuning generation settings")
	fmt.Printf("%s=== Tune Generation Settings ===%s\n", colorCyan, colorReset)

	updates := make(map[string]string)

	provider := cli.selectProvider()
	if provider != "" {
		updates[settings.KeyLLMProvider] = provider
	} else {
		provider = cli.settings.String(cli.ctx, settings.KeyLLMProvider, settings.DefaultLLMProvider)
	}

	if key, model := cli.selectModel(provider); key != "" {
		updates[key] = model
	}

	if temp := cli.selectTemperature(); temp != "" {
		updates[settings.KeyTemperature] = temp
	}

	for key, value := range cli.selectThinking(provider) {
		updates[key] = value
	}

	fmt.Print("\nMax response tokens (press enter to skip): ")
	maxTokens := cli.readLine()
	if maxTokens != "" {
		if _, err := strconv.Atoi(maxTokens); err == nil {
			updates[settings.KeyMaxResponseTokens] = maxTokens
		} else {
			fmt.Printf("%s⚠ Invalid number, skipping max tokens%s\n", colorYellow, colorReset)
		}
	}

	if len(updates) == 0 {
		fmt.Printf("%s⚠ Nothing to update%s\n", colorYellow, colorReset)
		return
	}

	for key, value := range updates {
		if err := cli.settings.Set(cli.ctx, key, value); err != nil {
			cli.logger.Error("setting update failed", "key", key, "error", err)
			fmt.Printf("%s❌ Failed to set %s: %v%s\n", colorRed, key, err, colorReset)
			continue
		}
		cli.logger.Debug("setting updated", "key", key, "value", value)
		fmt.Printf("%s✓ %s = %s%s\n", colorGreen, key, value, colorReset)
	}
}

// previewRequestFlow builds the provider request for a message without
// dispatching it, then rolls the turn row back.
func (cli *CLI) previewRequestFlow() {
	cli.logger.Info("previewing request")
	fmt.Printf("%s=== Preview Next Request ===%s\n\n", colorCyan, colorReset)

	fmt.Print("Message to build for: ")
	message := cli.readLine()
	if message == "" {
		fmt.Printf("%s⚠ Message cannot be empty%s\n", colorYellow, colorReset)
		return
	}

	fmt.Printf("\n%s⏳ Building request...%s\n", colorBlue, colorReset)
	state, turn, err := cli.pipeline.BuildRequest(cli.ctx, message)
	if turn != nil {
		defer func() {
			if err := cli.pipeline.DeleteTurn(cli.ctx, turn.ID); err != nil {
				cli.logger.Warn("preview turn cleanup failed", "turn_id", turn.ID, "error", err)
			}
		}()
	}
	if err != nil {
		cli.logger.Error("request build failed", "error", err)
		fmt.Printf("%s❌ Failed to build request: %v%s\n", colorRed, err, colorReset)
		return
	}

	var (
		body []byte
		name string
	)
	if state.ClaudeRequest != nil {
		body, err = json.MarshalIndent(state.ClaudeRequest, "", "  ")
		name = llm.ProviderClaude
	} else {
		body, err = json.MarshalIndent(state.GeminiRequest, "", "  ")
		name = llm.ProviderGemini
	}
	if err != nil {
		fmt.Printf("%s❌ Failed to render request: %v%s\n", colorRed, err, colorReset)
		return
	}

	fmt.Printf("\n%s--- %s request ---%s\n", colorCyan, name, colorReset)
	fmt.Println(string(body))
}

func (cli *CLI) readLine() string {
	if !cli.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(cli.scanner.Text())
}
