package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"reverie/internal/config"
	"reverie/internal/domain/models"
	"reverie/internal/repository/postgres"
	"reverie/internal/service/contextdata"
	"reverie/internal/service/profile"
	"reverie/internal/service/session"
	"reverie/internal/service/settings"
	"reverie/internal/service/systemmessage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed a starter profile")
	clearData := flag.Bool("clear-data", false, "Clear all rows (keep schema)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *clearData {
		log.Printf("🧹 Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	// Exit early if schema-only mode
	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Exit early if clear-data mode (just clear and exit)
	if *clearData {
		log.Println("🧹 Clearing existing rows...")
		if err := clearAllData(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	// Skip seeding when a profile already exists; the starter profile is
	// only for empty databases.
	var profileCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+tables.Profiles).Scan(&profileCount); err != nil {
		log.Fatalf("Failed to count profiles: %v", err)
	}
	if profileCount > 0 {
		log.Printf("✅ Database already has %d profile(s), skipping starter seed", profileCount)
		return
	}

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	profileRepo := postgres.NewProfileRepository(repoConfig)
	sessionRepo := postgres.NewSessionRepository(repoConfig)
	contextDataRepo := postgres.NewContextDataRepository(repoConfig)
	systemMessageRepo := postgres.NewSystemMessageRepository(repoConfig)
	settingRepo := postgres.NewSettingRepository(repoConfig)
	flagRepo := postgres.NewFlagRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Create services. The seed path never embeds, so the context data
	// service runs without a vector store or embedder.
	activeCache := profile.NewActiveCache(profileRepo)
	profileService := profile.NewService(profileRepo, contextDataRepo, flagRepo, systemMessageRepo, txManager, activeCache, logger)
	sessionService := session.NewService(sessionRepo, logger)
	messageService := systemmessage.NewService(systemMessageRepo, txManager, logger)
	contextService := contextdata.NewService(contextDataRepo, nil, nil, nil, txManager, logger)
	settingsService := settings.NewService(settingRepo, logger)

	log.Println("📝 Seeding starter profile...")
	if err := seedStarterProfile(ctx, profileService, sessionService, messageService, contextService, settingsService); err != nil {
		log.Fatalf("Failed to seed starter profile: %v", err)
	}

	log.Println("🎉 Seeding complete!")
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	// Create profiles table
	createProfiles := `
		CREATE TABLE IF NOT EXISTS ` + tables.Profiles + ` (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_activated_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createProfiles); err != nil {
		return err
	}

	// Create sessions table
	createSessions := `
		CREATE TABLE IF NOT EXISTS ` + tables.Sessions + ` (
			id BIGSERIAL PRIMARY KEY,
			profile_id BIGINT NOT NULL REFERENCES ` + tables.Profiles + `(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(profile_id, number)
		)
	`
	if _, err := pool.Exec(ctx, createSessions); err != nil {
		return err
	}

	// Create turns table
	createTurns := `
		CREATE TABLE IF NOT EXISTS ` + tables.Turns + ` (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES ` + tables.Sessions + `(id) ON DELETE CASCADE,
			input TEXT NOT NULL DEFAULT '',
			json_input TEXT NOT NULL DEFAULT '',
			response TEXT NOT NULL DEFAULT '',
			stripped_turn TEXT NOT NULL DEFAULT '',
			display_response TEXT NOT NULL DEFAULT '',
			accepted BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createTurns); err != nil {
		return err
	}

	// Create system_messages table
	createSystemMessages := `
		CREATE TABLE IF NOT EXISTS ` + tables.SystemMessages + ` (
			id BIGSERIAL PRIMARY KEY,
			profile_id BIGINT NOT NULL REFERENCES ` + tables.Profiles + `(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT false,
			is_archived BOOLEAN NOT NULL DEFAULT false,
			version INTEGER NOT NULL DEFAULT 1,
			parent_id BIGINT REFERENCES ` + tables.SystemMessages + `(id) ON DELETE CASCADE,
			attached_to_personas BIGINT[] NOT NULL DEFAULT '{}',
			attached_to_perceptions BIGINT[] NOT NULL DEFAULT '{}',
			is_user_profile BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createSystemMessages); err != nil {
		return err
	}

	// Create context_data table
	createContextData := `
		CREATE TABLE IF NOT EXISTS ` + tables.ContextData + ` (
			id BIGSERIAL PRIMARY KEY,
			profile_id BIGINT NOT NULL REFERENCES ` + tables.Profiles + `(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			availability TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			token_count_updated_at TIMESTAMPTZ,
			is_enabled BOOLEAN NOT NULL DEFAULT true,
			is_archived BOOLEAN NOT NULL DEFAULT false,
			sort_order INTEGER NOT NULL DEFAULT 0,
			trigger_keywords TEXT NOT NULL DEFAULT '',
			trigger_lookback_turns INTEGER NOT NULL DEFAULT 0,
			trigger_min_match_count INTEGER NOT NULL DEFAULT 0,
			trigger_count INTEGER NOT NULL DEFAULT 0,
			last_triggered_at TIMESTAMPTZ,
			use_next_turn_only BOOLEAN NOT NULL DEFAULT false,
			use_every_turn BOOLEAN NOT NULL DEFAULT false,
			previous_availability TEXT,
			in_vector_db BOOLEAN NOT NULL DEFAULT false,
			tags TEXT[] NOT NULL DEFAULT '{}',
			source_session_id BIGINT REFERENCES ` + tables.Sessions + `(id) ON DELETE SET NULL,
			speaker TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			nonverbal_behavior TEXT NOT NULL DEFAULT '',
			is_user BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createContextData); err != nil {
		return err
	}

	// Create flags table
	createFlags := `
		CREATE TABLE IF NOT EXISTS ` + tables.Flags + ` (
			id BIGSERIAL PRIMARY KEY,
			profile_id BIGINT NOT NULL REFERENCES ` + tables.Profiles + `(id) ON DELETE CASCADE,
			value TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			constant BOOLEAN NOT NULL DEFAULT false,
			last_used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createFlags); err != nil {
		return err
	}

	// Create settings table
	createSettings := `
		CREATE TABLE IF NOT EXISTS ` + tables.Settings + ` (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := pool.Exec(ctx, createSettings); err != nil {
		return err
	}

	// Create llm_request_logs table
	createRequestLogs := `
		CREATE TABLE IF NOT EXISTS ` + tables.RequestLogs + ` (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			operation TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			status_code INTEGER NOT NULL DEFAULT 0,
			prompt TEXT NOT NULL DEFAULT '',
			system_instruction TEXT NOT NULL DEFAULT '',
			raw_request_json TEXT NOT NULL DEFAULT '',
			raw_response_json TEXT NOT NULL DEFAULT '',
			generated_text TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cached_content_token_count INTEGER NOT NULL DEFAULT 0,
			thinking_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			turn_id BIGINT REFERENCES ` + tables.Turns + `(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createRequestLogs); err != nil {
		return err
	}

	// Create indexes. The partial unique indexes enforce the single-active
	// rows: one active profile overall, one active session per profile, one
	// active version per system message family.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `profiles_single_active ON ` + tables.Profiles + `(is_active) WHERE is_active`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `sessions_active_per_profile ON ` + tables.Sessions + `(profile_id) WHERE is_active`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `system_messages_active_per_family ON ` + tables.SystemMessages + `(COALESCE(parent_id, id)) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `sessions_profile_id ON ` + tables.Sessions + `(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `turns_session_id ON ` + tables.Turns + `(session_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `system_messages_profile_type ON ` + tables.SystemMessages + `(profile_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `system_messages_parent_id ON ` + tables.SystemMessages + `(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `context_data_profile_availability ON ` + tables.ContextData + `(profile_id, availability) WHERE is_enabled AND NOT is_archived`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `context_data_profile_type ON ` + tables.ContextData + `(profile_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `flags_profile_id ON ` + tables.Flags + `(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `llm_request_logs_turn_id ON ` + tables.RequestLogs + `(turn_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `llm_request_logs_created_at ON ` + tables.RequestLogs + `(created_at DESC)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.RequestLogs,
		tables.Flags,
		tables.ContextData,
		tables.SystemMessages,
		tables.Turns,
		tables.Sessions,
		tables.Settings,
		tables.Profiles,
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}

// clearAllData deletes all rows without dropping the schema. Profiles go
// last so the cascades clear the child tables first.
func clearAllData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.RequestLogs,
		tables.Flags,
		tables.ContextData,
		tables.SystemMessages,
		tables.Turns,
		tables.Sessions,
		tables.Settings,
		tables.Profiles,
	}

	for _, table := range tableNames {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	return nil
}

// seedStarterProfile creates a first profile with an active session, a
// persona, a user profile sketch, and baseline settings, all through the
// service layer so the usual validation and activation rules apply.
func seedStarterProfile(
	ctx context.Context,
	profiles *profile.Service,
	sessions *session.Service,
	messages *systemmessage.Service,
	contexts *contextdata.Service,
	settingsService *settings.Service,
) error {
	starter, err := profiles.Create(ctx, &profile.CreateRequest{Name: "Default"})
	if err != nil {
		return err
	}
	if err := profiles.Activate(ctx, starter.ID); err != nil {
		return err
	}
	log.Printf("✅ Created profile '%s' (ID: %d)", starter.Name, starter.ID)

	sess, err := sessions.Create(ctx, &session.CreateRequest{
		ProfileID: starter.ID,
		Activate:  true,
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created session '%s' (ID: %d)", sess.Name, sess.ID)

	persona, err := messages.Create(ctx, &systemmessage.CreateRequest{
		ProfileID: starter.ID,
		Name:      "Ayumi",
		Content:   seedPersonaContent,
		Type:      models.SystemMessagePersona,
		IsActive:  true,
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created persona '%s' (ID: %d)", persona.Name, persona.ID)

	userProfile, err := contexts.Create(ctx, &contextdata.CreateRequest{
		ProfileID:    starter.ID,
		Name:         "User Profile",
		Content:      seedUserProfileContent,
		Type:         models.ContextTypeCharacterProfile,
		Availability: models.AvailabilityAlwaysOn,
		IsUser:       true,
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created user profile context (ID: %d)", userProfile.ID)

	defaults := map[string]string{
		settings.KeyLLMProvider:         settings.DefaultLLMProvider,
		settings.KeyGeminiModel:         settings.DefaultGeminiModel,
		settings.KeyClaudeModel:         settings.DefaultClaudeModel,
		settings.KeyTechnicalModel:      settings.DefaultTechnicalModel,
		settings.KeyPreviousTurnsCount:  "6",
		settings.KeyMaxDialogueLogTurns: "50",
		settings.KeyMaxResponseTokens:   "8192",
		settings.KeyTemperature:         "1.0",
	}
	for name, value := range defaults {
		if err := settingsService.Set(ctx, name, value); err != nil {
			return err
		}
	}
	log.Printf("✅ Wrote %d default settings", len(defaults))

	return nil
}

const seedPersonaContent = `You are Ayumi, a thoughtful companion with a dry sense of humor.
You remember past conversations and refer back to them naturally. You speak
plainly, push back when you disagree, and never break character.`

const seedUserProfileContent = `The user has not filled in their profile yet.
Treat them as a new acquaintance and learn about them as you talk.`
