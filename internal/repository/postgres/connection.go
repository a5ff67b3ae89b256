package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reverie/internal/domain/repositories"
)

// RepositoryConfig holds the shared inputs for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds the prefixed table names for the current environment.
// Queries interpolate these before reaching the database, so each prefix
// gets its own statement cache entries.
type TableNames struct {
	Profiles       string
	Sessions       string
	Turns          string
	SystemMessages string
	ContextData    string
	Flags          string
	Settings       string
	RequestLogs    string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Profiles:       fmt.Sprintf("%sprofiles", prefix),
		Sessions:       fmt.Sprintf("%ssessions", prefix),
		Turns:          fmt.Sprintf("%sturns", prefix),
		SystemMessages: fmt.Sprintf("%ssystem_messages", prefix),
		ContextData:    fmt.Sprintf("%scontext_data", prefix),
		Flags:          fmt.Sprintf("%sflags", prefix),
		Settings:       fmt.Sprintf("%ssettings", prefix),
		RequestLogs:    fmt.Sprintf("%sllm_request_logs", prefix),
	}
}

// CreateConnectionPool creates a pgx pool with PgBouncer-aware defaults.
//
// pgx defaults to prepared statements (QueryExecModeCacheStatement), which
// transaction poolers on port 6543 cannot serve. When that port is detected
// and the user did not override the mode in the connection string, the pool
// falls back to QueryExecModeCacheDescribe: extended protocol (so JSONB and
// array parameters still encode correctly) without server-side prepared
// statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for transaction pooler", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the context's transaction when one is present and the
// pool otherwise, so repositories join ambient transactions automatically.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
