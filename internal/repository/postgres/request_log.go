package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// PostgresRequestLogRepository implements the RequestLogRepository interface
type PostgresRequestLogRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewRequestLogRepository creates a new request log repository
func NewRequestLogRepository(config *RepositoryConfig) repositories.RequestLogRepository {
	return &PostgresRequestLogRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const requestLogColumns = `id, request_id, operation, provider, model, start_time, end_time, duration_ms,
	status_code, prompt, system_instruction, raw_request_json, raw_response_json, generated_text,
	input_tokens, output_tokens, cached_content_token_count, thinking_tokens, total_tokens, total_cost,
	turn_id, created_at`

func scanRequestLog(s scanner) (*models.LLMRequestLog, error) {
	var log models.LLMRequestLog
	err := s.Scan(
		&log.ID,
		&log.RequestID,
		&log.Operation,
		&log.Provider,
		&log.Model,
		&log.StartTime,
		&log.EndTime,
		&log.DurationMs,
		&log.StatusCode,
		&log.Prompt,
		&log.SystemInstruction,
		&log.RawRequestJSON,
		&log.RawResponseJSON,
		&log.GeneratedText,
		&log.InputTokens,
		&log.OutputTokens,
		&log.CachedContentTokenCount,
		&log.ThinkingTokens,
		&log.TotalTokens,
		&log.TotalCost,
		&log.TurnID,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// Create inserts an audit row
func (r *PostgresRequestLogRepository) Create(ctx context.Context, log *models.LLMRequestLog) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (request_id, operation, provider, model, start_time, end_time, duration_ms,
			status_code, prompt, system_instruction, raw_request_json, raw_response_json, generated_text,
			input_tokens, output_tokens, cached_content_token_count, thinking_tokens, total_tokens, total_cost,
			turn_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id, created_at
	`, r.tables.RequestLogs)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		log.RequestID,
		log.Operation,
		log.Provider,
		log.Model,
		log.StartTime,
		log.EndTime,
		log.DurationMs,
		log.StatusCode,
		log.Prompt,
		log.SystemInstruction,
		log.RawRequestJSON,
		log.RawResponseJSON,
		log.GeneratedText,
		log.InputTokens,
		log.OutputTokens,
		log.CachedContentTokenCount,
		log.ThinkingTokens,
		log.TotalTokens,
		log.TotalCost,
		log.TurnID,
		time.Now().UTC(),
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("create request log: %w", err)
	}

	return nil
}

// List retrieves the most recent rows, newest first
func (r *PostgresRequestLogRepository) List(ctx context.Context, limit int) ([]models.LLMRequestLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s ORDER BY id DESC LIMIT $1
	`, requestLogColumns, r.tables.RequestLogs)

	return r.queryMany(ctx, query, limit)
}

// GetByRequestID retrieves a row by its request UUID
func (r *PostgresRequestLogRepository) GetByRequestID(ctx context.Context, requestID string) (*models.LLMRequestLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE request_id = $1`, requestLogColumns, r.tables.RequestLogs)

	log, err := scanRequestLog(GetExecutor(ctx, r.pool).QueryRow(ctx, query, requestID))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("request log %s: %w", requestID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get request log: %w", err)
	}

	return log, nil
}

// ListByTurn retrieves all rows attributed to a turn, oldest first
func (r *PostgresRequestLogRepository) ListByTurn(ctx context.Context, turnID int64) ([]models.LLMRequestLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE turn_id = $1 ORDER BY id
	`, requestLogColumns, r.tables.RequestLogs)

	return r.queryMany(ctx, query, turnID)
}

func (r *PostgresRequestLogRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.LLMRequestLog, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query request logs: %w", err)
	}
	defer rows.Close()

	logs := []models.LLMRequestLog{}
	for rows.Next() {
		log, err := scanRequestLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		logs = append(logs, *log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request logs: %w", err)
	}

	return logs, nil
}
