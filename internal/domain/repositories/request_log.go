package repositories

import (
	"context"

	"reverie/internal/domain/models"
)

// RequestLogRepository defines data access operations for LLM request logs
type RequestLogRepository interface {
	// Create inserts an audit row
	Create(ctx context.Context, log *models.LLMRequestLog) error

	// List retrieves the most recent rows, newest first
	List(ctx context.Context, limit int) ([]models.LLMRequestLog, error)

	// GetByRequestID retrieves a row by its request UUID
	GetByRequestID(ctx context.Context, requestID string) (*models.LLMRequestLog, error)

	// ListByTurn retrieves all rows attributed to a turn, oldest first
	ListByTurn(ctx context.Context, turnID int64) ([]models.LLMRequestLog, error)
}
