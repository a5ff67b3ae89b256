package repositories

import (
	"context"

	"reverie/internal/domain/models"
)

// TurnRepository defines data access operations for turns
type TurnRepository interface {
	// Create inserts a turn and fills in generated ID and created_at
	Create(ctx context.Context, turn *models.Turn) error

	// GetByID retrieves a turn by ID
	GetByID(ctx context.Context, id int64) (*models.Turn, error)

	// ListBySession retrieves all turns of a session, oldest first
	ListBySession(ctx context.Context, sessionID int64) ([]models.Turn, error)

	// GetRecentAccepted retrieves up to limit accepted turns of the session
	// with id < beforeTurnID, ordered oldest first. limit <= 0 yields an
	// empty slice.
	GetRecentAccepted(ctx context.Context, sessionID int64, limit int, beforeTurnID int64) ([]models.Turn, error)

	// UpdateResponse sets response and display_response
	UpdateResponse(ctx context.Context, id int64, response, displayResponse string) error

	// UpdateInput sets input and json_input
	UpdateInput(ctx context.Context, id int64, input, jsonInput string) error

	// UpdateAccepted toggles the accepted flag
	UpdateAccepted(ctx context.Context, id int64, accepted bool) error

	// UpdateStripped sets the stripped_turn text
	UpdateStripped(ctx context.Context, id int64, stripped string) error

	// ClearStrippedBySession blanks stripped_turn for every turn of the
	// session and returns the number of rows touched
	ClearStrippedBySession(ctx context.Context, sessionID int64) (int64, error)

	// Delete removes a turn
	Delete(ctx context.Context, id int64) error
}
