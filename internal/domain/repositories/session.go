package repositories

import (
	"context"

	"reverie/internal/domain/models"
)

// SessionRepository defines data access operations for sessions
type SessionRepository interface {
	// Create creates a session with the next monotonic number for the profile
	Create(ctx context.Context, session *models.Session) error

	// GetByID retrieves a session by ID
	GetByID(ctx context.Context, id int64) (*models.Session, error)

	// GetActive retrieves the active session for a profile
	// Returns domain.ErrNoActiveSession when none is active
	GetActive(ctx context.Context, profileID int64) (*models.Session, error)

	// List retrieves all sessions for a profile, newest first
	List(ctx context.Context, profileID int64) ([]models.Session, error)

	// Activate clears other sessions of the profile and activates the target
	Activate(ctx context.Context, id int64) error

	// Update renames a session
	Update(ctx context.Context, session *models.Session) error

	// Delete removes a session and its turns
	Delete(ctx context.Context, id int64) error
}
