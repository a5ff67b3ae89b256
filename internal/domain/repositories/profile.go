package repositories

import (
	"context"

	"reverie/internal/domain/models"
)

// ProfileRepository defines data access operations for profiles
type ProfileRepository interface {
	// Create creates a new profile and fills in generated ID and timestamps
	Create(ctx context.Context, profile *models.Profile) error

	// GetByID retrieves a profile by ID
	GetByID(ctx context.Context, id int64) (*models.Profile, error)

	// GetActive retrieves the single active profile
	// Returns domain.ErrNoActiveProfile when none is active
	GetActive(ctx context.Context) (*models.Profile, error)

	// List retrieves all profiles ordered by created_at
	List(ctx context.Context) ([]models.Profile, error)

	// Activate atomically clears every other profile's active flag and sets
	// the target's, bumping last_activated_at
	Activate(ctx context.Context, id int64) error

	// Update renames a profile
	Update(ctx context.Context, profile *models.Profile) error

	// Delete removes a profile and everything scoped to it (FK cascade)
	Delete(ctx context.Context, id int64) error
}
