package repositories

import (
	"context"
	"time"

	"reverie/internal/domain/models"
)

// FlagRepository defines data access operations for flags
type FlagRepository interface {
	// Create inserts a flag and fills in generated ID and created_at
	Create(ctx context.Context, flag *models.Flag) error

	// GetByID retrieves a flag by ID
	GetByID(ctx context.Context, id int64) (*models.Flag, error)

	// List retrieves all flags for a profile
	List(ctx context.Context, profileID int64) ([]models.Flag, error)

	// ListActive retrieves active flags for a profile, id ascending
	ListActive(ctx context.Context, profileID int64) ([]models.Flag, error)

	// Update persists value/active/constant
	Update(ctx context.Context, flag *models.Flag) error

	// Consume stamps last_used_at on every active flag and deactivates the
	// non-constant ones. Returns the number of rows touched.
	Consume(ctx context.Context, profileID int64, at time.Time) (int64, error)

	// Delete removes a flag
	Delete(ctx context.Context, id int64) error

	// CopyProfile duplicates all flags of one profile into another
	CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error)
}
