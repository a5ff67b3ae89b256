package repositories

import (
	"context"

	"reverie/internal/domain/models"
)

// SystemMessageRepository defines data access operations for system messages.
// Content updates are modeled as version inserts; see the service layer for
// the transactional choreography.
type SystemMessageRepository interface {
	// Create inserts a system message and fills in generated ID/timestamps
	Create(ctx context.Context, msg *models.SystemMessage) error

	// GetByID retrieves a system message by ID
	GetByID(ctx context.Context, id int64) (*models.SystemMessage, error)

	// GetByIDs retrieves system messages by ID, preserving input order
	GetByIDs(ctx context.Context, ids []int64) ([]models.SystemMessage, error)

	// List retrieves system messages for a profile, active versions first
	List(ctx context.Context, profileID int64, includeArchived bool) ([]models.SystemMessage, error)

	// GetActiveByType retrieves active, non-archived messages of a type
	GetActiveByType(ctx context.Context, profileID int64, t models.SystemMessageType) ([]models.SystemMessage, error)

	// GetAttachedContextFiles retrieves active ContextFile messages attached
	// to the given persona
	GetAttachedContextFiles(ctx context.Context, profileID, personaID int64) ([]models.SystemMessage, error)

	// GetPerceptionContextFiles retrieves active, non-archived ContextFile
	// messages attached to the given perception, id ascending
	GetPerceptionContextFiles(ctx context.Context, profileID, perceptionID int64) ([]models.SystemMessage, error)

	// GetUserProfileMessage retrieves the active message flagged as the user
	// profile, or domain.ErrNotFound
	GetUserProfileMessage(ctx context.Context, profileID int64) (*models.SystemMessage, error)

	// GetVersions retrieves every version of a family, version ascending
	GetVersions(ctx context.Context, rootID int64) ([]models.SystemMessage, error)

	// MaxVersion returns the highest version number in a family
	MaxVersion(ctx context.Context, rootID int64) (int, error)

	// DeactivateFamily clears is_active on every version of a family
	DeactivateFamily(ctx context.Context, rootID int64) error

	// SetActive activates a single row (callers deactivate the family first)
	SetActive(ctx context.Context, id int64) error

	// SetArchived flips the archived flag on a single row
	SetArchived(ctx context.Context, id int64, archived bool) error

	// DeleteFamily removes the root and all its versions
	DeleteFamily(ctx context.Context, rootID int64) error

	// CopyProfile duplicates all messages of one profile into another,
	// returning the number of rows copied
	CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error)
}
