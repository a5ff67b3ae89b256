package repositories

import (
	"context"
	"time"

	"reverie/internal/domain/models"
)

// ContextDataRepository defines data access operations for context data.
// The (type, availability) matrix and the manual-override state machine are
// enforced by the service layer; the repository persists what it is given.
type ContextDataRepository interface {
	// Create inserts a record and fills in generated ID/timestamps
	Create(ctx context.Context, data *models.ContextData) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id int64) (*models.ContextData, error)

	// GetByIDs retrieves records by ID; missing ids are silently dropped
	GetByIDs(ctx context.Context, ids []int64) ([]models.ContextData, error)

	// List retrieves records for a profile, optionally filtered by type
	// and/or availability, archived excluded unless includeArchived
	List(ctx context.Context, profileID int64, t *models.ContextType, a *models.Availability, includeArchived bool) ([]models.ContextData, error)

	// GetAlwaysOn retrieves enabled, non-archived AlwaysOn records,
	// optionally restricted to one type, sort_order then id ascending
	GetAlwaysOn(ctx context.Context, profileID int64, t *models.ContextType) ([]models.ContextData, error)

	// GetActiveManual retrieves enabled Manual records with an override flag
	// set (use_next_turn_only or use_every_turn)
	GetActiveManual(ctx context.Context, profileID int64) ([]models.ContextData, error)

	// GetTriggers retrieves enabled, non-archived Trigger records
	GetTriggers(ctx context.Context, profileID int64) ([]models.ContextData, error)

	// GetUserProfile retrieves the enabled CharacterProfile with is_user set.
	// When several rows qualify the lowest id wins; domain.ErrNotFound when
	// none do.
	GetUserProfile(ctx context.Context, profileID int64) (*models.ContextData, error)

	// GetSemanticCandidates retrieves enabled, embedded Semantic records of
	// one type
	GetSemanticCandidates(ctx context.Context, profileID int64, t models.ContextType) ([]models.ContextData, error)

	// Update persists all mutable fields of the record
	Update(ctx context.Context, data *models.ContextData) error

	// UpdateOverrideState atomically writes the override tuple
	// (availability, previous_availability, use_next_turn_only,
	// use_every_turn)
	UpdateOverrideState(ctx context.Context, id int64, availability models.Availability, previous *models.Availability, useNextTurnOnly, useEveryTurn bool) error

	// SetEmbedded flips the in_vector_db flag
	SetEmbedded(ctx context.Context, id int64, embedded bool) error

	// SetArchived flips the archived flag (Restore = SetArchived false)
	SetArchived(ctx context.Context, id int64, archived bool) error

	// IncrementTrigger bumps trigger_count and stamps last_triggered_at
	IncrementTrigger(ctx context.Context, id int64, at time.Time) error

	// ProcessPostTurn clears use_next_turn_only on every enabled row that
	// has it set, restoring previous_availability unless use_every_turn
	// holds. Returns the number of rows touched.
	ProcessPostTurn(ctx context.Context, profileID int64) (int64, error)

	// Delete removes a record
	Delete(ctx context.Context, id int64) error

	// CopyProfile duplicates all records of one profile into another,
	// returning the number of rows copied. Copies are never marked embedded.
	CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error)
}
