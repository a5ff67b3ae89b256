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

// PostgresProfileRepository implements the ProfileRepository interface
type PostgresProfileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(config *RepositoryConfig) repositories.ProfileRepository {
	return &PostgresProfileRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create creates a new profile
func (r *PostgresProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, is_active, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, r.tables.Profiles)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		profile.Name,
		profile.IsActive,
		time.Now().UTC(),
	).Scan(&profile.ID, &profile.CreatedAt)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("profile %q already exists", profile.Name),
				ResourceType: "profile",
			}
		}
		return fmt.Errorf("create profile: %w", err)
	}

	return nil
}

// GetByID retrieves a profile by ID
func (r *PostgresProfileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	query := fmt.Sprintf(`
		SELECT id, name, is_active, created_at, last_activated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Profiles)

	var profile models.Profile
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.IsActive,
		&profile.CreatedAt,
		&profile.LastActivatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("profile %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &profile, nil
}

// GetActive retrieves the single active profile
func (r *PostgresProfileRepository) GetActive(ctx context.Context) (*models.Profile, error) {
	query := fmt.Sprintf(`
		SELECT id, name, is_active, created_at, last_activated_at
		FROM %s
		WHERE is_active
		ORDER BY id
		LIMIT 1
	`, r.tables.Profiles)

	var profile models.Profile
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query).Scan(
		&profile.ID,
		&profile.Name,
		&profile.IsActive,
		&profile.CreatedAt,
		&profile.LastActivatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, domain.ErrNoActiveProfile
		}
		return nil, fmt.Errorf("get active profile: %w", err)
	}

	return &profile, nil
}

// List retrieves all profiles ordered by created_at
func (r *PostgresProfileRepository) List(ctx context.Context) ([]models.Profile, error) {
	query := fmt.Sprintf(`
		SELECT id, name, is_active, created_at, last_activated_at
		FROM %s
		ORDER BY created_at
	`, r.tables.Profiles)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var profile models.Profile
		err := rows.Scan(
			&profile.ID,
			&profile.Name,
			&profile.IsActive,
			&profile.CreatedAt,
			&profile.LastActivatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// Activate clears every other profile's active flag and sets the target's.
// A single statement keeps the invariant atomic without requiring callers
// to open a transaction.
func (r *PostgresProfileRepository) Activate(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`
		WITH cleared AS (
			UPDATE %s SET is_active = false WHERE is_active AND id <> $1
		)
		UPDATE %s SET is_active = true, last_activated_at = $2 WHERE id = $1
	`, r.tables.Profiles, r.tables.Profiles)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("activate profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Update renames a profile
func (r *PostgresProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	query := fmt.Sprintf(`
		UPDATE %s SET name = $1 WHERE id = $2
	`, r.tables.Profiles)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, profile.Name, profile.ID)
	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("profile %q already exists", profile.Name),
				ResourceType: "profile",
			}
		}
		return fmt.Errorf("update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", profile.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a profile; scoped rows go with it via FK cascade
func (r *PostgresProfileRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Profiles)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
