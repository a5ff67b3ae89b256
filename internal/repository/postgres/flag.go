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

// PostgresFlagRepository implements the FlagRepository interface
type PostgresFlagRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFlagRepository creates a new flag repository
func NewFlagRepository(config *RepositoryConfig) repositories.FlagRepository {
	return &PostgresFlagRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const flagColumns = `id, profile_id, value, active, constant, last_used_at, created_at`

func scanFlag(s scanner) (*models.Flag, error) {
	var flag models.Flag
	err := s.Scan(
		&flag.ID,
		&flag.ProfileID,
		&flag.Value,
		&flag.Active,
		&flag.Constant,
		&flag.LastUsedAt,
		&flag.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

// Create inserts a flag
func (r *PostgresFlagRepository) Create(ctx context.Context, flag *models.Flag) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, value, active, constant, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.tables.Flags)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		flag.ProfileID,
		flag.Value,
		flag.Active,
		flag.Constant,
		time.Now().UTC(),
	).Scan(&flag.ID, &flag.CreatedAt)

	if err != nil {
		if isPgForeignKeyError(err) {
			return fmt.Errorf("profile %d: %w", flag.ProfileID, domain.ErrNotFound)
		}
		return fmt.Errorf("create flag: %w", err)
	}

	return nil
}

// GetByID retrieves a flag by ID
func (r *PostgresFlagRepository) GetByID(ctx context.Context, id int64) (*models.Flag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, flagColumns, r.tables.Flags)

	flag, err := scanFlag(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("flag %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get flag: %w", err)
	}

	return flag, nil
}

// List retrieves all flags for a profile
func (r *PostgresFlagRepository) List(ctx context.Context, profileID int64) ([]models.Flag, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE profile_id = $1 ORDER BY id
	`, flagColumns, r.tables.Flags)

	return r.queryMany(ctx, query, profileID)
}

// ListActive retrieves active flags for a profile
func (r *PostgresFlagRepository) ListActive(ctx context.Context, profileID int64) ([]models.Flag, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE profile_id = $1 AND active ORDER BY id
	`, flagColumns, r.tables.Flags)

	return r.queryMany(ctx, query, profileID)
}

// Update persists value/active/constant
func (r *PostgresFlagRepository) Update(ctx context.Context, flag *models.Flag) error {
	query := fmt.Sprintf(`
		UPDATE %s SET value = $1, active = $2, constant = $3 WHERE id = $4
	`, r.tables.Flags)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		flag.Value,
		flag.Active,
		flag.Constant,
		flag.ID,
	)
	if err != nil {
		return fmt.Errorf("update flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("flag %d: %w", flag.ID, domain.ErrNotFound)
	}

	return nil
}

// Consume stamps last_used_at on every active flag and deactivates the
// non-constant ones. `active = constant` folds both rules into one write.
func (r *PostgresFlagRepository) Consume(ctx context.Context, profileID int64, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET last_used_at = $2, active = constant
		WHERE profile_id = $1 AND active
	`, r.tables.Flags)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, profileID, at)
	if err != nil {
		return 0, fmt.Errorf("consume flags: %w", err)
	}

	return result.RowsAffected(), nil
}

// Delete removes a flag
func (r *PostgresFlagRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Flags)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("flag %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// CopyProfile duplicates all flags of one profile into another
func (r *PostgresFlagRepository) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, value, active, constant, last_used_at, created_at)
		SELECT $2, value, active, constant, last_used_at, $3
		FROM %s
		WHERE profile_id = $1
	`, r.tables.Flags, r.tables.Flags)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, fromProfileID, toProfileID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("copy flags: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *PostgresFlagRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.Flag, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	flags := []models.Flag{}
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flags = append(flags, *flag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flags: %w", err)
	}

	return flags, nil
}
