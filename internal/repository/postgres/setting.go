package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// PostgresSettingRepository implements the SettingRepository interface
type PostgresSettingRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(config *RepositoryConfig) repositories.SettingRepository {
	return &PostgresSettingRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Get retrieves a setting by name
func (r *PostgresSettingRepository) Get(ctx context.Context, name string) (*models.Setting, error) {
	query := fmt.Sprintf(`SELECT name, value FROM %s WHERE name = $1`, r.tables.Settings)

	var setting models.Setting
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, name).Scan(&setting.Name, &setting.Value)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("setting %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}

	return &setting, nil
}

// GetAll retrieves every setting, name ascending
func (r *PostgresSettingRepository) GetAll(ctx context.Context) ([]models.Setting, error) {
	query := fmt.Sprintf(`SELECT name, value FROM %s ORDER BY name`, r.tables.Settings)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := []models.Setting{}
	for rows.Next() {
		var setting models.Setting
		if err := rows.Scan(&setting.Name, &setting.Value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	return settings, nil
}

// Set upserts a setting value
func (r *PostgresSettingRepository) Set(ctx context.Context, name, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`, r.tables.Settings)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, name, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}

	return nil
}

// Delete removes a setting
func (r *PostgresSettingRepository) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, r.tables.Settings)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("setting %s: %w", name, domain.ErrNotFound)
	}

	return nil
}
