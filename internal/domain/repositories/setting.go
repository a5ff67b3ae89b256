package repositories

import (
	"context"

	"reverie/internal/domain/models"
)

// SettingRepository defines data access operations for settings
type SettingRepository interface {
	// Get retrieves a setting by name; domain.ErrNotFound when absent
	Get(ctx context.Context, name string) (*models.Setting, error)

	// GetAll retrieves every setting, name ascending
	GetAll(ctx context.Context) ([]models.Setting, error)

	// Set upserts a setting value
	Set(ctx context.Context, name, value string) error

	// Delete removes a setting
	Delete(ctx context.Context, name string) error
}
