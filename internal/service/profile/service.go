// Package profile manages the top-level grouping key: profile CRUD,
// single-active activation, and duplication of a profile's owned entities.
package profile

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reverie/internal/config"
	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// Service implements profile operations.
type Service struct {
	profiles       repositories.ProfileRepository
	contextData    repositories.ContextDataRepository
	flags          repositories.FlagRepository
	systemMessages repositories.SystemMessageRepository
	txManager      repositories.TransactionManager
	cache          *ActiveCache
	logger         *slog.Logger
}

// NewService creates a profile service
func NewService(
	profiles repositories.ProfileRepository,
	contextData repositories.ContextDataRepository,
	flags repositories.FlagRepository,
	systemMessages repositories.SystemMessageRepository,
	txManager repositories.TransactionManager,
	cache *ActiveCache,
	logger *slog.Logger,
) *Service {
	return &Service{
		profiles:       profiles,
		contextData:    contextData,
		flags:          flags,
		systemMessages: systemMessages,
		txManager:      txManager,
		cache:          cache,
		logger:         logger,
	}
}

// CreateRequest carries profile creation input.
type CreateRequest struct {
	Name string `json:"name"`
}

// Validate implements request validation
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, config.MaxProfileNameLength)),
	)
}

// Create creates an inactive profile.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	profile := &models.Profile{Name: req.Name}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// Get retrieves a profile.
func (s *Service) Get(ctx context.Context, id int64) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// GetActive retrieves the active profile row.
func (s *Service) GetActive(ctx context.Context) (*models.Profile, error) {
	return s.profiles.GetActive(ctx)
}

// ActiveID returns the cached active profile id.
func (s *Service) ActiveID(ctx context.Context) (int64, error) {
	return s.cache.ActiveID(ctx)
}

// List retrieves all profiles.
func (s *Service) List(ctx context.Context) ([]models.Profile, error) {
	return s.profiles.List(ctx)
}

// Activate makes the target the single active profile and invalidates the
// cache.
func (s *Service) Activate(ctx context.Context, id int64) error {
	if err := s.profiles.Activate(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate()
	s.logger.Info("profile activated", "profile_id", id)
	return nil
}

// Rename updates the profile name.
func (s *Service) Rename(ctx context.Context, id int64, name string) (*models.Profile, error) {
	if err := validation.Validate(name, validation.Required, validation.Length(1, config.MaxProfileNameLength)); err != nil {
		return nil, &domain.ValidationError{Message: "name: " + err.Error()}
	}

	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile.Name = name
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// Duplicate copies a profile and its owned entities (context data, flags,
// active system messages) into a new inactive profile. Sessions and turns
// stay behind; copied context data is never marked embedded.
func (s *Service) Duplicate(ctx context.Context, id int64) (*models.Profile, error) {
	source, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	copy := &models.Profile{Name: source.Name + " (copy)"}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.Create(ctx, copy); err != nil {
			return err
		}

		copied, err := s.contextData.CopyProfile(ctx, source.ID, copy.ID)
		if err != nil {
			return fmt.Errorf("copy context data: %w", err)
		}

		flagsCopied, err := s.flags.CopyProfile(ctx, source.ID, copy.ID)
		if err != nil {
			return fmt.Errorf("copy flags: %w", err)
		}

		messagesCopied, err := s.systemMessages.CopyProfile(ctx, source.ID, copy.ID)
		if err != nil {
			return fmt.Errorf("copy system messages: %w", err)
		}

		s.logger.Info("profile duplicated",
			"source_id", source.ID,
			"copy_id", copy.ID,
			"context_data", copied,
			"flags", flagsCopied,
			"system_messages", messagesCopied,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return copy, nil
}

// Delete removes a profile and everything scoped to it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.profiles.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate()
	s.logger.Info("profile deleted", "profile_id", id)
	return nil
}
