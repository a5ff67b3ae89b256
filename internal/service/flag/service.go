// Package flag manages short per-profile directives injected into requests.
package flag

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reverie/internal/config"
	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// Service implements flag operations.
type Service struct {
	flags  repositories.FlagRepository
	logger *slog.Logger
}

// NewService creates a flag service
func NewService(flags repositories.FlagRepository, logger *slog.Logger) *Service {
	return &Service{flags: flags, logger: logger}
}

// CreateRequest carries flag creation input.
type CreateRequest struct {
	ProfileID int64  `json:"profileId"`
	Value     string `json:"value"`
	Constant  bool   `json:"constant"`
}

// Validate implements request validation
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.Value, validation.Required, validation.Length(1, config.MaxFlagValueLength)),
	)
}

// Create inserts an active flag.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Flag, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	flag := &models.Flag{
		ProfileID: req.ProfileID,
		Value:     req.Value,
		Active:    true,
		Constant:  req.Constant,
	}
	if err := s.flags.Create(ctx, flag); err != nil {
		return nil, err
	}

	return flag, nil
}

// Get retrieves a flag.
func (s *Service) Get(ctx context.Context, id int64) (*models.Flag, error) {
	return s.flags.GetByID(ctx, id)
}

// List retrieves all flags for a profile.
func (s *Service) List(ctx context.Context, profileID int64) ([]models.Flag, error) {
	return s.flags.List(ctx, profileID)
}

// UpdateRequest carries the fields an update may change. Nil fields keep
// their current value.
type UpdateRequest struct {
	Value    *string `json:"value"`
	Active   *bool   `json:"active"`
	Constant *bool   `json:"constant"`
}

// Update applies non-nil fields to the flag.
func (s *Service) Update(ctx context.Context, id int64, req *UpdateRequest) (*models.Flag, error) {
	if req.Value != nil {
		if err := validation.Validate(*req.Value, validation.Required, validation.Length(1, config.MaxFlagValueLength)); err != nil {
			return nil, &domain.ValidationError{Message: "value: " + err.Error()}
		}
	}

	flag, err := s.flags.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Value != nil {
		flag.Value = *req.Value
	}
	if req.Active != nil {
		flag.Active = *req.Active
	}
	if req.Constant != nil {
		flag.Constant = *req.Constant
	}

	if err := s.flags.Update(ctx, flag); err != nil {
		return nil, err
	}

	return flag, nil
}

// Delete removes a flag.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.flags.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("flag deleted", "flag_id", id)
	return nil
}
