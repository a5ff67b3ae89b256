// Package session manages numbered conversation scopes within a profile.
package session

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

// Service implements session operations.
type Service struct {
	sessions repositories.SessionRepository
	logger   *slog.Logger
}

// NewService creates a session service
func NewService(sessions repositories.SessionRepository, logger *slog.Logger) *Service {
	return &Service{sessions: sessions, logger: logger}
}

// CreateRequest carries session creation input.
type CreateRequest struct {
	ProfileID int64  `json:"profileId"`
	Name      string `json:"name"`
	Activate  bool   `json:"activate"`
}

// Validate implements request validation
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.Name, validation.Length(0, config.MaxSessionNameLength)),
	)
}

// Create creates a session with the next monotonic number. When Activate is
// set the new session also becomes the profile's active one.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	session := &models.Session{ProfileID: req.ProfileID, Name: req.Name}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	if session.Name == "" {
		session.Name = fmt.Sprintf("Session %d", session.Number)
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, err
		}
	}

	if req.Activate {
		if err := s.sessions.Activate(ctx, session.ID); err != nil {
			return nil, err
		}
		session.IsActive = true
	}

	return session, nil
}

// Get retrieves a session.
func (s *Service) Get(ctx context.Context, id int64) (*models.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// GetActive retrieves the profile's active session.
func (s *Service) GetActive(ctx context.Context, profileID int64) (*models.Session, error) {
	return s.sessions.GetActive(ctx, profileID)
}

// List retrieves all sessions for a profile, newest first.
func (s *Service) List(ctx context.Context, profileID int64) ([]models.Session, error) {
	return s.sessions.List(ctx, profileID)
}

// Activate makes the target the profile's single active session.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.sessions.Activate(ctx, id)
}

// Rename updates the session name.
func (s *Service) Rename(ctx context.Context, id int64, name string) (*models.Session, error) {
	if err := validation.Validate(name, validation.Required, validation.Length(1, config.MaxSessionNameLength)); err != nil {
		return nil, &domain.ValidationError{Message: "name: " + err.Error()}
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Name = name
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Delete removes a session and its turns.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("session deleted", "session_id", id)
	return nil
}
