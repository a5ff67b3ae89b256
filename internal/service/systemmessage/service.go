// Package systemmessage manages versioned prompt fragments. Editing a
// message never mutates its row: each edit inserts a new version under the
// family root and atomically shifts the active flag onto it, so any earlier
// version can be restored.
package systemmessage

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

// Service implements system message operations.
type Service struct {
	messages  repositories.SystemMessageRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewService creates a system message service
func NewService(messages repositories.SystemMessageRepository, txManager repositories.TransactionManager, logger *slog.Logger) *Service {
	return &Service{messages: messages, txManager: txManager, logger: logger}
}

// CreateRequest carries creation input for a new message family.
type CreateRequest struct {
	ProfileID             int64                    `json:"profileId"`
	Name                  string                   `json:"name"`
	Content               string                   `json:"content"`
	Type                  models.SystemMessageType `json:"type"`
	IsActive              bool                     `json:"isActive"`
	AttachedToPersonas    []int64                  `json:"attachedToPersonas"`
	AttachedToPerceptions []int64                  `json:"attachedToPerceptions"`
	IsUserProfile         bool                     `json:"isUserProfile"`
}

// Validate implements request validation
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, config.MaxSystemMessageNameLength)),
		validation.Field(&r.Type, validation.Required, validation.By(func(interface{}) error {
			if !r.Type.Valid() {
				return fmt.Errorf("unknown type %q", r.Type)
			}
			return nil
		})),
	)
}

// Create inserts a new version-1 family root.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.SystemMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	msg := &models.SystemMessage{
		ProfileID:             req.ProfileID,
		Name:                  req.Name,
		Content:               req.Content,
		Type:                  req.Type,
		IsActive:              req.IsActive,
		Version:               1,
		AttachedToPersonas:    req.AttachedToPersonas,
		AttachedToPerceptions: req.AttachedToPerceptions,
		IsUserProfile:         req.IsUserProfile,
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// UpdateRequest carries the fields an edit may change. Nil fields keep the
// current version's value.
type UpdateRequest struct {
	Name                  *string  `json:"name"`
	Content               *string  `json:"content"`
	AttachedToPersonas    *[]int64 `json:"attachedToPersonas"`
	AttachedToPerceptions *[]int64 `json:"attachedToPerceptions"`
	IsUserProfile         *bool    `json:"isUserProfile"`
}

// Update inserts a new version of the edited message's family and activates
// it, deactivating every sibling in the same transaction.
func (s *Service) Update(ctx context.Context, id int64, req *UpdateRequest) (*models.SystemMessage, error) {
	current, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rootID := current.RootID()

	next := &models.SystemMessage{
		ProfileID:             current.ProfileID,
		Name:                  current.Name,
		Content:               current.Content,
		Type:                  current.Type,
		IsActive:              true,
		ParentID:              &rootID,
		AttachedToPersonas:    current.AttachedToPersonas,
		AttachedToPerceptions: current.AttachedToPerceptions,
		IsUserProfile:         current.IsUserProfile,
	}

	if req.Name != nil {
		next.Name = *req.Name
	}
	if req.Content != nil {
		next.Content = *req.Content
	}
	if req.AttachedToPersonas != nil {
		next.AttachedToPersonas = *req.AttachedToPersonas
	}
	if req.AttachedToPerceptions != nil {
		next.AttachedToPerceptions = *req.AttachedToPerceptions
	}
	if req.IsUserProfile != nil {
		next.IsUserProfile = *req.IsUserProfile
	}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		maxVersion, err := s.messages.MaxVersion(ctx, rootID)
		if err != nil {
			return err
		}
		next.Version = maxVersion + 1

		if err := s.messages.DeactivateFamily(ctx, rootID); err != nil {
			return err
		}

		return s.messages.Create(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	return next, nil
}

// Get retrieves a message.
func (s *Service) Get(ctx context.Context, id int64) (*models.SystemMessage, error) {
	return s.messages.GetByID(ctx, id)
}

// List retrieves a profile's messages.
func (s *Service) List(ctx context.Context, profileID int64, includeArchived bool) ([]models.SystemMessage, error) {
	return s.messages.List(ctx, profileID, includeArchived)
}

// GetVersions retrieves every version of the message's family, oldest first.
func (s *Service) GetVersions(ctx context.Context, id int64) ([]models.SystemMessage, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.messages.GetVersions(ctx, msg.RootID())
}

// SetActiveVersion activates the target version and deactivates its
// siblings.
func (s *Service) SetActiveVersion(ctx context.Context, id int64) (*models.SystemMessage, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.messages.DeactivateFamily(ctx, msg.RootID()); err != nil {
			return err
		}
		return s.messages.SetActive(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	msg.IsActive = true
	return msg, nil
}

// Archive flags a message version as archived.
func (s *Service) Archive(ctx context.Context, id int64) error {
	return s.messages.SetArchived(ctx, id, true)
}

// Restore clears the archived flag.
func (s *Service) Restore(ctx context.Context, id int64) error {
	return s.messages.SetArchived(ctx, id, false)
}

// Delete removes the message's whole family.
func (s *Service) Delete(ctx context.Context, id int64) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}

	rootID := msg.RootID()
	if err := s.messages.DeleteFamily(ctx, rootID); err != nil {
		return err
	}

	s.logger.Info("system message family deleted", "root_id", rootID)
	return nil
}
