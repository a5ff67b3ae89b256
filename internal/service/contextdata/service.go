// Package contextdata owns the business rules around ContextData records:
// the (type, availability) permission matrix, the manual-override state
// machine, embedding bookkeeping, and the unembed-on-change protocol.
package contextdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reverie/internal/config"
	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/llm"
	"reverie/internal/vector"
)

// Service implements context data operations.
type Service struct {
	data      repositories.ContextDataRepository
	store     vector.Store
	embedder  llm.Embedder
	counter   llm.TokenCounter
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewService creates a context data service
func NewService(
	data repositories.ContextDataRepository,
	store vector.Store,
	embedder llm.Embedder,
	counter llm.TokenCounter,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *Service {
	return &Service{
		data:      data,
		store:     store,
		embedder:  embedder,
		counter:   counter,
		txManager: txManager,
		logger:    logger,
	}
}

// CreateRequest carries creation input.
type CreateRequest struct {
	ProfileID            int64               `json:"profileId"`
	Name                 string              `json:"name"`
	Content              string              `json:"content"`
	Type                 models.ContextType  `json:"type"`
	Availability         models.Availability `json:"availability"`
	SortOrder            int                 `json:"sortOrder"`
	TriggerKeywords      string              `json:"triggerKeywords"`
	TriggerLookbackTurns int                 `json:"triggerLookbackTurns"`
	TriggerMinMatchCount int                 `json:"triggerMinMatchCount"`
	Tags                 []string            `json:"tags"`
	SourceSessionID      *int64              `json:"sourceSessionId"`
	Speaker              string              `json:"speaker"`
	Path                 string              `json:"path"`
	NonverbalBehavior    string              `json:"nonverbalBehavior"`
	IsUser               bool                `json:"isUser"`
}

// Validate implements request validation
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, config.MaxContextNameLength)),
		validation.Field(&r.Content, validation.Required),
	)
}

// Create inserts a record after checking the availability matrix.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.ContextData, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	if !req.Type.Valid() {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown context type %q", req.Type)}
	}
	if !req.Availability.Valid() {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown availability %q", req.Availability)}
	}
	if !req.Type.SupportsAvailability(req.Availability) {
		return nil, &domain.InvalidCombinationError{
			Type:         string(req.Type),
			Availability: string(req.Availability),
		}
	}

	data := &models.ContextData{
		ProfileID:            req.ProfileID,
		Name:                 req.Name,
		Content:              req.Content,
		Type:                 req.Type,
		Availability:         req.Availability,
		IsEnabled:            true,
		IsArchived:           req.Availability == models.AvailabilityArchive,
		SortOrder:            req.SortOrder,
		TriggerKeywords:      req.TriggerKeywords,
		TriggerLookbackTurns: req.TriggerLookbackTurns,
		TriggerMinMatchCount: req.TriggerMinMatchCount,
		Tags:                 req.Tags,
		SourceSessionID:      req.SourceSessionID,
		Speaker:              req.Speaker,
		Path:                 req.Path,
		NonverbalBehavior:    req.NonverbalBehavior,
		IsUser:               req.IsUser,
	}

	s.countTokens(data)

	if err := s.data.Create(ctx, data); err != nil {
		return nil, err
	}

	return data, nil
}

// UpdateRequest carries the editable fields. Availability is deliberately
// absent: availability moves only through ChangeAvailability or the
// override operations, which own the snapshot and unembed rules.
type UpdateRequest struct {
	Name                 *string   `json:"name"`
	Content              *string   `json:"content"`
	IsEnabled            *bool     `json:"isEnabled"`
	SortOrder            *int      `json:"sortOrder"`
	TriggerKeywords      *string   `json:"triggerKeywords"`
	TriggerLookbackTurns *int      `json:"triggerLookbackTurns"`
	TriggerMinMatchCount *int      `json:"triggerMinMatchCount"`
	Tags                 *[]string `json:"tags"`
	Speaker              *string   `json:"speaker"`
	Path                 *string   `json:"path"`
	NonverbalBehavior    *string   `json:"nonverbalBehavior"`
	IsUser               *bool     `json:"isUser"`
}

// Update edits a record in place. A content change refreshes the token
// count; an embedded record with changed content keeps its stale vector
// until the next Embed call.
func (s *Service) Update(ctx context.Context, id int64, req *UpdateRequest) (*models.ContextData, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if req.Name != nil {
		data.Name = *req.Name
	}
	if req.Content != nil && *req.Content != data.Content {
		data.Content = *req.Content
		contentChanged = true
	}
	if req.IsEnabled != nil {
		data.IsEnabled = *req.IsEnabled
	}
	if req.SortOrder != nil {
		data.SortOrder = *req.SortOrder
	}
	if req.TriggerKeywords != nil {
		data.TriggerKeywords = *req.TriggerKeywords
	}
	if req.TriggerLookbackTurns != nil {
		data.TriggerLookbackTurns = *req.TriggerLookbackTurns
	}
	if req.TriggerMinMatchCount != nil {
		data.TriggerMinMatchCount = *req.TriggerMinMatchCount
	}
	if req.Tags != nil {
		data.Tags = *req.Tags
	}
	if req.Speaker != nil {
		data.Speaker = *req.Speaker
	}
	if req.Path != nil {
		data.Path = *req.Path
	}
	if req.NonverbalBehavior != nil {
		data.NonverbalBehavior = *req.NonverbalBehavior
	}
	if req.IsUser != nil {
		data.IsUser = *req.IsUser
	}

	if data.Name == "" || data.Content == "" {
		return nil, &domain.ValidationError{Message: "name and content must not be empty"}
	}

	if contentChanged {
		s.countTokens(data)
		if data.InVectorDB {
			s.logger.Info("embedded record content changed; re-embed to refresh its vector", "id", data.ID)
		}
	}

	if err := s.data.Update(ctx, data); err != nil {
		return nil, err
	}

	return data, nil
}

// Get retrieves a record.
func (s *Service) Get(ctx context.Context, id int64) (*models.ContextData, error) {
	return s.data.GetByID(ctx, id)
}

// List retrieves a profile's records with optional filters.
func (s *Service) List(ctx context.Context, profileID int64, t *models.ContextType, a *models.Availability, includeArchived bool) ([]models.ContextData, error) {
	return s.data.List(ctx, profileID, t, a, includeArchived)
}

// Delete removes a record, tearing down its embedding first when present.
func (s *Service) Delete(ctx context.Context, id int64) error {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if data.InVectorDB {
		collection, err := vector.CollectionFor(data.Type)
		if err == nil {
			if err := s.store.Delete(ctx, collection, data.ID); err != nil {
				s.logger.Warn("vector delete failed during record delete", "id", id, "error", err)
			}
		}
	}

	return s.data.Delete(ctx, id)
}

// SetUseNextTurn arms the one-shot manual override. The pre-override
// availability is snapshotted only on entry; re-arming an already-Manual
// record keeps the original snapshot.
func (s *Service) SetUseNextTurn(ctx context.Context, id int64) (*models.ContextData, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data.Availability != models.AvailabilityManual {
		snapshot := data.Availability
		data.PreviousAvailability = &snapshot
		data.Availability = models.AvailabilityManual
	}
	data.UseNextTurnOnly = true

	if err := s.data.UpdateOverrideState(ctx, data.ID, data.Availability, data.PreviousAvailability, data.UseNextTurnOnly, data.UseEveryTurn); err != nil {
		return nil, err
	}

	return data, nil
}

// SetUseEveryTurn arms or disarms the persistent manual override. Disarming
// restores the snapshotted availability unless the one-shot flag still holds
// the record in Manual.
func (s *Service) SetUseEveryTurn(ctx context.Context, id int64, enabled bool) (*models.ContextData, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if enabled {
		if data.Availability != models.AvailabilityManual {
			snapshot := data.Availability
			data.PreviousAvailability = &snapshot
			data.Availability = models.AvailabilityManual
		}
		data.UseEveryTurn = true
	} else {
		data.UseEveryTurn = false
		if !data.UseNextTurnOnly && data.PreviousAvailability != nil {
			data.Availability = *data.PreviousAvailability
			data.PreviousAvailability = nil
		}
	}

	if err := s.data.UpdateOverrideState(ctx, data.ID, data.Availability, data.PreviousAvailability, data.UseNextTurnOnly, data.UseEveryTurn); err != nil {
		return nil, err
	}

	return data, nil
}

// ClearManualFlags drops both override flags and restores the snapshotted
// availability.
func (s *Service) ClearManualFlags(ctx context.Context, id int64) (*models.ContextData, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data.UseNextTurnOnly = false
	data.UseEveryTurn = false
	if data.PreviousAvailability != nil {
		data.Availability = *data.PreviousAvailability
		data.PreviousAvailability = nil
	}

	if err := s.data.UpdateOverrideState(ctx, data.ID, data.Availability, data.PreviousAvailability, data.UseNextTurnOnly, data.UseEveryTurn); err != nil {
		return nil, err
	}

	return data, nil
}

// AvailabilityChangeResult reports the outcome of a ChangeAvailability call.
type AvailabilityChangeResult struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	OldAvailability models.Availability `json:"oldAvailability"`
	NewAvailability models.Availability `json:"newAvailability"`
	RequiresUnembed bool                `json:"requiresUnembed"`
	WasEmbedded     bool                `json:"wasEmbedded"`
	WasUnembedded   bool                `json:"wasUnembedded"`
}

// ChangeAvailability hard-resets a record's availability: both override
// flags and the snapshot are cleared. Moving an embedded record anywhere but
// Semantic deletes its vector first, and only with the caller's explicit
// confirmation; without it the call is refused and the record is unchanged.
func (s *Service) ChangeAvailability(ctx context.Context, id int64, target models.Availability, confirmUnembed bool) (*AvailabilityChangeResult, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &AvailabilityChangeResult{
		OldAvailability: data.Availability,
		NewAvailability: target,
		WasEmbedded:     data.InVectorDB,
	}

	if !target.Valid() {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown availability %q", target)}
	}
	if !data.Type.SupportsAvailability(target) {
		return nil, &domain.InvalidCombinationError{
			Type:         string(data.Type),
			Availability: string(target),
		}
	}

	needsUnembed := data.InVectorDB && target != models.AvailabilitySemantic
	result.RequiresUnembed = needsUnembed

	if needsUnembed && !confirmUnembed {
		result.Success = false
		result.Message = "record is embedded; confirm unembedding to change availability"
		return result, nil
	}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if needsUnembed {
			collection, err := vector.CollectionFor(data.Type)
			if err != nil {
				return err
			}
			if err := s.store.Delete(ctx, collection, data.ID); err != nil {
				return fmt.Errorf("unembed record %d: %w", data.ID, err)
			}
			if err := s.data.SetEmbedded(ctx, data.ID, false); err != nil {
				return err
			}
			result.WasUnembedded = true
		}

		if err := s.data.UpdateOverrideState(ctx, data.ID, target, nil, false, false); err != nil {
			return err
		}

		archived := target == models.AvailabilityArchive
		if archived != data.IsArchived {
			return s.data.SetArchived(ctx, data.ID, archived)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.Message = fmt.Sprintf("availability changed from %s to %s", result.OldAvailability, target)
	return result, nil
}

// Embed computes the record's embedding and upserts it into the type's
// collection. Only Semantic records can be embedded.
func (s *Service) Embed(ctx context.Context, id int64) (*models.ContextData, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data.Availability != models.AvailabilitySemantic {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("record availability is %s; only Semantic records can be embedded", data.Availability),
		}
	}

	collection, err := vector.CollectionFor(data.Type)
	if err != nil {
		return nil, &domain.InvalidCombinationError{
			Type:         string(data.Type),
			Availability: string(models.AvailabilitySemantic),
		}
	}

	vecs, err := s.embedder.EmbedBatch(ctx, []string{data.Content})
	if err != nil {
		return nil, fmt.Errorf("embed record %d: %w", id, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed record %d: expected 1 vector, got %d", id, len(vecs))
	}

	payload := vector.Payload{
		DBPK:      data.ID,
		ProfileID: data.ProfileID,
		EntryType: string(data.Type),
	}
	if err := s.store.Upsert(ctx, collection, data.ID, vecs[0], payload); err != nil {
		return nil, fmt.Errorf("upsert record %d: %w", id, err)
	}

	if err := s.data.SetEmbedded(ctx, data.ID, true); err != nil {
		return nil, err
	}

	data.InVectorDB = true
	return data, nil
}

// Archive moves a record to the Archive availability.
func (s *Service) Archive(ctx context.Context, id int64, confirmUnembed bool) (*AvailabilityChangeResult, error) {
	return s.ChangeAvailability(ctx, id, models.AvailabilityArchive, confirmUnembed)
}

// Restore un-archives a record back to AlwaysOn, the only availability every
// type supports.
func (s *Service) Restore(ctx context.Context, id int64) (*models.ContextData, error) {
	data, err := s.data.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !data.IsArchived && data.Availability != models.AvailabilityArchive {
		return data, nil
	}

	if err := s.data.UpdateOverrideState(ctx, data.ID, models.AvailabilityAlwaysOn, nil, false, false); err != nil {
		return nil, err
	}
	if err := s.data.SetArchived(ctx, data.ID, false); err != nil {
		return nil, err
	}

	return s.data.GetByID(ctx, id)
}

// countTokens refreshes the token count in place; counting failures leave
// the count unset rather than failing the write.
func (s *Service) countTokens(data *models.ContextData) {
	if s.counter == nil {
		return
	}

	count, err := s.counter.CountTokens(data.Content)
	if err != nil {
		s.logger.Warn("token count failed", "id", data.ID, "error", err)
		return
	}

	now := time.Now().UTC()
	data.TokenCount = &count
	data.TokenCountUpdatedAt = &now
}
