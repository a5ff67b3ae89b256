package conversation

import (
	"context"
	"log/slog"

	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// TurnService exposes turn history management: listing, manual edits, and
// the accepted toggle that excludes a turn from future context.
type TurnService struct {
	turns     repositories.TurnRepository
	separator string
	logger    *slog.Logger
}

// NewTurnService creates a turn service
func NewTurnService(turns repositories.TurnRepository, separator string, logger *slog.Logger) *TurnService {
	return &TurnService{turns: turns, separator: separator, logger: logger}
}

// ListBySession retrieves a session's turns, oldest first.
func (s *TurnService) ListBySession(ctx context.Context, sessionID int64) ([]models.Turn, error) {
	return s.turns.ListBySession(ctx, sessionID)
}

// Get retrieves a turn.
func (s *TurnService) Get(ctx context.Context, id int64) (*models.Turn, error) {
	return s.turns.GetByID(ctx, id)
}

// ToggleReject flips the accepted flag. Rejected turns stay visible in the
// session but are excluded from turn history and dialogue log enrichment.
func (s *TurnService) ToggleReject(ctx context.Context, id int64) (*models.Turn, error) {
	turn, err := s.turns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	turn.Accepted = !turn.Accepted
	if err := s.turns.UpdateAccepted(ctx, id, turn.Accepted); err != nil {
		return nil, err
	}

	s.logger.Info("turn accept flag toggled", "turn_id", id, "accepted", turn.Accepted)
	return turn, nil
}

// EditResponse replaces the stored response and recomputes the display text
// by truncating at the response separator, matching what dispatch persists.
func (s *TurnService) EditResponse(ctx context.Context, id int64, response string) (*models.Turn, error) {
	turn, err := s.turns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	turn.Response = response
	turn.DisplayResponse = truncateAtSeparator(response, s.separator)
	if err := s.turns.UpdateResponse(ctx, id, turn.Response, turn.DisplayResponse); err != nil {
		return nil, err
	}

	return turn, nil
}

// EditInput replaces the stored user input. JSONInput is replaced only when
// the caller provides it; passing nil keeps the stored value.
func (s *TurnService) EditInput(ctx context.Context, id int64, input string, jsonInput *string) (*models.Turn, error) {
	turn, err := s.turns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	turn.Input = input
	if jsonInput != nil {
		turn.JSONInput = *jsonInput
	}
	if err := s.turns.UpdateInput(ctx, id, turn.Input, turn.JSONInput); err != nil {
		return nil, err
	}

	return turn, nil
}

// EditStripped replaces the condensed form used by dialogue log enrichment.
func (s *TurnService) EditStripped(ctx context.Context, id int64, stripped string) (*models.Turn, error) {
	turn, err := s.turns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	turn.StrippedTurn = stripped
	if err := s.turns.UpdateStripped(ctx, id, stripped); err != nil {
		return nil, err
	}

	return turn, nil
}
