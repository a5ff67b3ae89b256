package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/service/settings"
)

const oocPrefix = "[ooc]"

// defaultUserName stands in when no user profile of any kind exists.
const defaultUserName = "User"

// StateBuilder seeds the turn state before enrichment runs.
type StateBuilder struct {
	settings       *settings.Service
	systemMessages repositories.SystemMessageRepository
	contextData    repositories.ContextDataRepository
	logger         *slog.Logger
}

// NewStateBuilder creates a state builder
func NewStateBuilder(
	settings *settings.Service,
	systemMessages repositories.SystemMessageRepository,
	contextData repositories.ContextDataRepository,
	logger *slog.Logger,
) *StateBuilder {
	return &StateBuilder{
		settings:       settings,
		systemMessages: systemMessages,
		contextData:    contextData,
		logger:         logger,
	}
}

// Build seeds session, turn, window sizes, persona, user identity, and the
// OOC flag. Missing persona or user profile is not an error; the request
// builder copes with the blanks.
func (b *StateBuilder) Build(ctx context.Context, session *models.Session, turn *models.Turn) (*State, error) {
	state := NewState(session, turn)

	state.RecentTurnsCount = b.settings.Int(ctx, settings.KeyPreviousTurnsCount, settings.DefaultPreviousTurnsCount)
	state.MaxDialogueLogTurns = b.settings.Int(ctx, settings.KeyMaxDialogueLogTurns, settings.DefaultMaxDialogueLogTurns)

	personas, err := b.systemMessages.GetActiveByType(ctx, session.ProfileID, models.SystemMessagePersona)
	if err != nil {
		return nil, err
	}
	if len(personas) > 0 {
		state.Persona = personas[0].Content
		state.PersonaName = personas[0].Name
		state.PersonaID = personas[0].RootID()
		if len(personas) > 1 {
			b.logger.Warn("multiple active personas, using first", "profile_id", session.ProfileID, "persona_id", personas[0].ID)
		}
	} else {
		b.logger.Info("no active persona", "profile_id", session.ProfileID)
	}

	if err := b.resolveUser(ctx, session.ProfileID, state); err != nil {
		return nil, err
	}

	state.IsOOCRequest = IsOOC(turn.Input)
	return state, nil
}

// resolveUser fills the user-profile slot and UserName. The user
// CharacterProfile wins; an active user-profile ContextFile supplies only
// the name; otherwise the generic fallback applies.
func (b *StateBuilder) resolveUser(ctx context.Context, profileID int64, state *State) error {
	profile, err := b.contextData.GetUserProfile(ctx, profileID)
	switch {
	case err == nil:
		state.SetUserProfile(profile)
		state.UserName = profile.Name
		return nil
	case errors.Is(err, domain.ErrNotFound):
	default:
		return err
	}

	msg, err := b.systemMessages.GetUserProfileMessage(ctx, profileID)
	switch {
	case err == nil:
		state.UserName = msg.Name
		return nil
	case errors.Is(err, domain.ErrNotFound):
		state.UserName = defaultUserName
		return nil
	default:
		return err
	}
}

// IsOOC reports whether the input is an out-of-character request: the
// trimmed text begins with the [ooc] token, case-insensitively.
func IsOOC(input string) bool {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < len(oocPrefix) {
		return false
	}
	return strings.EqualFold(trimmed[:len(oocPrefix)], oocPrefix)
}
