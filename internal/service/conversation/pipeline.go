package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/llm"
	"reverie/internal/service/profile"
	"reverie/internal/service/settings"
)

// Pipeline drives a turn end to end: create the row, build and enrich the
// state, render the provider request, dispatch, persist, hand off to the
// stripper, and run post-turn housekeeping.
type Pipeline struct {
	cache        *profile.ActiveCache
	sessions     repositories.SessionRepository
	turns        repositories.TurnRepository
	contextData  repositories.ContextDataRepository
	flags        repositories.FlagRepository
	settings     *settings.Service
	builder      *StateBuilder
	orchestrator *Orchestrator
	requests     *RequestBuilder
	factory      *llm.Factory
	stripper     *Stripper
	logger       *slog.Logger
}

// NewPipeline wires the turn pipeline
func NewPipeline(
	cache *profile.ActiveCache,
	sessions repositories.SessionRepository,
	turns repositories.TurnRepository,
	contextData repositories.ContextDataRepository,
	flags repositories.FlagRepository,
	settings *settings.Service,
	builder *StateBuilder,
	orchestrator *Orchestrator,
	requests *RequestBuilder,
	factory *llm.Factory,
	stripper *Stripper,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cache:        cache,
		sessions:     sessions,
		turns:        turns,
		contextData:  contextData,
		flags:        flags,
		settings:     settings,
		builder:      builder,
		orchestrator: orchestrator,
		requests:     requests,
		factory:      factory,
		stripper:     stripper,
		logger:       logger,
	}
}

// ProcessInput runs one full turn. The turn row is created before dispatch
// and always persisted; failures are recorded on it rather than erased.
func (p *Pipeline) ProcessInput(ctx context.Context, input string) (*models.Turn, error) {
	session, turn, err := p.begin(ctx, input)
	if err != nil {
		return nil, err
	}

	state, providerName, err := p.prepare(ctx, session, turn)
	if err != nil {
		p.failTurn(ctx, turn, err)
		return turn, err
	}

	provider, err := p.factory.ForName(providerName)
	if err != nil {
		p.failTurn(ctx, turn, err)
		return turn, err
	}

	out, err := provider.GenerateContent(ctx, p.generateInput(ctx, state))
	if err != nil {
		p.failTurn(ctx, turn, err)
		return turn, err
	}

	if !out.Success {
		turn.Response = out.Text
		turn.DisplayResponse = out.Text
		turn.Accepted = false
		p.persistFailed(ctx, turn)
		return turn, &domain.ProviderError{Provider: provider.Name(), Message: out.Text}
	}

	turn.Response = out.Text
	turn.DisplayResponse = truncateAtSeparator(out.Text, p.requests.Separator())
	if err := p.turns.UpdateResponse(ctx, turn.ID, turn.Response, turn.DisplayResponse); err != nil {
		return turn, err
	}

	p.stripper.Enqueue(turn.ID)
	p.housekeep(ctx, session.ProfileID)

	p.logger.Info("turn complete",
		"turn_id", turn.ID,
		"session_id", session.ID,
		"provider", provider.Name(),
	)
	return turn, nil
}

// BuildRequest runs the pipeline through request building and stops short of
// dispatch. The caller owns the created turn row; the debug endpoint deletes
// it when done. On enrichment failure the turn is still returned so it can
// be cleaned up.
func (p *Pipeline) BuildRequest(ctx context.Context, input string) (*State, *models.Turn, error) {
	session, turn, err := p.begin(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	state, _, err := p.prepare(ctx, session, turn)
	if err != nil {
		return nil, turn, err
	}
	return state, turn, nil
}

// DeleteTurn removes a turn row; the debug endpoint uses it to roll back.
func (p *Pipeline) DeleteTurn(ctx context.Context, turnID int64) error {
	return p.turns.Delete(ctx, turnID)
}

// begin locates the active session and creates the turn row.
func (p *Pipeline) begin(ctx context.Context, input string) (*models.Session, *models.Turn, error) {
	profileID, err := p.cache.ActiveID(ctx)
	if err != nil {
		return nil, nil, err
	}

	session, err := p.sessions.GetActive(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}

	turn := &models.Turn{
		SessionID: session.ID,
		Input:     input,
		Accepted:  true,
	}
	if err := p.turns.Create(ctx, turn); err != nil {
		return nil, nil, err
	}
	return session, turn, nil
}

// prepare builds the state, runs enrichment, and renders the provider
// request. Returns the provider name the request was built for.
func (p *Pipeline) prepare(ctx context.Context, session *models.Session, turn *models.Turn) (*State, string, error) {
	state, err := p.builder.Build(ctx, session, turn)
	if err != nil {
		return nil, "", err
	}

	if err := p.orchestrator.Run(ctx, state); err != nil {
		return nil, "", err
	}

	providerName := p.settings.String(ctx, settings.KeyLLMProvider, settings.DefaultLLMProvider)
	state.ProviderName = providerName
	if err := p.requests.Build(ctx, state, providerName); err != nil {
		return nil, "", err
	}
	return state, providerName, nil
}

// generateInput assembles the dispatch envelope from whichever wire shape
// the builder populated.
func (p *Pipeline) generateInput(ctx context.Context, state *State) llm.GenerateInput {
	in := llm.GenerateInput{
		Operation: llm.OperationTurn,
		TurnID:    &state.CurrentTurn.ID,
	}
	if state.ClaudeRequest != nil {
		in.Claude = state.ClaudeRequest
		in.Model = state.ClaudeRequest.Model
		return in
	}
	in.Gemini = state.GeminiRequest
	in.Model = p.settings.String(ctx, settings.KeyGeminiModel, settings.DefaultGeminiModel)
	return in
}

// failTurn records a failure marker on the turn. It writes with a detached
// context so a cancelled request still leaves its trace.
func (p *Pipeline) failTurn(ctx context.Context, turn *models.Turn, cause error) {
	turn.Response = "Error: " + cause.Error()
	turn.DisplayResponse = turn.Response

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.turns.UpdateResponse(writeCtx, turn.ID, turn.Response, turn.DisplayResponse); err != nil {
		p.logger.Error("failed to persist turn error marker", "turn_id", turn.ID, "error", err)
	}
}

// persistFailed stores a provider-rejected turn: the error text as response,
// accepted flipped off. Stripping and housekeeping are skipped for it.
func (p *Pipeline) persistFailed(ctx context.Context, turn *models.Turn) {
	if err := p.turns.UpdateResponse(ctx, turn.ID, turn.Response, turn.DisplayResponse); err != nil {
		p.logger.Error("failed to persist provider failure", "turn_id", turn.ID, "error", err)
		return
	}
	if err := p.turns.UpdateAccepted(ctx, turn.ID, false); err != nil {
		p.logger.Error("failed to mark turn rejected", "turn_id", turn.ID, "error", err)
	}
}

// housekeep clears one-shot manual overrides and consumes non-constant
// flags. Failures are logged; the turn has already succeeded.
func (p *Pipeline) housekeep(ctx context.Context, profileID int64) {
	cleared, err := p.contextData.ProcessPostTurn(ctx, profileID)
	if err != nil {
		p.logger.Error("post-turn override clearance failed", "profile_id", profileID, "error", err)
	} else if cleared > 0 {
		p.logger.Debug("cleared one-shot overrides", "count", cleared)
	}

	consumed, err := p.flags.Consume(ctx, profileID, time.Now().UTC())
	if err != nil {
		p.logger.Error("flag consumption failed", "profile_id", profileID, "error", err)
	} else if consumed > 0 {
		p.logger.Debug("consumed flags", "count", consumed)
	}
}

// truncateAtSeparator cuts the response at the first occurrence of the
// separator for display.
func truncateAtSeparator(response, separator string) string {
	if separator == "" {
		return response
	}
	if idx := strings.Index(response, separator); idx >= 0 {
		return strings.TrimSpace(response[:idx])
	}
	return response
}
