package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/llm"
	"reverie/internal/service/settings"
)

// typeEnricher loads one context type's AlwaysOn entries plus, when the
// matrix permits, its overridden Manual entries.
type typeEnricher struct {
	contextType models.ContextType
	contextData repositories.ContextDataRepository
}

// NewTypeEnricher creates the standing-context enricher for one type
func NewTypeEnricher(t models.ContextType, contextData repositories.ContextDataRepository) Enricher {
	return &typeEnricher{contextType: t, contextData: contextData}
}

func (e *typeEnricher) Name() string {
	return strings.ToLower(string(e.contextType))
}

func (e *typeEnricher) Enrich(ctx context.Context, state *State) error {
	profileID := state.Session.ProfileID

	alwaysOn, err := e.contextData.GetAlwaysOn(ctx, profileID, &e.contextType)
	if err != nil {
		return err
	}
	state.AddContextDataRange(ptrs(alwaysOn))

	if !e.contextType.SupportsAvailability(models.AvailabilityManual) {
		return nil
	}

	manual, err := e.contextData.GetActiveManual(ctx, profileID)
	if err != nil {
		return err
	}
	for i := range manual {
		if manual[i].Type == e.contextType {
			state.AddContextData(&manual[i])
		}
	}
	return nil
}

// TriggerEnricher scans recent inputs for keyword matches and loads the
// qualifying Trigger entries.
type TriggerEnricher struct {
	contextData repositories.ContextDataRepository
	turns       repositories.TurnRepository
	settings    *settings.Service
	logger      *slog.Logger
}

// NewTriggerEnricher creates a trigger enricher
func NewTriggerEnricher(
	contextData repositories.ContextDataRepository,
	turns repositories.TurnRepository,
	settings *settings.Service,
	logger *slog.Logger,
) *TriggerEnricher {
	return &TriggerEnricher{contextData: contextData, turns: turns, settings: settings, logger: logger}
}

func (e *TriggerEnricher) Name() string { return "trigger" }

func (e *TriggerEnricher) Enrich(ctx context.Context, state *State) error {
	entries, err := e.contextData.GetTriggers(ctx, state.Session.ProfileID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	maxLookback := 0
	for i := range entries {
		if lb := triggerLookback(entries[i].TriggerLookbackTurns); lb > maxLookback {
			maxLookback = lb
		}
	}

	recent, err := e.turns.GetRecentAccepted(ctx, state.Session.ID, maxLookback, state.CurrentTurn.ID)
	if err != nil {
		return err
	}
	inputs := make([]string, len(recent))
	for i, turn := range recent {
		inputs[i] = turn.Input
	}

	additional := e.settings.String(ctx, settings.KeyTriggerScanTextAdditionalWords, "")
	now := time.Now().UTC()

	for i := range entries {
		entry := &entries[i]
		lookback := triggerLookback(entry.TriggerLookbackTurns)

		window := inputs
		if len(window) > lookback {
			window = window[len(window)-lookback:]
		}
		parts := append(append([]string{}, window...), state.CurrentTurn.Input)
		if additional != "" {
			parts = append(parts, additional)
		}
		scanText := strings.Join(parts, "\n")

		matched := KeywordMatches(scanText, entry.TriggerKeywords)
		if len(matched) < triggerMinMatch(entry.TriggerMinMatchCount) {
			continue
		}

		if err := e.contextData.IncrementTrigger(ctx, entry.ID, now); err != nil {
			return err
		}
		entry.TriggerCount++
		entry.LastTriggeredAt = &now

		if state.AddTriggered(entry) {
			e.logger.Debug("trigger matched", "id", entry.ID, "name", entry.Name, "keywords", matched)
		}
	}
	return nil
}

// SemanticDataEnricher runs the semantic retriever and merges its selections
// into the state.
type SemanticDataEnricher struct {
	retriever *SemanticRetriever
}

// NewSemanticDataEnricher creates a semantic enricher
func NewSemanticDataEnricher(retriever *SemanticRetriever) *SemanticDataEnricher {
	return &SemanticDataEnricher{retriever: retriever}
}

func (e *SemanticDataEnricher) Name() string { return "semantic" }

func (e *SemanticDataEnricher) Enrich(ctx context.Context, state *State) error {
	for t, items := range e.retriever.Retrieve(ctx, state) {
		state.AddSemanticResults(t, items)
	}
	return nil
}

// PerceptionEnricher fires one technical call per active Perception message
// and collects the outputs. It stands down for OOC turns and when disabled
// by the PerceptionEnabled setting.
type PerceptionEnricher struct {
	systemMessages repositories.SystemMessageRepository
	settings       *settings.Service
	technical      *llm.TechnicalCaller
	logger         *slog.Logger
}

// NewPerceptionEnricher creates a perception enricher
func NewPerceptionEnricher(
	systemMessages repositories.SystemMessageRepository,
	settings *settings.Service,
	technical *llm.TechnicalCaller,
	logger *slog.Logger,
) *PerceptionEnricher {
	return &PerceptionEnricher{systemMessages: systemMessages, settings: settings, technical: technical, logger: logger}
}

func (e *PerceptionEnricher) Name() string { return "perception" }

func (e *PerceptionEnricher) Enrich(ctx context.Context, state *State) error {
	if state.IsOOCRequest {
		return nil
	}
	if !e.settings.Bool(ctx, settings.KeyPerceptionEnabled, false) {
		return nil
	}

	perceptions, err := e.systemMessages.GetActiveByType(ctx, state.Session.ProfileID, models.SystemMessagePerception)
	if err != nil {
		return err
	}
	if len(perceptions) == 0 {
		return nil
	}

	model := e.settings.String(ctx, settings.KeyTechnicalModel, settings.DefaultTechnicalModel)

	g, gctx := errgroup.WithContext(ctx)
	for i := range perceptions {
		perception := perceptions[i]
		g.Go(func() error {
			output, err := e.run(gctx, state, model, perception)
			if err != nil {
				return fmt.Errorf("perception %s: %w", perception.Name, err)
			}
			state.AddPerception(fmt.Sprintf("%s: %s", perception.Name, output))
			return nil
		})
	}
	return g.Wait()
}

func (e *PerceptionEnricher) run(ctx context.Context, state *State, model string, perception models.SystemMessage) (string, error) {
	var sb strings.Builder
	if state.Persona != "" {
		fmt.Fprintf(&sb, "## Persona\n%s\n\n", state.Persona)
	}

	files, err := e.systemMessages.GetPerceptionContextFiles(ctx, state.Session.ProfileID, perception.RootID())
	if err != nil {
		return "", err
	}
	for _, file := range files {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", file.Name, file.Content)
	}

	fmt.Fprintf(&sb, "## Latest message from %s\n%s", state.UserName, state.CurrentTurn.Input)

	out, err := e.technical.Generate(ctx, llm.TechnicalRequest{
		Operation: llm.OperationPerception,
		Model:     model,
		System:    perception.Content,
		Prompt:    sb.String(),
		MaxTokens: 1024,
		TurnID:    &state.CurrentTurn.ID,
	})
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("technical call failed: %s", out.Text)
	}
	return strings.TrimSpace(out.Text), nil
}

// DialogueLogEnricher renders the long-horizon dialogue log.
type DialogueLogEnricher struct {
	turns repositories.TurnRepository
}

// NewDialogueLogEnricher creates a dialogue log enricher
func NewDialogueLogEnricher(turns repositories.TurnRepository) *DialogueLogEnricher {
	return &DialogueLogEnricher{turns: turns}
}

func (e *DialogueLogEnricher) Name() string { return "dialogue_log" }

func (e *DialogueLogEnricher) Enrich(ctx context.Context, state *State) error {
	turns, err := e.turns.GetRecentAccepted(ctx, state.Session.ID, state.MaxDialogueLogTurns, state.CurrentTurn.ID)
	if err != nil {
		return err
	}
	state.DialogueLog = renderTurns(turns, state.UserName, state.PersonaName)
	return nil
}

// TurnHistoryEnricher loads the recent-turn window and the previous
// turn/response shortcuts.
type TurnHistoryEnricher struct {
	turns repositories.TurnRepository
}

// NewTurnHistoryEnricher creates a turn history enricher
func NewTurnHistoryEnricher(turns repositories.TurnRepository) *TurnHistoryEnricher {
	return &TurnHistoryEnricher{turns: turns}
}

func (e *TurnHistoryEnricher) Name() string { return "turn_history" }

func (e *TurnHistoryEnricher) Enrich(ctx context.Context, state *State) error {
	turns, err := e.turns.GetRecentAccepted(ctx, state.Session.ID, state.RecentTurnsCount, state.CurrentTurn.ID)
	if err != nil {
		return err
	}

	state.SetRecentTurns(turns)
	if len(turns) > 0 {
		last := turns[len(turns)-1]
		state.PreviousTurn = &last
		state.PreviousResponse = last.DisplayResponse
	}
	state.RecentContext = renderTurns(turns, state.UserName, state.PersonaName)
	return nil
}

// FlagEnricher loads the profile's active flags.
type FlagEnricher struct {
	flags repositories.FlagRepository
}

// NewFlagEnricher creates a flag enricher
func NewFlagEnricher(flags repositories.FlagRepository) *FlagEnricher {
	return &FlagEnricher{flags: flags}
}

func (e *FlagEnricher) Name() string { return "flag" }

func (e *FlagEnricher) Enrich(ctx context.Context, state *State) error {
	active, err := e.flags.ListActive(ctx, state.Session.ProfileID)
	if err != nil {
		return err
	}
	state.AddFlags(active)
	return nil
}

// renderTurns formats exchanges as a speaker-labelled log, oldest first.
func renderTurns(turns []models.Turn, userName, personaName string) string {
	if len(turns) == 0 {
		return ""
	}
	if userName == "" {
		userName = defaultUserName
	}
	if personaName == "" {
		personaName = "A"
	}

	var sb strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&sb, "%s: %s\n%s: %s\n", userName, turn.Input, personaName, turn.DisplayResponse)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func ptrs(items []models.ContextData) []*models.ContextData {
	out := make([]*models.ContextData, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
