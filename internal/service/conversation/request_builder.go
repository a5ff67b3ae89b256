package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/service/settings"
)

// semanticRenderOrder fixes the order of the per-type retrieved groups.
var semanticRenderOrder = []models.ContextType{
	models.ContextTypeQuote,
	models.ContextTypePersonaVoiceSample,
	models.ContextTypeMemory,
	models.ContextTypeInsight,
}

// RequestBuilder renders an enriched state into the selected provider's wire
// shape. One state can produce either shape.
type RequestBuilder struct {
	settings       *settings.Service
	systemMessages repositories.SystemMessageRepository
	separator      string
}

// NewRequestBuilder creates a request builder. separator is the response
// separator the model is instructed to emit and the pipeline truncates at.
func NewRequestBuilder(settings *settings.Service, systemMessages repositories.SystemMessageRepository, separator string) *RequestBuilder {
	return &RequestBuilder{settings: settings, systemMessages: systemMessages, separator: separator}
}

// Separator returns the configured response separator.
func (b *RequestBuilder) Separator() string { return b.separator }

// Build assembles the provider request for the named provider and stores it
// on the state.
func (b *RequestBuilder) Build(ctx context.Context, state *State, provider string) error {
	system, err := b.systemInstruction(ctx, state)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini":
		state.GeminiRequest = b.geminiRequest(ctx, state, system)
	case "claude":
		state.ClaudeRequest = b.claudeRequest(ctx, state, system)
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	return nil
}

// systemInstruction performs the provider-agnostic assembly: persona,
// attached files, perceptions, standing context, triggered and retrieved
// items, voice samples, flags, technical messages, and the separator
// instruction. OOC turns suppress perceptions and the triggered/retrieved
// blocks and lead with an out-of-character directive.
func (b *RequestBuilder) systemInstruction(ctx context.Context, state *State) (string, error) {
	var blocks []string
	add := func(block string) {
		if block != "" {
			blocks = append(blocks, block)
		}
	}

	if state.IsOOCRequest {
		add(b.oocInstruction(state))
	}

	add(strings.TrimSpace(state.Persona))

	if state.PersonaID != 0 {
		files, err := b.systemMessages.GetAttachedContextFiles(ctx, state.Session.ProfileID, state.PersonaID)
		if err != nil {
			return "", err
		}
		for _, file := range files {
			add(fmt.Sprintf("## %s\n%s", file.Name, file.Content))
		}
	}

	if !state.IsOOCRequest {
		add(renderPerceptions(state.Perceptions()))
	}

	triggered := state.Triggered()
	triggeredIDs := idSet(triggered)
	semantic := state.Semantic()

	add(renderProfiles(state.UserProfile(), exclude(state.CharacterProfiles(), triggeredIDs)))
	add(renderKnowledge(exclude(append(state.Memories(), state.Insights()...), triggeredIDs, semanticIDs(semantic))))
	add(renderSection("## Additional Context", exclude(state.Data(), triggeredIDs)))

	if !state.IsOOCRequest {
		add(renderSection("## Triggered Context", triggered))
		add(renderSemantic(semantic))
	}

	add(renderVoiceSamples(exclude(state.VoiceSamples(), semanticIDs(semantic))))
	add(renderFlags(state.Flags()))

	technical, err := b.systemMessages.GetActiveByType(ctx, state.Session.ProfileID, models.SystemMessageTechnical)
	if err != nil {
		return "", err
	}
	for _, msg := range technical {
		add(strings.TrimSpace(msg.Content))
	}

	add(b.separatorInstruction(state))

	return strings.Join(blocks, "\n\n"), nil
}

func (b *RequestBuilder) oocInstruction(state *State) string {
	persona := state.PersonaName
	if persona == "" {
		persona = "the persona"
	}
	return fmt.Sprintf("## Out of Character\n"+
		"The user is speaking out of character. Answer directly as the assistant, not as %s. Do not roleplay.",
		persona)
}

func (b *RequestBuilder) separatorInstruction(state *State) string {
	if b.separator == "" {
		return ""
	}
	userName := state.UserName
	if userName == "" {
		userName = defaultUserName
	}
	return fmt.Sprintf("## Response Format\n"+
		"Write your reply first. End it with the separator line %s. Anything after the separator is never shown to %s.",
		b.separator, userName)
}

func (b *RequestBuilder) geminiRequest(ctx context.Context, state *State, system string) *models.GeminiRequest {
	req := &models.GeminiRequest{
		Contents: b.contents(state),
	}
	if system != "" {
		req.SystemInstruction = &models.GeminiContent{Parts: []models.GeminiPart{{Text: system}}}
	}

	temperature := b.settings.Float(ctx, settings.KeyTemperature, settings.DefaultTemperature)
	config := &models.GeminiGenerationConfig{
		MaxOutputTokens: b.settings.Int(ctx, settings.KeyMaxResponseTokens, settings.DefaultMaxResponseTokens),
		Temperature:     &temperature,
	}

	level := b.settings.String(ctx, settings.KeyGeminiThinkingLevel, "")
	includeThoughts := b.settings.Bool(ctx, settings.KeyGeminiIncludeThoughts, false)
	if level != "" || includeThoughts {
		config.ThinkingConfig = &models.GeminiThinkingConfig{
			ThinkingLevel:   level,
			IncludeThoughts: includeThoughts,
		}
	}

	req.GenerationConfig = config
	return req
}

func (b *RequestBuilder) claudeRequest(ctx context.Context, state *State, system string) *models.ClaudeRequest {
	temperature := b.settings.Float(ctx, settings.KeyTemperature, settings.DefaultTemperature)
	req := &models.ClaudeRequest{
		Model:       b.settings.String(ctx, settings.KeyClaudeModel, settings.DefaultClaudeModel),
		MaxTokens:   b.settings.Int(ctx, settings.KeyMaxResponseTokens, settings.DefaultMaxResponseTokens),
		Temperature: &temperature,
		Messages:    b.messages(state),
	}
	if system != "" {
		req.System = system
	}

	if budget := b.settings.Int(ctx, settings.KeyClaudeThinkingBudget, 0); budget > 0 {
		req.Thinking = &models.ClaudeThinking{Type: "enabled", BudgetTokens: budget}
	}
	return req
}

// contents renders the Gemini message sequence: one user/model pair per
// recent turn, oldest first, then the current input as the final user block.
func (b *RequestBuilder) contents(state *State) []models.GeminiContent {
	turns := state.RecentTurns()
	contents := make([]models.GeminiContent, 0, 2*len(turns)+1)
	for _, turn := range turns {
		contents = append(contents,
			models.GeminiContent{Role: models.RoleUser, Parts: []models.GeminiPart{{Text: turn.Input}}},
			models.GeminiContent{Role: models.RoleModel, Parts: []models.GeminiPart{{Text: turnResponse(turn)}}},
		)
	}
	return append(contents, models.GeminiContent{
		Role:  models.RoleUser,
		Parts: []models.GeminiPart{{Text: state.CurrentTurn.Input}},
	})
}

// messages is the Claude rendering of the same sequence.
func (b *RequestBuilder) messages(state *State) []models.ClaudeMessage {
	turns := state.RecentTurns()
	messages := make([]models.ClaudeMessage, 0, 2*len(turns)+1)
	for _, turn := range turns {
		messages = append(messages,
			models.ClaudeMessage{Role: models.RoleUser, Content: turn.Input},
			models.ClaudeMessage{Role: models.RoleAssistant, Content: turnResponse(turn)},
		)
	}
	return append(messages, models.ClaudeMessage{Role: models.RoleUser, Content: state.CurrentTurn.Input})
}

// turnResponse prefers the raw response so the model keeps seeing what it
// wrote after the separator; display truncation is for humans.
func turnResponse(turn models.Turn) string {
	if turn.Response != "" {
		return turn.Response
	}
	return turn.DisplayResponse
}

func renderPerceptions(perceptions []string) string {
	if len(perceptions) == 0 {
		return ""
	}
	return "## Perceptions\n" + strings.Join(perceptions, "\n")
}

// renderProfiles renders the character profile section, user profile first.
func renderProfiles(userProfile *models.ContextData, others []*models.ContextData) string {
	items := make([]*models.ContextData, 0, len(others)+1)
	if userProfile != nil {
		items = append(items, userProfile)
	}
	items = append(items, others...)
	return renderSection("## Character Profiles", items)
}

// renderKnowledge renders standing memories and insights, sortOrder then id
// ascending.
func renderKnowledge(items []*models.ContextData) string {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
	return renderSection("## Memories and Insights", items)
}

func renderSection(header string, items []*models.ContextData) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(header)
	for _, item := range items {
		fmt.Fprintf(&sb, "\n\n### %s:\n%s", item.Name, item.Content)
	}
	return sb.String()
}

// renderSemantic renders the retrieved groups in canonical type order. Each
// item is headed Dynamic or Canon by origin, numbered within its type.
func renderSemantic(groups map[models.ContextType][]*models.ContextData) string {
	var sb strings.Builder
	for _, t := range semanticRenderOrder {
		items := groups[t]
		if len(items) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## Retrieved %s Context", t)
		for i, item := range items {
			origin := "Canon"
			if item.IsDynamic() {
				origin = "Dynamic"
			}
			fmt.Fprintf(&sb, "\n\n### %s %s %d:\n%s", origin, t, i+1, item.Content)
		}
	}
	return sb.String()
}

func renderVoiceSamples(samples []*models.ContextData) string {
	if len(samples) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Voice Samples")
	for i, sample := range samples {
		fmt.Fprintf(&sb, "\n\n### Sample %d:\n%s", i+1, sample.Content)
	}
	return sb.String()
}

func renderFlags(flags []models.Flag) string {
	if len(flags) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Active Flags")
	for _, flag := range flags {
		fmt.Fprintf(&sb, "\n- %s", flag.Value)
	}
	return sb.String()
}

func idSet(items []*models.ContextData) map[int64]struct{} {
	set := make(map[int64]struct{}, len(items))
	for _, item := range items {
		set[item.ID] = struct{}{}
	}
	return set
}

func semanticIDs(groups map[models.ContextType][]*models.ContextData) map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, items := range groups {
		for _, item := range items {
			set[item.ID] = struct{}{}
		}
	}
	return set
}

// exclude drops items whose id is in any of the given sets.
func exclude(items []*models.ContextData, sets ...map[int64]struct{}) []*models.ContextData {
	out := items[:0:0]
	for _, item := range items {
		skip := false
		for _, set := range sets {
			if _, in := set[item.ID]; in {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, item)
		}
	}
	return out
}
