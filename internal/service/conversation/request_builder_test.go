package conversation

import (
	"context"
	"strings"
	"testing"

	"reverie/internal/domain/models"
)

const testSeparator = "---===---"

func newTestBuilder(settingValues map[string]string, messages *fakeSystemMessageRepo) *RequestBuilder {
	if messages == nil {
		messages = &fakeSystemMessageRepo{}
	}
	return NewRequestBuilder(newTestSettings(settingValues), messages, testSeparator)
}

// historyState returns a state with two finished turns and a current input.
// The first turn has a raw response, the second only a display response.
func historyState() *State {
	state := testState()
	state.CurrentTurn.Input = "what happened next?"
	state.SetRecentTurns([]models.Turn{
		{ID: 10, Input: "first question", Response: "first raw answer" + testSeparator + " private", DisplayResponse: "first raw answer"},
		{ID: 11, Input: "second question", DisplayResponse: "second display answer"},
	})
	return state
}

func TestRequestBuilder_GeminiShape(t *testing.T) {
	builder := newTestBuilder(nil, nil)
	state := historyState()
	state.Persona = "You are Ayumi."

	if err := builder.Build(context.Background(), state, "Gemini"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if state.ClaudeRequest != nil {
		t.Error("expected no Claude request for the Gemini provider")
	}
	req := state.GeminiRequest
	if req == nil {
		t.Fatal("expected a Gemini request")
	}

	// Verify: one user/model pair per turn, oldest first, then the input.
	if len(req.Contents) != 5 {
		t.Fatalf("expected 5 contents, got %d", len(req.Contents))
	}
	wantRoles := []string{models.RoleUser, models.RoleModel, models.RoleUser, models.RoleModel, models.RoleUser}
	for i, want := range wantRoles {
		if req.Contents[i].Role != want {
			t.Errorf("contents[%d] role = %q, want %q", i, req.Contents[i].Role, want)
		}
	}
	if got := req.Contents[0].Parts[0].Text; got != "first question" {
		t.Errorf("contents[0] = %q, want the oldest input", got)
	}

	// Verify: the model side keeps the raw response when present and falls
	// back to the display response.
	if got := req.Contents[1].Parts[0].Text; !strings.Contains(got, "private") {
		t.Errorf("contents[1] = %q, want the raw response", got)
	}
	if got := req.Contents[3].Parts[0].Text; got != "second display answer" {
		t.Errorf("contents[3] = %q, want the display fallback", got)
	}
	if got := req.Contents[4].Parts[0].Text; got != "what happened next?" {
		t.Errorf("contents[4] = %q, want the current input", got)
	}

	if req.SystemInstruction == nil || !strings.Contains(req.SystemInstruction.Parts[0].Text, "You are Ayumi.") {
		t.Error("expected the persona in the system instruction")
	}
	if req.GenerationConfig == nil {
		t.Fatal("expected a generation config")
	}
	if req.GenerationConfig.MaxOutputTokens != 8192 {
		t.Errorf("expected default max output tokens 8192, got %d", req.GenerationConfig.MaxOutputTokens)
	}
	if req.GenerationConfig.Temperature == nil || *req.GenerationConfig.Temperature != 1.0 {
		t.Errorf("expected default temperature 1.0, got %v", req.GenerationConfig.Temperature)
	}
	if req.GenerationConfig.ThinkingConfig != nil {
		t.Error("expected no thinking config without thinking settings")
	}
}

func TestRequestBuilder_ClaudeShape(t *testing.T) {
	builder := newTestBuilder(map[string]string{
		"ClaudeThinkingBudget": "2048",
	}, nil)
	state := historyState()
	state.Persona = "You are Ayumi."

	if err := builder.Build(context.Background(), state, "Claude"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if state.GeminiRequest != nil {
		t.Error("expected no Gemini request for the Claude provider")
	}
	req := state.ClaudeRequest
	if req == nil {
		t.Fatal("expected a Claude request")
	}

	if req.Model != "claude-sonnet-4-5" {
		t.Errorf("expected the default Claude model, got %q", req.Model)
	}
	if len(req.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(req.Messages))
	}
	if req.Messages[1].Role != models.RoleAssistant {
		t.Errorf("expected assistant role on the model side, got %q", req.Messages[1].Role)
	}
	if got := req.Messages[4].Content; got != "what happened next?" {
		t.Errorf("final message = %v, want the current input", got)
	}
	system, ok := req.System.(string)
	if !ok || !strings.Contains(system, "You are Ayumi.") {
		t.Errorf("expected the persona in the system prompt, got %v", req.System)
	}
	if req.Thinking == nil || req.Thinking.BudgetTokens != 2048 {
		t.Errorf("expected thinking budget 2048, got %v", req.Thinking)
	}
}

func TestRequestBuilder_UnknownProvider(t *testing.T) {
	builder := newTestBuilder(nil, nil)
	err := builder.Build(context.Background(), testState(), "GPT")
	if err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
	if !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestRequestBuilder_SectionOrder assembles a fully populated state and
// verifies every system instruction section renders in its fixed position.
func TestRequestBuilder_SectionOrder(t *testing.T) {
	messages := &fakeSystemMessageRepo{messages: []models.SystemMessage{
		{
			ID: 30, ProfileID: 1, Name: "World Atlas", Content: "atlas body",
			Type: models.SystemMessageContextFile, IsActive: true,
			AttachedToPersonas: []int64{7},
		},
		{
			ID: 31, ProfileID: 1, Name: "Guard", Content: "Never mention token counts.",
			Type: models.SystemMessageTechnical, IsActive: true,
		},
	}}
	builder := newTestBuilder(nil, messages)

	state := testState()
	state.Persona = "You are Ayumi, a lighthouse keeper."
	state.PersonaName = "Ayumi"
	state.PersonaID = 7
	state.UserName = "Jo"
	state.AddPerception("Jo sounds rushed today.")
	state.SetUserProfile(&models.ContextData{ID: 1, Type: models.ContextTypeCharacterProfile, Name: "Jo", Content: "the user profile body"})
	state.AddContextData(&models.ContextData{ID: 2, Type: models.ContextTypeCharacterProfile, Name: "Rival", Content: "the rival profile body"})
	state.AddContextData(&models.ContextData{ID: 3, Type: models.ContextTypeMemory, Name: "Storm", Content: "the standing memory body"})
	state.AddContextData(&models.ContextData{ID: 4, Type: models.ContextTypeGeneric, Name: "House Rules", Content: "the house rules body"})
	state.AddTriggered(&models.ContextData{ID: 5, Type: models.ContextTypeInsight, Name: "Kraken", Content: "the triggered body"})
	state.AddSemanticResults(models.ContextTypeMemory, []*models.ContextData{
		{ID: 6, Type: models.ContextTypeMemory, Name: "Harbor", Content: "the retrieved body"},
	})
	state.AddContextData(&models.ContextData{ID: 8, Type: models.ContextTypePersonaVoiceSample, Content: "the voice sample body"})
	state.AddFlags([]models.Flag{{ID: 1, Value: "Keep replies short."}})

	if err := builder.Build(context.Background(), state, "Gemini"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	system := state.GeminiRequest.SystemInstruction.Parts[0].Text

	markers := []string{
		"You are Ayumi, a lighthouse keeper.",
		"## World Atlas",
		"## Perceptions",
		"## Character Profiles",
		"the user profile body",
		"the rival profile body",
		"## Memories and Insights",
		"## Additional Context",
		"## Triggered Context",
		"## Retrieved Memory Context",
		"## Voice Samples",
		"## Active Flags",
		"Never mention token counts.",
		"## Response Format",
	}
	last := -1
	for _, marker := range markers {
		idx := strings.Index(system, marker)
		if idx < 0 {
			t.Fatalf("missing section %q in:\n%s", marker, system)
		}
		if idx <= last {
			t.Errorf("section %q out of order", marker)
		}
		last = idx
	}

	if !strings.Contains(system, testSeparator) {
		t.Error("expected the separator in the response format instruction")
	}
	if strings.Contains(system, "## Out of Character") {
		t.Error("unexpected out-of-character directive on a normal turn")
	}
}

// TestRequestBuilder_OOCTurn verifies the out-of-character rendering: the
// directive leads, and perceptions plus the situational triggered and
// retrieved blocks are suppressed entirely.
func TestRequestBuilder_OOCTurn(t *testing.T) {
	builder := newTestBuilder(nil, nil)

	state := testState()
	state.IsOOCRequest = true
	state.Persona = "You are Ayumi."
	state.PersonaName = "Ayumi"
	state.AddPerception("Jo sounds rushed today.")
	state.AddTriggered(&models.ContextData{ID: 5, Type: models.ContextTypeInsight, Content: "the triggered body"})
	state.AddSemanticResults(models.ContextTypeMemory, []*models.ContextData{
		{ID: 6, Type: models.ContextTypeMemory, Content: "the retrieved body"},
	})

	if err := builder.Build(context.Background(), state, "Gemini"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	system := state.GeminiRequest.SystemInstruction.Parts[0].Text

	if !strings.HasPrefix(system, "## Out of Character") {
		t.Errorf("expected the directive to lead, got:\n%s", system)
	}
	if !strings.Contains(system, "not as Ayumi") {
		t.Error("expected the directive to name the persona")
	}
	if !strings.Contains(system, "You are Ayumi.") {
		t.Error("expected the persona to survive an OOC turn")
	}
	for _, banned := range []string{"## Perceptions", "## Triggered Context", "## Retrieved", "the triggered body", "the retrieved body"} {
		if strings.Contains(system, banned) {
			t.Errorf("expected %q to be suppressed on an OOC turn", banned)
		}
	}
}

// TestRequestBuilder_ProvenanceExclusions verifies each entry renders exactly
// once: triggered items leave their standing sections, and semantically
// retrieved voice samples leave the voice sample section.
func TestRequestBuilder_ProvenanceExclusions(t *testing.T) {
	builder := newTestBuilder(nil, nil)

	state := testState()
	state.AddContextData(&models.ContextData{ID: 1, Type: models.ContextTypeMemory, Name: "Standing", Content: "the standing memory body"})
	state.AddTriggered(&models.ContextData{ID: 2, Type: models.ContextTypeMemory, Name: "Triggered", Content: "the triggered memory body"})
	state.AddSemanticResults(models.ContextTypePersonaVoiceSample, []*models.ContextData{
		{ID: 3, Type: models.ContextTypePersonaVoiceSample, Content: "the retrieved sample body"},
	})
	state.AddContextData(&models.ContextData{ID: 4, Type: models.ContextTypePersonaVoiceSample, Content: "the standing sample body"})

	if err := builder.Build(context.Background(), state, "Gemini"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	system := state.GeminiRequest.SystemInstruction.Parts[0].Text

	for _, body := range []string{
		"the standing memory body",
		"the triggered memory body",
		"the retrieved sample body",
		"the standing sample body",
	} {
		if n := strings.Count(system, body); n != 1 {
			t.Errorf("expected %q to render once, got %d", body, n)
		}
	}

	// Verify: positions. The retrieved group renders before the voice sample
	// section, so the retrieved body must precede it and the standing body
	// must follow it.
	triggeredAt := strings.Index(system, "the triggered memory body")
	sectionAt := strings.Index(system, "## Triggered Context")
	if sectionAt < 0 || triggeredAt < sectionAt {
		t.Error("expected the triggered item inside the triggered section")
	}
	groupAt := strings.Index(system, "## Retrieved PersonaVoiceSample Context")
	samplesAt := strings.Index(system, "## Voice Samples")
	retrievedAt := strings.Index(system, "the retrieved sample body")
	standingAt := strings.Index(system, "the standing sample body")
	if groupAt < 0 || retrievedAt < groupAt || retrievedAt > samplesAt {
		t.Error("expected the retrieved sample inside its retrieved group")
	}
	if samplesAt < 0 || standingAt < samplesAt {
		t.Error("expected the standing sample inside the voice sample section")
	}
}

func TestRenderKnowledge_SortsBySortOrderThenID(t *testing.T) {
	out := renderKnowledge([]*models.ContextData{
		{ID: 2, SortOrder: 1, Name: "Second", Content: "b"},
		{ID: 1, SortOrder: 1, Name: "First", Content: "a"},
		{ID: 3, SortOrder: 0, Name: "Lead", Content: "c"},
	})

	wantOrder := []string{"### Lead:", "### First:", "### Second:"}
	last := -1
	for _, want := range wantOrder {
		idx := strings.Index(out, want)
		if idx < 0 {
			t.Fatalf("missing %q in %q", want, out)
		}
		if idx <= last {
			t.Errorf("%q out of order", want)
		}
		last = idx
	}
}

func TestRenderSemantic_OriginLabelsAndTypeOrder(t *testing.T) {
	session := int64(9)
	out := renderSemantic(map[models.ContextType][]*models.ContextData{
		models.ContextTypeMemory: {
			{ID: 1, Type: models.ContextTypeMemory, SourceSessionID: &session, Content: "dynamic body"},
			{ID: 2, Type: models.ContextTypeMemory, Content: "canon body"},
		},
		models.ContextTypeQuote: {
			{ID: 3, Type: models.ContextTypeQuote, Content: "quote body"},
		},
	})

	if !strings.Contains(out, "### Dynamic Memory 1:") {
		t.Errorf("expected a Dynamic label, got:\n%s", out)
	}
	if !strings.Contains(out, "### Canon Memory 2:") {
		t.Errorf("expected a Canon label with per-type numbering, got:\n%s", out)
	}
	quoteAt := strings.Index(out, "## Retrieved Quote Context")
	memoryAt := strings.Index(out, "## Retrieved Memory Context")
	if quoteAt < 0 || memoryAt < 0 || quoteAt > memoryAt {
		t.Error("expected quote group before memory group")
	}
}

// TestRequestBuilder_EmptySeparator verifies a builder configured without a
// separator emits no response format section.
func TestRequestBuilder_EmptySeparator(t *testing.T) {
	builder := NewRequestBuilder(newTestSettings(nil), &fakeSystemMessageRepo{}, "")
	state := testState()
	state.Persona = "You are Ayumi."

	if err := builder.Build(context.Background(), state, "Gemini"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	system := state.GeminiRequest.SystemInstruction.Parts[0].Text
	if strings.Contains(system, "## Response Format") {
		t.Error("expected no response format section without a separator")
	}
}
