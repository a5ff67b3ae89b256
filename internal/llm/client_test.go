package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"reverie/internal/domain/models"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GenerateContent(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	return GenerateOutput{Success: true, Text: s.name}, nil
}

func TestFactoryForName(t *testing.T) {
	gemini := &stubProvider{name: ProviderGemini}
	claude := &stubProvider{name: ProviderClaude}
	factory := NewFactory(gemini, claude)

	cases := []struct {
		in   string
		want Provider
	}{
		{"gemini", gemini},
		{"Gemini", gemini},
		{"claude", claude},
		{" Claude ", claude},
		{"CLAUDE", claude},
	}
	for _, tc := range cases {
		got, err := factory.ForName(tc.in)
		if err != nil {
			t.Fatalf("ForName(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ForName(%q) = %s, want %s", tc.in, got.Name(), tc.want.Name())
		}
	}

	if _, err := factory.ForName("openai"); err == nil {
		t.Error("expected error for unknown provider name")
	}
}

func TestFactoryForModel(t *testing.T) {
	gemini := &stubProvider{name: ProviderGemini}
	claude := &stubProvider{name: ProviderClaude}
	factory := NewFactory(gemini, claude)

	cases := []struct {
		model string
		want  Provider
	}{
		{"claude-sonnet-4-5", claude},
		{"Claude-haiku-4-5", claude},
		{" claude-opus-4-1 ", claude},
		{"gemini-2.5-pro", gemini},
		{"gemini-2.5-flash-lite", gemini},
		// Unknown prefixes fall back to Gemini.
		{"gpt-4", gemini},
		{"", gemini},
	}
	for _, tc := range cases {
		if got := factory.ForModel(tc.model); got != tc.want {
			t.Errorf("ForModel(%q) = %s, want %s", tc.model, got.Name(), tc.want.Name())
		}
	}
}

func TestToAnthropicRequestRekeysSnakeCase(t *testing.T) {
	temp := 0.7
	topP := 0.9
	topK := 40
	req := &models.ClaudeRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 1024,
		System:    "stay in character",
		Messages: []models.ClaudeMessage{
			{Role: models.RoleUser, Content: "hello"},
		},
		Temperature:   &temp,
		TopP:          &topP,
		TopK:          &topK,
		StopSequences: []string{"\n\nUser:"},
		Thinking:      &models.ClaudeThinking{Type: "enabled", BudgetTokens: 2048},
		Metadata:      &models.ClaudeMetadata{UserID: "session-9"},
	}

	raw, err := json.Marshal(toAnthropicRequest(req))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)

	for _, key := range []string{
		`"max_tokens":1024`,
		`"stop_sequences":["\n\nUser:"]`,
		`"top_p":0.9`,
		`"top_k":40`,
		`"budget_tokens":2048`,
		`"user_id":"session-9"`,
		`"system":"stay in character"`,
		`"temperature":0.7`,
	} {
		if !strings.Contains(body, key) {
			t.Errorf("request body missing %s: %s", key, body)
		}
	}

	for _, key := range []string{"maxTokens", "stopSequences", "topP", "topK", "budgetTokens", "userId"} {
		if strings.Contains(body, key) {
			t.Errorf("camelCase key %s leaked into API body: %s", key, body)
		}
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var messages []map[string]interface{}
	if err := json.Unmarshal(decoded["messages"], &messages); err != nil {
		t.Fatalf("unmarshal messages: %v", err)
	}
	if len(messages) != 1 || messages[0]["role"] != "user" || messages[0]["content"] != "hello" {
		t.Errorf("messages not passed through: %v", messages)
	}
}

func TestToAnthropicRequestOmitsUnsetOptionals(t *testing.T) {
	req := &models.ClaudeRequest{
		Model:     "claude-haiku-4-5",
		MaxTokens: 256,
		Messages: []models.ClaudeMessage{
			{Role: models.RoleUser, Content: "ping"},
		},
	}

	raw, err := json.Marshal(toAnthropicRequest(req))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)

	for _, key := range []string{"system", "temperature", "thinking", "stop_sequences", "top_p", "top_k", "metadata"} {
		if strings.Contains(body, `"`+key+`"`) {
			t.Errorf("unset field %s serialized: %s", key, body)
		}
	}
}

func TestToAnthropicRequestKeepsSystemBlocks(t *testing.T) {
	req := &models.ClaudeRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 512,
		System: []models.ClaudeSystemBlock{
			{Type: "text", Text: "persona"},
			{Type: "text", Text: "world state"},
		},
		Messages: []models.ClaudeMessage{
			{Role: models.RoleUser, Content: "go"},
		},
	}

	raw, err := json.Marshal(toAnthropicRequest(req))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		System []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"system"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.System) != 2 || decoded.System[0].Text != "persona" || decoded.System[1].Text != "world state" {
		t.Errorf("system blocks not preserved: %+v", decoded.System)
	}
}

func TestClaudeSystemRendersBlocks(t *testing.T) {
	req := &models.ClaudeRequest{
		System: []models.ClaudeSystemBlock{
			{Type: "text", Text: "first"},
			{Type: "text", Text: "second"},
		},
	}
	if got := claudeSystem(req); got != "first\n\nsecond" {
		t.Errorf("claudeSystem = %q", got)
	}

	req.System = "plain"
	if got := claudeSystem(req); got != "plain" {
		t.Errorf("claudeSystem string = %q", got)
	}

	req.System = nil
	if got := claudeSystem(req); got != "" {
		t.Errorf("claudeSystem nil = %q", got)
	}
}

func TestClaudePromptFindsLastUserMessage(t *testing.T) {
	req := &models.ClaudeRequest{
		Messages: []models.ClaudeMessage{
			{Role: models.RoleUser, Content: "older"},
			{Role: models.RoleAssistant, Content: "reply"},
			{Role: models.RoleUser, Content: "latest"},
		},
	}
	if got := claudePrompt(req); got != "latest" {
		t.Errorf("claudePrompt = %q, want latest", got)
	}

	req.Messages = nil
	if got := claudePrompt(req); got != "" {
		t.Errorf("claudePrompt empty = %q", got)
	}
}
