package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestGeminiRequest_OmitsUnsetFields verifies the wire shape stays minimal:
// no systemInstruction, generationConfig, or role keys appear unless set.
func TestGeminiRequest_OmitsUnsetFields(t *testing.T) {
	req := GeminiRequest{
		Contents: []GeminiContent{
			{Role: RoleUser, Parts: []GeminiPart{{Text: "hello"}}},
		},
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := string(raw)

	for _, forbidden := range []string{"systemInstruction", "generationConfig", "null"} {
		if strings.Contains(body, forbidden) {
			t.Errorf("unset field leaked into wire body: %s in %s", forbidden, body)
		}
	}
	if !strings.Contains(body, `"role":"user"`) {
		t.Errorf("missing role: %s", body)
	}
}

func TestGeminiRequest_SystemInstructionHasNoRole(t *testing.T) {
	req := GeminiRequest{
		SystemInstruction: &GeminiContent{Parts: []GeminiPart{{Text: "be terse"}}},
		Contents: []GeminiContent{
			{Role: RoleUser, Parts: []GeminiPart{{Text: "hi"}}},
		},
		GenerationConfig: &GeminiGenerationConfig{
			MaxOutputTokens: 256,
			ThinkingConfig:  &GeminiThinkingConfig{ThinkingLevel: "low"},
		},
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	system := decoded["systemInstruction"].(map[string]interface{})
	if _, hasRole := system["role"]; hasRole {
		t.Error("system instruction block must not carry a role")
	}

	config := decoded["generationConfig"].(map[string]interface{})
	if config["maxOutputTokens"].(float64) != 256 {
		t.Errorf("maxOutputTokens = %v", config["maxOutputTokens"])
	}
	thinking := config["thinkingConfig"].(map[string]interface{})
	if thinking["thinkingLevel"] != "low" {
		t.Errorf("thinkingLevel = %v", thinking["thinkingLevel"])
	}
	// includeThoughts serializes even when false so the API never guesses.
	if _, ok := thinking["includeThoughts"]; !ok {
		t.Error("includeThoughts should always serialize")
	}
}

// TestClaudeRequest_CamelCaseAndOmissions verifies the internal Claude shape
// uses camelCase keys (the transport re-keys them for the API) and omits
// optional fields.
func TestClaudeRequest_CamelCaseAndOmissions(t *testing.T) {
	req := ClaudeRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 1024,
		System:    "stay in character",
		Messages: []ClaudeMessage{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi there"},
		},
		StopSequences: []string{"---END---"},
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := string(raw)

	for _, want := range []string{`"maxTokens":1024`, `"stopSequences"`, `"model":"claude-sonnet-4-5"`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in %s", want, body)
		}
	}
	for _, forbidden := range []string{"temperature", "thinking", "topP", "topK", "metadata", "null"} {
		if strings.Contains(body, forbidden) {
			t.Errorf("unset field leaked: %s in %s", forbidden, body)
		}
	}
}

func TestClaudeRequest_StructuredSystemBlocks(t *testing.T) {
	req := ClaudeRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 64,
		System: []ClaudeSystemBlock{
			{Type: "text", Text: "persona"},
			{Type: "text", Text: "rules"},
		},
		Messages: []ClaudeMessage{{Role: RoleUser, Content: "hi"}},
		Thinking: &ClaudeThinking{Type: "enabled", BudgetTokens: 2048},
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		System   []map[string]string    `json:"system"`
		Thinking map[string]interface{} `json:"thinking"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(decoded.System) != 2 || decoded.System[0]["text"] != "persona" {
		t.Errorf("system blocks = %v", decoded.System)
	}
	if decoded.Thinking["budgetTokens"].(float64) != 2048 {
		t.Errorf("thinking budget = %v", decoded.Thinking["budgetTokens"])
	}
}
