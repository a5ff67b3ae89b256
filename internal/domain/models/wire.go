package models

// Provider request shapes produced by the request builder. Both serialize
// with camelCase keys and omit null-valued properties; the transports map
// them onto the provider APIs.

// GeminiPart is a single text part of a Gemini content block.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiContent is one content block: a role plus its parts. Role is empty
// for the system instruction block.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiThinkingConfig controls the model's reasoning budget.
type GeminiThinkingConfig struct {
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
	IncludeThoughts bool   `json:"includeThoughts"`
}

// GeminiGenerationConfig carries sampling parameters.
type GeminiGenerationConfig struct {
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	Temperature     *float64              `json:"temperature,omitempty"`
	ThinkingConfig  *GeminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

// GeminiRequest is the Gemini generateContent wire shape.
type GeminiRequest struct {
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	Contents          []GeminiContent         `json:"contents"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// ClaudeSystemBlock is one block of a structured Claude system prompt.
type ClaudeSystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClaudeMessage is one conversation message. Content is either a plain
// string or a []ClaudeSystemBlock-shaped block list.
type ClaudeMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ClaudeThinking enables extended thinking with a token budget.
type ClaudeThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budgetTokens,omitempty"`
}

// ClaudeMetadata carries opaque request metadata.
type ClaudeMetadata struct {
	UserID string `json:"userId,omitempty"`
}

// ClaudeRequest is the Claude messages wire shape. System is either a plain
// string or []ClaudeSystemBlock.
type ClaudeRequest struct {
	Model         string          `json:"model"`
	MaxTokens     int             `json:"maxTokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	System        interface{}     `json:"system,omitempty"`
	Messages      []ClaudeMessage `json:"messages"`
	Thinking      *ClaudeThinking `json:"thinking,omitempty"`
	StopSequences []string        `json:"stopSequences,omitempty"`
	TopP          *float64        `json:"topP,omitempty"`
	TopK          *int            `json:"topK,omitempty"`
	Metadata      *ClaudeMetadata `json:"metadata,omitempty"`
}

// RoleUser and RoleModel are the Gemini content roles; Claude uses
// RoleUser/RoleAssistant.
const (
	RoleUser      = "user"
	RoleModel     = "model"
	RoleAssistant = "assistant"
)
