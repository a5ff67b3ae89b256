package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"reverie/internal/domain/models"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
)

// anthropicRequest is the Anthropic messages API body. The pipeline's
// models.ClaudeRequest is camelCase; the API wants snake_case, so the
// transport re-keys it here.
type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Messages      []anthropicMessage `json:"messages"`
	System        interface{}        `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	Thinking      *anthropicThinking `json:"thinking,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	Metadata      *anthropicMetadata `json:"metadata,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type anthropicMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClaudeClient implements Provider against the Anthropic messages API.
type ClaudeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	auditor *Auditor
	logger  *slog.Logger
}

// NewClaudeClient creates a Claude transport
func NewClaudeClient(baseURL, apiKey string, auditor *Auditor, logger *slog.Logger) *ClaudeClient {
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	return &ClaudeClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 300 * time.Second},
		auditor: auditor,
		logger:  logger,
	}
}

// Name returns the provider name as stored in the LLMProvider setting
func (c *ClaudeClient) Name() string { return ProviderClaude }

// GenerateContent dispatches one request. Provider-level failures come back
// as Success=false with the error text; only cancellation is returned as an
// error. One audit row is written regardless of outcome.
func (c *ClaudeClient) GenerateContent(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if in.Claude == nil {
		return GenerateOutput{}, fmt.Errorf("claude request not populated")
	}

	body, err := json.Marshal(toAnthropicRequest(in.Claude))
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("marshal claude request: %w", err)
	}

	rec := CallRecord{
		Operation:         in.Operation,
		Provider:          ProviderClaude,
		Model:             in.Model,
		StartTime:         time.Now().UTC(),
		Prompt:            claudePrompt(in.Claude),
		SystemInstruction: claudeSystem(in.Claude),
		RawRequestJSON:    string(body),
		TurnID:            in.TurnID,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("create claude request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		rec.EndTime = time.Now().UTC()
		c.auditor.Record(rec)
		if ctx.Err() != nil {
			return GenerateOutput{}, ctx.Err()
		}
		return GenerateOutput{Success: false, Text: fmt.Sprintf("claude request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	rec.EndTime = time.Now().UTC()
	rec.StatusCode = resp.StatusCode
	rec.RawResponseJSON = string(respBody)
	if err != nil {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("read claude response: %v", err)}, nil
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("parse claude response: %v", err)}, nil
	}

	rec.InputTokens = parsed.Usage.InputTokens
	rec.OutputTokens = parsed.Usage.OutputTokens
	rec.CachedTokens = parsed.Usage.CacheReadInputTokens

	if parsed.Error != nil {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("claude error %s: %s", parsed.Error.Type, parsed.Error.Message)}, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("claude http %d: %s", resp.StatusCode, string(respBody))}, nil
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	rec.GeneratedText = text
	rec.Success = true
	c.auditor.Record(rec)

	return GenerateOutput{Success: true, Text: text}, nil
}

// toAnthropicRequest re-keys the pipeline's request into API form.
func toAnthropicRequest(req *models.ClaudeRequest) anthropicRequest {
	out := anthropicRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		System:        req.System,
		Temperature:   req.Temperature,
		StopSequences: req.StopSequences,
		TopP:          req.TopP,
		TopK:          req.TopK,
	}

	// System blocks and message block lists share the pipeline's camelCase
	// types, which happen to use only "type" and "text" keys, so they pass
	// through unchanged.
	out.Messages = make([]anthropicMessage, len(req.Messages))
	for i, m := range req.Messages {
		out.Messages[i] = anthropicMessage{Role: m.Role, Content: m.Content}
	}

	if req.Thinking != nil {
		out.Thinking = &anthropicThinking{Type: req.Thinking.Type, BudgetTokens: req.Thinking.BudgetTokens}
	}
	if req.Metadata != nil {
		out.Metadata = &anthropicMetadata{UserID: req.Metadata.UserID}
	}

	return out
}

// claudePrompt extracts the final user message text for the audit row.
func claudePrompt(req *models.ClaudeRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != models.RoleUser {
			continue
		}
		if text, ok := req.Messages[i].Content.(string); ok {
			return text
		}
		return ""
	}
	return ""
}

// claudeSystem renders the system prompt for the audit row.
func claudeSystem(req *models.ClaudeRequest) string {
	switch system := req.System.(type) {
	case string:
		return system
	case []models.ClaudeSystemBlock:
		var text string
		for _, block := range system {
			if text != "" {
				text += "\n\n"
			}
			text += block.Text
		}
		return text
	}
	return ""
}
