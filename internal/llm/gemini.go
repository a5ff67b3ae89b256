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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiResponse is the generateContent response envelope.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []struct {
				Text    string `json:"text"`
				Thought bool   `json:"thought,omitempty"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount        int `json:"promptTokenCount"`
		CandidatesTokenCount    int `json:"candidatesTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
		ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
		TotalTokenCount         int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiClient implements Provider against the Gemini generateContent API.
// The wire shape is models.GeminiRequest verbatim: the API is camelCase JSON,
// same as the request builder's rendering.
type GeminiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	auditor *Auditor
	logger  *slog.Logger
}

// NewGeminiClient creates a Gemini transport
func NewGeminiClient(baseURL, apiKey string, auditor *Auditor, logger *slog.Logger) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 300 * time.Second},
		auditor: auditor,
		logger:  logger,
	}
}

// Name returns the provider name as stored in the LLMProvider setting
func (c *GeminiClient) Name() string { return ProviderGemini }

// GenerateContent dispatches one request. Provider-level failures come back
// as Success=false with the error text; only cancellation is returned as an
// error. One audit row is written regardless of outcome.
func (c *GeminiClient) GenerateContent(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if in.Gemini == nil {
		return GenerateOutput{}, fmt.Errorf("gemini request not populated")
	}

	body, err := json.Marshal(in.Gemini)
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	rec := CallRecord{
		Operation:         in.Operation,
		Provider:          ProviderGemini,
		Model:             in.Model,
		StartTime:         time.Now().UTC(),
		Prompt:            geminiPrompt(in.Gemini),
		SystemInstruction: geminiSystem(in.Gemini),
		RawRequestJSON:    string(body),
		TurnID:            in.TurnID,
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, in.Model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		rec.EndTime = time.Now().UTC()
		c.auditor.Record(rec)
		if ctx.Err() != nil {
			return GenerateOutput{}, ctx.Err()
		}
		return GenerateOutput{Success: false, Text: fmt.Sprintf("gemini request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	rec.EndTime = time.Now().UTC()
	rec.StatusCode = resp.StatusCode
	rec.RawResponseJSON = string(respBody)
	if err != nil {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("read gemini response: %v", err)}, nil
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("parse gemini response: %v", err)}, nil
	}

	if parsed.UsageMetadata != nil {
		rec.InputTokens = parsed.UsageMetadata.PromptTokenCount
		rec.OutputTokens = parsed.UsageMetadata.CandidatesTokenCount
		rec.CachedTokens = parsed.UsageMetadata.CachedContentTokenCount
		rec.ThinkingTokens = parsed.UsageMetadata.ThoughtsTokenCount
	}

	if parsed.Error != nil {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("gemini error %d: %s", parsed.Error.Code, parsed.Error.Message)}, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: fmt.Sprintf("gemini http %d: %s", resp.StatusCode, string(respBody))}, nil
	}
	if len(parsed.Candidates) == 0 {
		c.auditor.Record(rec)
		return GenerateOutput{Success: false, Text: "gemini returned no candidates"}, nil
	}

	var text string
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		text += part.Text
	}

	rec.GeneratedText = text
	rec.Success = true
	c.auditor.Record(rec)

	return GenerateOutput{Success: true, Text: text}, nil
}

// geminiPrompt extracts the final user message for the audit row.
func geminiPrompt(req *models.GeminiRequest) string {
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role == models.RoleUser && len(req.Contents[i].Parts) > 0 {
			return req.Contents[i].Parts[0].Text
		}
	}
	return ""
}

// geminiSystem extracts the system instruction for the audit row.
func geminiSystem(req *models.GeminiRequest) string {
	if req.SystemInstruction == nil {
		return ""
	}
	var text string
	for _, part := range req.SystemInstruction.Parts {
		if text != "" {
			text += "\n\n"
		}
		text += part.Text
	}
	return text
}
