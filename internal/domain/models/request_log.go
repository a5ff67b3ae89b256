package models

import "time"

// LLMRequestLog is the audit row written for every LLM call, successful or
// not, including the raw wire JSON in both directions.
type LLMRequestLog struct {
	ID                      int64     `json:"id" db:"id"`
	RequestID               string    `json:"requestId" db:"request_id"`
	Operation               string    `json:"operation" db:"operation"`
	Provider                string    `json:"provider" db:"provider"`
	Model                   string    `json:"model" db:"model"`
	StartTime               time.Time `json:"startTime" db:"start_time"`
	EndTime                 time.Time `json:"endTime" db:"end_time"`
	DurationMs              int64     `json:"durationMs" db:"duration_ms"`
	StatusCode              int       `json:"statusCode" db:"status_code"`
	Prompt                  string    `json:"prompt,omitempty" db:"prompt"`
	SystemInstruction       string    `json:"systemInstruction,omitempty" db:"system_instruction"`
	RawRequestJSON          string    `json:"rawRequestJson" db:"raw_request_json"`
	RawResponseJSON         string    `json:"rawResponseJson" db:"raw_response_json"`
	GeneratedText           string    `json:"generatedText,omitempty" db:"generated_text"`
	InputTokens             int       `json:"inputTokens" db:"input_tokens"`
	OutputTokens            int       `json:"outputTokens" db:"output_tokens"`
	CachedContentTokenCount int       `json:"cachedContentTokenCount" db:"cached_content_token_count"`
	ThinkingTokens          int       `json:"thinkingTokens" db:"thinking_tokens"`
	TotalTokens             int       `json:"totalTokens" db:"total_tokens"`
	TotalCost               float64   `json:"totalCost" db:"total_cost"`
	TurnID                  *int64    `json:"turnId,omitempty" db:"turn_id"`
	CreatedAt               time.Time `json:"createdAt" db:"created_at"`
}
