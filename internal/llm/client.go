// Package llm holds the provider transports, the technical-call client, the
// embedding client, token counting, and the audit recorder. Retries, rate
// limiting, and streaming are deliberately absent; callers own deadlines via
// context.
package llm

import (
	"context"
	"fmt"
	"strings"

	"reverie/internal/domain/models"
)

// Operation labels for audit rows.
const (
	OperationTurn           = "turn"
	OperationPerception     = "perception"
	OperationStrip          = "strip"
	OperationQueryTransform = "query_transform"
	OperationEmbed          = "embed"
)

// Provider names as stored in the LLMProvider setting.
const (
	ProviderGemini = "Gemini"
	ProviderClaude = "Claude"
)

// GenerateInput carries one provider call. Exactly one of Gemini/Claude is
// set; Model must match the populated request.
type GenerateInput struct {
	Operation string
	Model     string
	Gemini    *models.GeminiRequest
	Claude    *models.ClaudeRequest
	TurnID    *int64
}

// GenerateOutput is the provider verdict. Success=false carries the
// provider's error text in Text; transport faults surface as errors instead.
type GenerateOutput struct {
	Success bool
	Text    string
}

// Provider dispatches one request to an LLM backend.
type Provider interface {
	Name() string
	GenerateContent(ctx context.Context, in GenerateInput) (GenerateOutput, error)
}

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter estimates token counts for budget checks.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// Factory resolves providers by configured name or by model-name prefix.
type Factory struct {
	gemini Provider
	claude Provider
}

// NewFactory creates a provider factory
func NewFactory(gemini, claude Provider) *Factory {
	return &Factory{gemini: gemini, claude: claude}
}

// ForName resolves the provider selected by the LLMProvider setting
func (f *Factory) ForName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return f.gemini, nil
	case "claude":
		return f.claude, nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

// ForModel routes by model-name prefix; unknown prefixes fall back to Gemini
func (f *Factory) ForModel(model string) Provider {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "claude") {
		return f.claude
	}
	return f.gemini
}
