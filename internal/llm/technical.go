package llm

import (
	"context"

	"reverie/internal/domain/models"
)

// TechnicalRequest is a minimal system+prompt call used by perceptions,
// query transformation, and stripping. The model name picks the provider.
type TechnicalRequest struct {
	Operation string
	Model     string
	System    string
	Prompt    string
	MaxTokens int
	TurnID    *int64
}

// TechnicalCaller routes minimal calls through the factory by model prefix.
type TechnicalCaller struct {
	factory *Factory
}

// NewTechnicalCaller creates a technical caller
func NewTechnicalCaller(factory *Factory) *TechnicalCaller {
	return &TechnicalCaller{factory: factory}
}

// Generate builds the provider-appropriate minimal request and dispatches it.
func (t *TechnicalCaller) Generate(ctx context.Context, req TechnicalRequest) (GenerateOutput, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	provider := t.factory.ForModel(req.Model)

	in := GenerateInput{
		Operation: req.Operation,
		Model:     req.Model,
		TurnID:    req.TurnID,
	}

	if provider.Name() == ProviderClaude {
		claude := &models.ClaudeRequest{
			Model:     req.Model,
			MaxTokens: maxTokens,
			Messages: []models.ClaudeMessage{
				{Role: models.RoleUser, Content: req.Prompt},
			},
		}
		if req.System != "" {
			claude.System = req.System
		}
		in.Claude = claude
	} else {
		gemini := &models.GeminiRequest{
			Contents: []models.GeminiContent{
				{Role: models.RoleUser, Parts: []models.GeminiPart{{Text: req.Prompt}}},
			},
			GenerationConfig: &models.GeminiGenerationConfig{MaxOutputTokens: maxTokens},
		}
		if req.System != "" {
			gemini.SystemInstruction = &models.GeminiContent{
				Parts: []models.GeminiPart{{Text: req.System}},
			}
		}
		in.Gemini = gemini
	}

	return provider.GenerateContent(ctx, in)
}
