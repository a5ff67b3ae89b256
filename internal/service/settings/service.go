// Package settings layers typed reads over the string-valued setting store.
// Values are parsed on read; absent or malformed values fall back to the
// caller's default so a bad row can never take the pipeline down.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reverie/internal/config"
	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// Setting keys.
const (
	KeyLLMProvider                       = "LLMProvider"
	KeyGeminiModel                       = "GeminiModel"
	KeyClaudeModel                       = "ClaudeModel"
	KeyTechnicalModel                    = "TechnicalModel"
	KeyPreviousTurnsCount                = "PreviousTurnsCount"
	KeyMaxDialogueLogTurns               = "MaxDialogueLogTurns"
	KeyMaxResponseTokens                 = "MaxResponseTokens"
	KeyTemperature                       = "Temperature"
	KeyPerceptionEnabled                 = "PerceptionEnabled"
	KeySemanticUseLLMQueryTransformation = "SemanticUseLLMQueryTransformation"
	KeySemanticTokenQuotaQuote           = "SemanticTokenQuota_Quote"
	KeySemanticTokenQuotaMemory          = "SemanticTokenQuota_Memory"
	KeySemanticTokenQuotaInsight         = "SemanticTokenQuota_Insight"
	KeySemanticTokenQuotaVoiceSample     = "SemanticTokenQuota_PersonaVoiceSample"
	KeyTriggerScanTextAdditionalWords    = "TriggerScanTextAdditionalWords"
	KeyGeminiThinkingLevel               = "GeminiThinkingLevel"
	KeyGeminiIncludeThoughts             = "GeminiIncludeThoughts"
	KeyClaudeThinkingBudget              = "ClaudeThinkingBudget"
)

// Defaults applied when a key is absent or unparsable.
const (
	DefaultLLMProvider         = "Gemini"
	DefaultGeminiModel         = "gemini-2.5-flash"
	DefaultClaudeModel         = "claude-sonnet-4-5"
	DefaultTechnicalModel      = "gemini-2.5-flash-lite"
	DefaultPreviousTurnsCount  = 6
	DefaultMaxDialogueLogTurns = 50
	DefaultMaxResponseTokens   = 8192
	DefaultTemperature         = 1.0
	DefaultQuotaQuote          = 3000
	DefaultQuotaMemory         = 4500
	DefaultQuotaInsight        = 2250
	DefaultQuotaVoiceSample    = 2250
)

// Service provides typed access to settings.
type Service struct {
	repo   repositories.SettingRepository
	logger *slog.Logger
}

// NewService creates a settings service
func NewService(repo repositories.SettingRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// String reads a string setting, returning def when absent or on store error.
func (s *Service) String(ctx context.Context, key, def string) string {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("setting read failed; using default", "key", key, "error", err)
		}
		return def
	}
	return setting.Value
}

// Int reads an integer setting; parse failures fall back to def with a
// warning.
func (s *Service) Int(ctx context.Context, key string, def int) int {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("setting read failed; using default", "key", key, "error", err)
		}
		return def
	}

	value, err := strconv.Atoi(setting.Value)
	if err != nil {
		s.logger.Warn("setting is not an integer; using default", "key", key, "value", setting.Value)
		return def
	}
	return value
}

// Bool reads a boolean setting; parse failures fall back to def with a
// warning.
func (s *Service) Bool(ctx context.Context, key string, def bool) bool {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("setting read failed; using default", "key", key, "error", err)
		}
		return def
	}

	value, err := strconv.ParseBool(setting.Value)
	if err != nil {
		s.logger.Warn("setting is not a boolean; using default", "key", key, "value", setting.Value)
		return def
	}
	return value
}

// Float reads a float setting; parse failures fall back to def with a
// warning.
func (s *Service) Float(ctx context.Context, key string, def float64) float64 {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("setting read failed; using default", "key", key, "error", err)
		}
		return def
	}

	value, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil {
		s.logger.Warn("setting is not a float; using default", "key", key, "value", setting.Value)
		return def
	}
	return value
}

// GetAll returns every stored setting.
func (s *Service) GetAll(ctx context.Context) ([]models.Setting, error) {
	return s.repo.GetAll(ctx)
}

// Set validates and upserts a setting value.
func (s *Service) Set(ctx context.Context, name, value string) error {
	if err := validation.Validate(name, validation.Required, validation.Length(1, config.MaxSettingNameLength)); err != nil {
		return &domain.ValidationError{Message: "setting name: " + err.Error()}
	}
	return s.repo.Set(ctx, name, value)
}

// Delete removes a setting so reads fall back to defaults.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}

// SemanticQuotas reads the per-type token budgets for semantic retrieval.
func (s *Service) SemanticQuotas(ctx context.Context) map[models.ContextType]int {
	return map[models.ContextType]int{
		models.ContextTypeQuote:              s.Int(ctx, KeySemanticTokenQuotaQuote, DefaultQuotaQuote),
		models.ContextTypeMemory:             s.Int(ctx, KeySemanticTokenQuotaMemory, DefaultQuotaMemory),
		models.ContextTypeInsight:            s.Int(ctx, KeySemanticTokenQuotaInsight, DefaultQuotaInsight),
		models.ContextTypePersonaVoiceSample: s.Int(ctx, KeySemanticTokenQuotaVoiceSample, DefaultQuotaVoiceSample),
	}
}
