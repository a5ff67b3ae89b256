package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/llm/pricing"
)

// Auditor appends one LLMRequestLog row per provider call. Writes go through
// a short background-safe context so a cancelled call still gets its row.
type Auditor struct {
	logs    repositories.RequestLogRepository
	pricing *pricing.Registry
	logger  *slog.Logger
}

// NewAuditor creates an auditor
func NewAuditor(logs repositories.RequestLogRepository, pricing *pricing.Registry, logger *slog.Logger) *Auditor {
	return &Auditor{logs: logs, pricing: pricing, logger: logger}
}

// CallRecord carries everything a transport knows about one call.
type CallRecord struct {
	Operation         string
	Provider          string
	Model             string
	StartTime         time.Time
	EndTime           time.Time
	StatusCode        int
	Prompt            string
	SystemInstruction string
	RawRequestJSON    string
	RawResponseJSON   string
	GeneratedText     string
	InputTokens       int
	OutputTokens      int
	CachedTokens      int
	ThinkingTokens    int
	TurnID            *int64
	Success           bool
}

// Record writes the audit row. Cost is priced only on success; failures cost
// nothing but are still logged with their raw wire JSON for debugging.
func (a *Auditor) Record(rec CallRecord) {
	if a == nil || a.logs == nil {
		return
	}

	row := &models.LLMRequestLog{
		RequestID:               uuid.NewString(),
		Operation:               rec.Operation,
		Provider:                rec.Provider,
		Model:                   rec.Model,
		StartTime:               rec.StartTime,
		EndTime:                 rec.EndTime,
		DurationMs:              rec.EndTime.Sub(rec.StartTime).Milliseconds(),
		StatusCode:              rec.StatusCode,
		Prompt:                  rec.Prompt,
		SystemInstruction:       rec.SystemInstruction,
		RawRequestJSON:          rec.RawRequestJSON,
		RawResponseJSON:         rec.RawResponseJSON,
		GeneratedText:           rec.GeneratedText,
		InputTokens:             rec.InputTokens,
		OutputTokens:            rec.OutputTokens,
		CachedContentTokenCount: rec.CachedTokens,
		ThinkingTokens:          rec.ThinkingTokens,
		TotalTokens:             rec.InputTokens + rec.OutputTokens + rec.ThinkingTokens,
		TurnID:                  rec.TurnID,
	}

	if rec.Success && a.pricing != nil {
		row.TotalCost = a.pricing.Cost(rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens, rec.ThinkingTokens)
	}

	// The caller's context may already be cancelled; the row must land
	// regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.logs.Create(ctx, row); err != nil {
		a.logger.Error("failed to write llm audit row",
			"error", err,
			"operation", rec.Operation,
			"provider", rec.Provider,
			"model", rec.Model,
		)
	}
}

// List retrieves the most recent audit rows, newest first.
func (a *Auditor) List(ctx context.Context, limit int) ([]models.LLMRequestLog, error) {
	return a.logs.List(ctx, limit)
}

// GetByRequestID retrieves one audit row by its request UUID.
func (a *Auditor) GetByRequestID(ctx context.Context, requestID string) (*models.LLMRequestLog, error) {
	return a.logs.GetByRequestID(ctx, requestID)
}

// ListByTurn retrieves every audit row attributed to a turn, oldest first.
func (a *Auditor) ListByTurn(ctx context.Context, turnID int64) ([]models.LLMRequestLog, error) {
	return a.logs.ListByTurn(ctx, turnID)
}
