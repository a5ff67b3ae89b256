package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
	"reverie/internal/llm"
	"reverie/internal/service/settings"
	"reverie/internal/vector"
)

// Search breadth. Quote and voice-sample collections are searched wider
// because their entries are short and budgets admit many of them.
const (
	semanticBaseK  = uint64(20)
	semanticWideK  = 5 * semanticBaseK
	queryTurnCount = 2
)

const queryTransformSystem = "You rewrite a chat message into a short standalone search query. " +
	"Resolve pronouns and references using the provided context. " +
	"Reply with the query only, no explanation."

// SemanticRetriever turns the current input into a query vector and selects
// the best-scoring context entries per type within token budgets. It is
// best-effort: every failure degrades to an empty result with a warning.
type SemanticRetriever struct {
	settings    *settings.Service
	contextData repositories.ContextDataRepository
	turns       repositories.TurnRepository
	store       vector.Store
	embedder    llm.Embedder
	technical   *llm.TechnicalCaller
	logger      *slog.Logger
}

// NewSemanticRetriever creates a semantic retriever
func NewSemanticRetriever(
	settings *settings.Service,
	contextData repositories.ContextDataRepository,
	turns repositories.TurnRepository,
	store vector.Store,
	embedder llm.Embedder,
	technical *llm.TechnicalCaller,
	logger *slog.Logger,
) *SemanticRetriever {
	return &SemanticRetriever{
		settings:    settings,
		contextData: contextData,
		turns:       turns,
		store:       store,
		embedder:    embedder,
		technical:   technical,
		logger:      logger,
	}
}

// Retrieve runs the full semantic pass for the state: query string, one
// embedding, concurrent per-type searches, and the token-budget walk. The
// returned map holds only types that produced at least one selection.
func (r *SemanticRetriever) Retrieve(ctx context.Context, state *State) map[models.ContextType][]*models.ContextData {
	budgets := r.settings.SemanticQuotas(ctx)

	active := 0
	for _, budget := range budgets {
		if budget > 0 {
			active++
		}
	}
	if active == 0 {
		return map[models.ContextType][]*models.ContextData{}
	}

	query := r.queryString(ctx, state)

	vecs, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		r.logger.Warn("semantic retrieval skipped: embedding failed", "error", err)
		return map[models.ContextType][]*models.ContextData{}
	}
	queryVec := vecs[0]

	results := make(map[models.ContextType][]*models.ContextData, active)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for t, budget := range budgets {
		if budget <= 0 {
			continue
		}
		g.Go(func() error {
			selected, err := r.retrieveType(gctx, state.Session.ProfileID, t, queryVec, budget)
			if err != nil {
				return fmt.Errorf("type %s: %w", t, err)
			}
			if len(selected) > 0 {
				mu.Lock()
				results[t] = selected
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("semantic retrieval skipped: search failed", "error", err)
		return map[models.ContextType][]*models.ContextData{}
	}

	return results
}

// retrieveType searches one collection and applies the token-budget walk to
// the ranked rows.
func (r *SemanticRetriever) retrieveType(ctx context.Context, profileID int64, t models.ContextType, queryVec []float32, budget int) ([]*models.ContextData, error) {
	collection, err := vector.CollectionFor(t)
	if err != nil {
		return nil, err
	}

	k := semanticBaseK
	if t == models.ContextTypeQuote || t == models.ContextTypePersonaVoiceSample {
		k = semanticWideK
	}

	hits, err := r.store.Search(ctx, collection, queryVec, k, profileID)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.DBPK
	}
	rows, err := r.contextData.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.ContextData, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	ranked := make([]*models.ContextData, 0, len(hits))
	for _, hit := range hits {
		row, ok := byID[hit.DBPK]
		if !ok || !row.IsEnabled || row.IsArchived {
			continue
		}
		row.RelevanceScore = float64(hit.Score)
		ranked = append(ranked, row)
	}

	return selectWithinBudget(ranked, budget), nil
}

// selectWithinBudget walks the ranked candidates accumulating token counts.
// An item is taken when its count is known and either fits the remaining
// budget or is the first taken (so a type with any candidates yields at
// least one). The walk stops at the first rejection.
func selectWithinBudget(ranked []*models.ContextData, budget int) []*models.ContextData {
	var selected []*models.ContextData
	acc := 0
	for _, item := range ranked {
		if item.TokenCount == nil || *item.TokenCount <= 0 {
			break
		}
		tc := *item.TokenCount
		if acc+tc > budget && acc != 0 {
			break
		}
		selected = append(selected, item)
		acc += tc
	}
	return selected
}

// queryString produces the text to embed. With LLM query transformation
// enabled the technical model condenses the input plus a short history
// window into a standalone query; any failure falls back to the raw input.
func (r *SemanticRetriever) queryString(ctx context.Context, state *State) string {
	input := state.CurrentTurn.Input
	if !r.settings.Bool(ctx, settings.KeySemanticUseLLMQueryTransformation, true) {
		return input
	}

	var sb strings.Builder
	recent, err := r.turns.GetRecentAccepted(ctx, state.Session.ID, queryTurnCount, state.CurrentTurn.ID)
	if err != nil {
		r.logger.Warn("query transform context unavailable", "error", err)
	} else {
		for _, turn := range recent {
			fmt.Fprintf(&sb, "%s: %s\n%s: %s\n", state.UserName, turn.Input, state.PersonaName, turn.DisplayResponse)
		}
	}
	fmt.Fprintf(&sb, "%s: %s", state.UserName, input)

	model := r.settings.String(ctx, settings.KeyTechnicalModel, settings.DefaultTechnicalModel)
	out, err := r.technical.Generate(ctx, llm.TechnicalRequest{
		Operation: llm.OperationQueryTransform,
		Model:     model,
		System:    queryTransformSystem,
		Prompt:    sb.String(),
		MaxTokens: 256,
		TurnID:    &state.CurrentTurn.ID,
	})
	if err != nil || !out.Success || strings.TrimSpace(out.Text) == "" {
		if err != nil {
			r.logger.Warn("query transform failed, using raw input", "error", err)
		}
		return input
	}
	return strings.TrimSpace(out.Text)
}
