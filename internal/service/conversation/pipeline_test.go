package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/llm"
	"reverie/internal/service/profile"
)

// pipelineFixture wires a full pipeline over the in-memory fakes.
type pipelineFixture struct {
	sessions    *fakeSessionRepo
	turns       *fakeTurnRepo
	contextData *fakeContextDataRepo
	flags       *fakeFlagRepo
	messages    *fakeSystemMessageRepo
	provider    *fakeProvider
	stripper    *Stripper
	pipeline    *Pipeline
}

func newPipelineFixture(settingValues map[string]string, provider *fakeProvider, enrichers ...Enricher) *pipelineFixture {
	logger := testLogger()
	svc := newTestSettings(settingValues)

	fx := &pipelineFixture{
		sessions: &fakeSessionRepo{active: map[int64]*models.Session{
			1: {ID: 1, ProfileID: 1, IsActive: true},
		}},
		turns:       newFakeTurnRepo(),
		contextData: newFakeContextDataRepo(),
		flags:       &fakeFlagRepo{},
		messages:    &fakeSystemMessageRepo{},
		provider:    provider,
	}

	factory := llm.NewFactory(provider, provider)
	fx.stripper = NewStripper(fx.turns, svc, llm.NewTechnicalCaller(factory), logger)

	fx.pipeline = NewPipeline(
		profile.NewActiveCache(&fakeProfileRepo{activeID: 1}),
		fx.sessions,
		fx.turns,
		fx.contextData,
		fx.flags,
		svc,
		NewStateBuilder(svc, fx.messages, fx.contextData, logger),
		NewOrchestrator(logger, enrichers...),
		NewRequestBuilder(svc, fx.messages, testSeparator),
		factory,
		fx.stripper,
		logger,
	)
	return fx
}

// stubEnricher fails enrichment with a fixed cause.
type stubEnricher struct {
	cause error
}

func (s *stubEnricher) Name() string { return "stub" }

func (s *stubEnricher) Enrich(ctx context.Context, state *State) error { return s.cause }

// TestPipeline_ProcessInput runs a full successful turn: history and flags
// enriched, provider dispatched, response persisted and truncated, strip job
// queued, and post-turn housekeeping executed.
func TestPipeline_ProcessInput(t *testing.T) {
	provider := &fakeProvider{output: "She waves from the gallery." + testSeparator + "\nprivate notes"}
	fx := newPipelineFixture(nil, provider)
	fx.pipeline.orchestrator = NewOrchestrator(testLogger(),
		NewTurnHistoryEnricher(fx.turns),
		NewFlagEnricher(fx.flags),
	)

	fx.turns.seed(models.Turn{
		ID: 1, SessionID: 1, Input: "earlier question",
		Response: "earlier reply", DisplayResponse: "earlier reply", Accepted: true,
	})
	fx.flags.flags = []models.Flag{{ID: 1, ProfileID: 1, Value: "Stay in the gallery scene.", Active: true}}

	turn, err := fx.pipeline.ProcessInput(context.Background(), "where is she now?")
	if err != nil {
		t.Fatalf("ProcessInput failed: %v", err)
	}
	if turn.ID != 2 {
		t.Fatalf("expected turn id 2, got %d", turn.ID)
	}

	// Verify: persisted row keeps the raw response, display truncated at the
	// separator.
	stored := fx.turns.get(turn.ID)
	if !strings.Contains(stored.Response, "private notes") {
		t.Errorf("expected the raw response persisted, got %q", stored.Response)
	}
	if stored.DisplayResponse != "She waves from the gallery." {
		t.Errorf("expected the display response truncated, got %q", stored.DisplayResponse)
	}
	if !stored.Accepted {
		t.Error("expected a successful turn to stay accepted")
	}

	// Verify: dispatch envelope.
	in := provider.lastInput()
	if in.Operation != llm.OperationTurn {
		t.Errorf("expected operation %s, got %s", llm.OperationTurn, in.Operation)
	}
	if in.Gemini == nil {
		t.Fatal("expected a Gemini request for the default provider")
	}
	if in.Model != "gemini-2.5-flash" {
		t.Errorf("expected the default Gemini model, got %q", in.Model)
	}
	if in.TurnID == nil || *in.TurnID != turn.ID {
		t.Errorf("expected the dispatch tagged with turn %d, got %v", turn.ID, in.TurnID)
	}
	if len(in.Gemini.Contents) != 3 {
		t.Errorf("expected 3 contents (one pair plus input), got %d", len(in.Gemini.Contents))
	}
	system := in.Gemini.SystemInstruction.Parts[0].Text
	if !strings.Contains(system, "Stay in the gallery scene.") {
		t.Error("expected the active flag in the system instruction")
	}

	// Verify: strip job queued, overrides cleared, flags consumed.
	if got := len(fx.stripper.jobs); got != 1 {
		t.Errorf("expected 1 queued strip job, got %d", got)
	}
	if len(fx.contextData.postTurnProfiles) != 1 || fx.contextData.postTurnProfiles[0] != 1 {
		t.Errorf("expected post-turn processing for profile 1, got %v", fx.contextData.postTurnProfiles)
	}
	if len(fx.flags.consumed) != 1 {
		t.Errorf("expected flags consumed once, got %v", fx.flags.consumed)
	}
	if fx.flags.flags[0].Active {
		t.Error("expected the non-constant flag deactivated after the turn")
	}
}

func TestPipeline_NoActiveSession(t *testing.T) {
	fx := newPipelineFixture(nil, &fakeProvider{output: "unused"})
	fx.sessions.active = map[int64]*models.Session{}

	turn, err := fx.pipeline.ProcessInput(context.Background(), "anyone here?")
	if !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if turn != nil {
		t.Errorf("expected no turn, got %+v", turn)
	}
	if len(fx.turns.turns) != 0 {
		t.Error("expected no turn row created")
	}
}

// TestPipeline_EnrichmentFailure verifies a failed enricher aborts dispatch
// but still leaves an error-marked turn row behind.
func TestPipeline_EnrichmentFailure(t *testing.T) {
	provider := &fakeProvider{output: "unused"}
	fx := newPipelineFixture(nil, provider, &stubEnricher{cause: errors.New("vector store offline")})

	turn, err := fx.pipeline.ProcessInput(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEnrichmentFailure) {
		t.Fatalf("expected ErrEnrichmentFailure, got %v", err)
	}
	if turn == nil {
		t.Fatal("expected the created turn returned alongside the error")
	}

	stored := fx.turns.get(turn.ID)
	if !strings.HasPrefix(stored.Response, "Error: ") {
		t.Errorf("expected an error marker on the turn, got %q", stored.Response)
	}
	if !strings.Contains(stored.Response, "vector store offline") {
		t.Errorf("expected the cause in the marker, got %q", stored.Response)
	}
	if provider.callCount() != 0 {
		t.Error("expected no dispatch after enrichment failure")
	}
	if len(fx.contextData.postTurnProfiles) != 0 {
		t.Error("expected no housekeeping after enrichment failure")
	}
}

// TestPipeline_ProviderDeclines verifies an unsuccessful provider verdict is
// persisted as a rejected turn and surfaced as a provider error.
func TestPipeline_ProviderDeclines(t *testing.T) {
	provider := &fakeProvider{fail: true, output: "quota exceeded"}
	fx := newPipelineFixture(nil, provider)

	turn, err := fx.pipeline.ProcessInput(context.Background(), "hello")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	var pErr *domain.ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected a ProviderError, got %T", err)
	}
	if pErr.Provider != llm.ProviderGemini {
		t.Errorf("expected provider %s in the error, got %s", llm.ProviderGemini, pErr.Provider)
	}

	stored := fx.turns.get(turn.ID)
	if stored.Accepted {
		t.Error("expected the declined turn marked rejected")
	}
	if stored.Response != "quota exceeded" {
		t.Errorf("expected the provider text persisted, got %q", stored.Response)
	}
	if got := len(fx.stripper.jobs); got != 0 {
		t.Errorf("expected no strip job for a declined turn, got %d", got)
	}
	if len(fx.contextData.postTurnProfiles) != 0 {
		t.Error("expected no housekeeping for a declined turn")
	}
}

func TestPipeline_DispatchErrorMarksTurn(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection reset")}
	fx := newPipelineFixture(nil, provider)

	turn, err := fx.pipeline.ProcessInput(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected a dispatch error")
	}
	if turn == nil {
		t.Fatal("expected the created turn returned alongside the error")
	}

	stored := fx.turns.get(turn.ID)
	if stored.Response != "Error: connection reset" {
		t.Errorf("expected the error marker persisted, got %q", stored.Response)
	}
	if got := len(fx.stripper.jobs); got != 0 {
		t.Errorf("expected no strip job after a dispatch error, got %d", got)
	}
}

func TestPipeline_ClaudeProvider(t *testing.T) {
	provider := &fakeProvider{name: llm.ProviderClaude, output: "done"}
	fx := newPipelineFixture(map[string]string{"LLMProvider": "Claude"}, provider)

	if _, err := fx.pipeline.ProcessInput(context.Background(), "hello"); err != nil {
		t.Fatalf("ProcessInput failed: %v", err)
	}

	in := provider.lastInput()
	if in.Claude == nil {
		t.Fatal("expected a Claude request")
	}
	if in.Gemini != nil {
		t.Error("expected no Gemini request for the Claude provider")
	}
	if in.Model != "claude-sonnet-4-5" {
		t.Errorf("expected the model from the Claude request, got %q", in.Model)
	}
}

// TestPipeline_BuildRequest verifies the dry-run path stops short of dispatch
// and the caller can roll the created turn back.
func TestPipeline_BuildRequest(t *testing.T) {
	provider := &fakeProvider{output: "unused"}
	fx := newPipelineFixture(nil, provider)

	state, turn, err := fx.pipeline.BuildRequest(context.Background(), "probe input")
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}
	if state.GeminiRequest == nil {
		t.Error("expected the request rendered on the state")
	}
	if provider.callCount() != 0 {
		t.Error("expected no dispatch from BuildRequest")
	}

	if err := fx.pipeline.DeleteTurn(context.Background(), turn.ID); err != nil {
		t.Fatalf("DeleteTurn failed: %v", err)
	}
	if len(fx.turns.deleted) != 1 || fx.turns.deleted[0] != turn.ID {
		t.Errorf("expected turn %d deleted, got %v", turn.ID, fx.turns.deleted)
	}
}
