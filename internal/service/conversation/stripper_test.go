package conversation

import (
	"context"
	"strings"
	"testing"

	"reverie/internal/domain/models"
	"reverie/internal/llm"
	"reverie/internal/service/settings"
)

func newStripperFixture(settingValues map[string]string, gemini, claude *fakeProvider) (*Stripper, *fakeTurnRepo) {
	turns := newFakeTurnRepo()
	factory := llm.NewFactory(gemini, claude)
	stripper := NewStripper(turns, newTestSettings(settingValues), llm.NewTechnicalCaller(factory), testLogger())
	return stripper, turns
}

// TestStripper_WorkerStripsQueuedTurn pushes one job through the background
// worker and verifies the condensed text lands on the turn.
func TestStripper_WorkerStripsQueuedTurn(t *testing.T) {
	provider := &fakeProvider{output: "  Mira asked about the gallery; Anna pointed her west.  "}
	stripper, turns := newStripperFixture(nil, provider, provider)

	turn := turns.seed(models.Turn{
		SessionID: 1,
		Input:     "where is the gallery?",
		Response:  "To the west, past the fountain.",
	})

	stripper.Start(context.Background())
	stripper.Enqueue(turn.ID)
	stripper.Stop()

	got, ok := turns.strippedWrites[turn.ID]
	if !ok {
		t.Fatal("worker never wrote stripped text")
	}
	if got != "Mira asked about the gallery; Anna pointed her west." {
		t.Errorf("stripped text not trimmed: %q", got)
	}

	in := provider.lastInput()
	if in.Operation != llm.OperationStrip {
		t.Errorf("operation = %q, want %q", in.Operation, llm.OperationStrip)
	}
	if in.Model != settings.DefaultTechnicalModel {
		t.Errorf("model = %q, want technical default %q", in.Model, settings.DefaultTechnicalModel)
	}
	if in.TurnID == nil || *in.TurnID != turn.ID {
		t.Errorf("audit turn id = %v, want %d", in.TurnID, turn.ID)
	}
}

// TestStripper_PrefersDisplayResponse verifies the strip prompt uses the
// separator-truncated response, not the raw provider text.
func TestStripper_PrefersDisplayResponse(t *testing.T) {
	provider := &fakeProvider{output: "log entry"}
	stripper, turns := newStripperFixture(nil, provider, provider)

	turn := turns.seed(models.Turn{
		SessionID:       1,
		Input:           "question",
		Response:        "visible part" + testSeparator + " hidden part",
		DisplayResponse: "visible part",
	})

	if err := stripper.Restrip(context.Background(), turn.ID, ""); err != nil {
		t.Fatalf("Restrip failed: %v", err)
	}

	prompt := provider.lastInput().Gemini.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "Assistant: visible part") {
		t.Errorf("prompt %q should contain the display response", prompt)
	}
	if strings.Contains(prompt, "hidden part") {
		t.Errorf("prompt leaked text beyond the separator: %q", prompt)
	}
}

// TestStripper_SkipsTurnWithoutResponse verifies unanswered turns are left
// alone rather than sent to the model.
func TestStripper_SkipsTurnWithoutResponse(t *testing.T) {
	provider := &fakeProvider{output: "should never be used"}
	stripper, turns := newStripperFixture(nil, provider, provider)

	turn := turns.seed(models.Turn{SessionID: 1, Input: "pending question"})

	stripper.Start(context.Background())
	stripper.Enqueue(turn.ID)
	stripper.Stop()

	if provider.callCount() != 0 {
		t.Errorf("provider called %d times for a turn with no response", provider.callCount())
	}
	if _, ok := turns.strippedWrites[turn.ID]; ok {
		t.Error("no stripped write expected")
	}
}

// TestStripper_EnqueueAfterStopDropsJob verifies a closed queue drops new
// jobs instead of panicking on the closed channel.
func TestStripper_EnqueueAfterStopDropsJob(t *testing.T) {
	provider := &fakeProvider{output: "late"}
	stripper, turns := newStripperFixture(nil, provider, provider)
	turn := turns.seed(models.Turn{SessionID: 1, Input: "q", Response: "a"})

	stripper.Start(context.Background())
	stripper.Stop()
	stripper.Enqueue(turn.ID)

	if provider.callCount() != 0 {
		t.Error("job enqueued after Stop must not run")
	}
}

// TestRestrip_ClearsBeforeRewriting verifies Restrip blanks the stored text
// first, then writes the fresh strip synchronously.
func TestRestrip_ClearsBeforeRewriting(t *testing.T) {
	provider := &fakeProvider{output: "fresh log entry"}
	stripper, turns := newStripperFixture(nil, provider, provider)

	turn := turns.seed(models.Turn{
		SessionID:    1,
		Input:        "question",
		Response:     "answer",
		StrippedTurn: "stale log entry",
	})

	if err := stripper.Restrip(context.Background(), turn.ID, ""); err != nil {
		t.Fatalf("Restrip failed: %v", err)
	}

	stored, err := turns.GetByID(context.Background(), turn.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.StrippedTurn != "fresh log entry" {
		t.Errorf("stripped text = %q, want fresh entry", stored.StrippedTurn)
	}
}

// TestRestrip_ModelOverrideRoutesByPrefix verifies an explicit claude model
// reaches the Claude provider with a Claude-shaped request.
func TestRestrip_ModelOverrideRoutesByPrefix(t *testing.T) {
	gemini := &fakeProvider{output: "gemini strip"}
	claude := &fakeProvider{name: llm.ProviderClaude, output: "claude strip"}
	stripper, turns := newStripperFixture(nil, gemini, claude)

	turn := turns.seed(models.Turn{SessionID: 1, Input: "question", Response: "answer"})

	if err := stripper.Restrip(context.Background(), turn.ID, "claude-sonnet-4-5"); err != nil {
		t.Fatalf("Restrip failed: %v", err)
	}

	if gemini.callCount() != 0 {
		t.Error("gemini provider should not be called for a claude model")
	}
	in := claude.lastInput()
	if in.Claude == nil || in.Gemini != nil {
		t.Fatalf("expected a Claude-shaped request, got %+v", in)
	}
	if in.Claude.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q", in.Claude.Model)
	}
	if turns.strippedWrites[turn.ID] != "claude strip" {
		t.Errorf("stripped text = %q", turns.strippedWrites[turn.ID])
	}
}

// TestRestrip_FailedVerdictLeavesTurnCleared verifies a model refusal leaves
// the cleared text in place and surfaces the error.
func TestRestrip_FailedVerdictLeavesTurnCleared(t *testing.T) {
	provider := &fakeProvider{fail: true, output: "SAFETY"}
	stripper, turns := newStripperFixture(nil, provider, provider)

	turn := turns.seed(models.Turn{
		SessionID:    1,
		Input:        "question",
		Response:     "answer",
		StrippedTurn: "stale",
	})

	if err := stripper.Restrip(context.Background(), turn.ID, ""); err == nil {
		t.Fatal("expected error from failed verdict")
	}

	stored, _ := turns.GetByID(context.Background(), turn.ID)
	if stored.StrippedTurn != "" {
		t.Errorf("failed restrip should leave the text cleared, got %q", stored.StrippedTurn)
	}
}

// TestClearAllStripped blanks every turn in one session and leaves other
// sessions untouched.
func TestClearAllStripped(t *testing.T) {
	provider := &fakeProvider{}
	stripper, turns := newStripperFixture(nil, provider, provider)

	first := turns.seed(models.Turn{SessionID: 1, Input: "q1", Response: "a1", StrippedTurn: "log 1"})
	second := turns.seed(models.Turn{SessionID: 1, Input: "q2", Response: "a2", StrippedTurn: "log 2"})
	other := turns.seed(models.Turn{SessionID: 2, Input: "q3", Response: "a3", StrippedTurn: "log 3"})

	cleared, err := stripper.ClearAllStripped(context.Background(), 1)
	if err != nil {
		t.Fatalf("ClearAllStripped failed: %v", err)
	}
	if cleared != 2 {
		t.Errorf("cleared = %d, want 2", cleared)
	}

	for _, id := range []int64{first.ID, second.ID} {
		stored, _ := turns.GetByID(context.Background(), id)
		if stored.StrippedTurn != "" {
			t.Errorf("turn %d still has stripped text %q", id, stored.StrippedTurn)
		}
	}
	stored, _ := turns.GetByID(context.Background(), other.ID)
	if stored.StrippedTurn != "log 3" {
		t.Errorf("other session should be untouched, got %q", stored.StrippedTurn)
	}
}
