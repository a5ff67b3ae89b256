package conversation

import (
	"context"
	"testing"

	"reverie/internal/domain/models"
)

func TestIsOOC(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain input", "how are you?", false},
		{"ooc lowercase", "[ooc] pause the scene", true},
		{"ooc uppercase", "[OOC] pause the scene", true},
		{"ooc mixed case", "[OoC] pause", true},
		{"leading whitespace", "   [ooc] hold on", true},
		{"ooc mid-sentence only", "she said [ooc] quietly", false},
		{"bracket without token", "[occ] typo", false},
		{"empty", "", false},
		{"just the token", "[ooc]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOOC(tt.input); got != tt.want {
				t.Errorf("IsOOC(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStateBuilder_Defaults(t *testing.T) {
	builder := NewStateBuilder(newTestSettings(nil), &fakeSystemMessageRepo{}, newFakeContextDataRepo(), testLogger())

	session := &models.Session{ID: 1, ProfileID: 1}
	turn := &models.Turn{ID: 100, SessionID: 1, Input: "hello"}

	state, err := builder.Build(context.Background(), session, turn)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if state.RecentTurnsCount != 6 {
		t.Errorf("expected default recent turns 6, got %d", state.RecentTurnsCount)
	}
	if state.MaxDialogueLogTurns != 50 {
		t.Errorf("expected default dialogue log turns 50, got %d", state.MaxDialogueLogTurns)
	}
	if state.Persona != "" {
		t.Errorf("expected no persona, got %q", state.Persona)
	}
	if state.UserName != "User" {
		t.Errorf("expected fallback user name, got %q", state.UserName)
	}
	if state.IsOOCRequest {
		t.Error("plain input must not be flagged OOC")
	}
}

func TestStateBuilder_SettingsOverrides(t *testing.T) {
	settings := newTestSettings(map[string]string{
		"PreviousTurnsCount":  "2",
		"MaxDialogueLogTurns": "10",
	})
	builder := NewStateBuilder(settings, &fakeSystemMessageRepo{}, newFakeContextDataRepo(), testLogger())

	state, err := builder.Build(context.Background(), &models.Session{ID: 1, ProfileID: 1}, &models.Turn{ID: 100, Input: "hi"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if state.RecentTurnsCount != 2 {
		t.Errorf("expected recent turns 2, got %d", state.RecentTurnsCount)
	}
	if state.MaxDialogueLogTurns != 10 {
		t.Errorf("expected dialogue log turns 10, got %d", state.MaxDialogueLogTurns)
	}
}

func TestStateBuilder_PersonaAndOOC(t *testing.T) {
	messages := &fakeSystemMessageRepo{
		messages: []models.SystemMessage{
			{ID: 3, ProfileID: 1, Name: "Ayumi", Content: "You are Ayumi.", Type: models.SystemMessagePersona, IsActive: true},
		},
	}
	builder := NewStateBuilder(newTestSettings(nil), messages, newFakeContextDataRepo(), testLogger())

	state, err := builder.Build(context.Background(), &models.Session{ID: 1, ProfileID: 1}, &models.Turn{ID: 100, Input: "[ooc] what model are you?"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if state.Persona != "You are Ayumi." {
		t.Errorf("expected persona content, got %q", state.Persona)
	}
	if state.PersonaName != "Ayumi" {
		t.Errorf("expected persona name Ayumi, got %q", state.PersonaName)
	}
	if state.PersonaID != 3 {
		t.Errorf("expected persona id 3, got %d", state.PersonaID)
	}
	if !state.IsOOCRequest {
		t.Error("expected OOC flag set")
	}
}

// TestStateBuilder_UserResolution verifies the priority order: the user
// CharacterProfile wins over a user-profile message, which wins over the
// generic fallback.
func TestStateBuilder_UserResolution(t *testing.T) {
	t.Run("character profile wins", func(t *testing.T) {
		contextData := newFakeContextDataRepo(models.ContextData{
			ID:           8,
			ProfileID:    1,
			Name:         "Jo",
			Content:      "Jo is a night-shift nurse.",
			Type:         models.ContextTypeCharacterProfile,
			Availability: models.AvailabilityAlwaysOn,
			IsEnabled:    true,
			IsUser:       true,
		})
		messages := &fakeSystemMessageRepo{
			messages: []models.SystemMessage{
				{ID: 4, ProfileID: 1, Name: "OldName", Type: models.SystemMessageContextFile, IsActive: true, IsUserProfile: true},
			},
		}
		builder := NewStateBuilder(newTestSettings(nil), messages, contextData, testLogger())

		state, err := builder.Build(context.Background(), &models.Session{ID: 1, ProfileID: 1}, &models.Turn{ID: 100, Input: "hi"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if state.UserName != "Jo" {
			t.Errorf("expected user name Jo, got %q", state.UserName)
		}
		if got := state.UserProfile(); got == nil || got.ID != 8 {
			t.Errorf("expected user profile id 8, got %v", got)
		}
	})

	t.Run("message supplies only the name", func(t *testing.T) {
		messages := &fakeSystemMessageRepo{
			messages: []models.SystemMessage{
				{ID: 4, ProfileID: 1, Name: "Sam", Type: models.SystemMessageContextFile, IsActive: true, IsUserProfile: true},
			},
		}
		builder := NewStateBuilder(newTestSettings(nil), messages, newFakeContextDataRepo(), testLogger())

		state, err := builder.Build(context.Background(), &models.Session{ID: 1, ProfileID: 1}, &models.Turn{ID: 100, Input: "hi"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if state.UserName != "Sam" {
			t.Errorf("expected user name Sam, got %q", state.UserName)
		}
		if state.UserProfile() != nil {
			t.Error("message-based resolution must not fill the profile slot")
		}
	})

	t.Run("fallback", func(t *testing.T) {
		builder := NewStateBuilder(newTestSettings(nil), &fakeSystemMessageRepo{}, newFakeContextDataRepo(), testLogger())

		state, err := builder.Build(context.Background(), &models.Session{ID: 1, ProfileID: 1}, &models.Turn{ID: 100, Input: "hi"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if state.UserName != "User" {
			t.Errorf("expected fallback name, got %q", state.UserName)
		}
	})
}
