package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reverie/internal/config"
	"reverie/internal/domain/models"
	"reverie/internal/httputil"
	"reverie/internal/service/conversation"
)

// ConversationHandler handles turn pipeline HTTP requests
type ConversationHandler struct {
	pipeline *conversation.Pipeline
	turns    *conversation.TurnService
	stripper *conversation.Stripper
	logger   *slog.Logger
}

// NewConversationHandler creates a conversation handler
func NewConversationHandler(
	pipeline *conversation.Pipeline,
	turns *conversation.TurnService,
	stripper *conversation.Stripper,
	logger *slog.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		pipeline: pipeline,
		turns:    turns,
		stripper: stripper,
		logger:   logger,
	}
}

// InputRequest is the body for turn processing endpoints.
type InputRequest struct {
	Input string `json:"input"`
}

// ProcessInput runs one full turn against the active session.
// POST /api/conversation
func (h *ConversationHandler) ProcessInput(w http.ResponseWriter, r *http.Request) {
	input, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	turn, err := h.pipeline.ProcessInput(r.Context(), input)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// debugResponse is the BuildRequest-only inspection payload.
type debugResponse struct {
	ProviderName      string                `json:"providerName"`
	State             debugState            `json:"state"`
	LoadedContextData debugContextData      `json:"loadedContextData"`
	GeminiRequest     *models.GeminiRequest `json:"geminiRequest,omitempty"`
	ClaudeRequest     *models.ClaudeRequest `json:"claudeRequest,omitempty"`
}

type debugState struct {
	SessionID           int64         `json:"sessionId"`
	TurnID              int64         `json:"turnId"`
	PersonaName         string        `json:"personaName"`
	UserName            string        `json:"userName"`
	IsOOCRequest        bool          `json:"isOocRequest"`
	RecentTurnsCount    int           `json:"recentTurnsCount"`
	MaxDialogueLogTurns int           `json:"maxDialogueLogTurns"`
	RecentContext       string        `json:"recentContext"`
	DialogueLog         string        `json:"dialogueLog"`
	Perceptions         []string      `json:"perceptions"`
	Flags               []models.Flag `json:"flags"`
}

type debugContextData struct {
	Items   []*models.ContextData `json:"items"`
	Summary map[string]int        `json:"summary"`
}

// Debug runs the pipeline through request building and returns everything
// the dispatch would have seen. The scratch turn row is deleted before
// responding; the LLM is never invoked.
// POST /api/conversation/debug
func (h *ConversationHandler) Debug(w http.ResponseWriter, r *http.Request) {
	input, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	state, turn, err := h.pipeline.BuildRequest(r.Context(), input)
	if turn != nil {
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
			defer cancel()
			if derr := h.pipeline.DeleteTurn(cleanupCtx, turn.ID); derr != nil {
				h.logger.Error("failed to delete debug turn", "turn_id", turn.ID, "error", derr)
			}
		}()
	}
	if err != nil {
		handleError(w, err)
		return
	}

	resp := debugResponse{
		ProviderName: state.ProviderName,
		State: debugState{
			SessionID:           state.Session.ID,
			TurnID:              turn.ID,
			PersonaName:         state.PersonaName,
			UserName:            state.UserName,
			IsOOCRequest:        state.IsOOCRequest,
			RecentTurnsCount:    state.RecentTurnsCount,
			MaxDialogueLogTurns: state.MaxDialogueLogTurns,
			RecentContext:       state.RecentContext,
			DialogueLog:         state.DialogueLog,
			Perceptions:         state.Perceptions(),
			Flags:               state.Flags(),
		},
		LoadedContextData: debugContextData{
			Items:   state.GetAllContextData(),
			Summary: state.Summary(),
		},
		GeminiRequest: state.GeminiRequest,
		ClaudeRequest: state.ClaudeRequest,
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// ListTurns retrieves a session's turns, oldest first.
// GET /api/conversation/turns/{sessionId}
func (h *ConversationHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionId")
	if !ok {
		return
	}

	turns, err := h.turns.ListBySession(r.Context(), sessionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turns)
}

// ToggleReject flips the turn's accepted flag.
// PUT /api/conversation/turns/{id}/reject
func (h *ConversationHandler) ToggleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	turn, err := h.turns.ToggleReject(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// UpdateResponse replaces the turn's response text.
// PUT /api/conversation/turns/{id}/response
func (h *ConversationHandler) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Response string `json:"response"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.turns.EditResponse(r.Context(), id, req.Response)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// UpdateInput replaces the turn's user input.
// PUT /api/conversation/turns/{id}/input
func (h *ConversationHandler) UpdateInput(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Input     string  `json:"input"`
		JSONInput *string `json:"jsonInput"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.turns.EditInput(r.Context(), id, req.Input, req.JSONInput)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// UpdateStripped replaces the turn's condensed log text.
// PUT /api/conversation/turns/{id}/stripped
func (h *ConversationHandler) UpdateStripped(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		StrippedTurn string `json:"strippedTurn"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.turns.EditStripped(r.Context(), id, req.StrippedTurn)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// Restrip clears the turn's stripped text and re-runs stripping
// synchronously, optionally on a specific model.
// POST /api/conversation/turns/{id}/restrip
func (h *ConversationHandler) Restrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.stripper.Restrip(r.Context(), id, req.Model); err != nil {
		handleError(w, err)
		return
	}

	turn, err := h.turns.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// ClearAllStripped blanks the stripped text of every turn in the session.
// POST /api/conversation/sessions/{sessionId}/clear-all-stripped
func (h *ConversationHandler) ClearAllStripped(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionId")
	if !ok {
		return
	}

	cleared, err := h.stripper.ClearAllStripped(r.Context(), sessionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
}

// parseInput reads and bounds-checks the {input} body shared by the process
// and debug endpoints.
func (h *ConversationHandler) parseInput(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req InputRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}

	if strings.TrimSpace(req.Input) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "input is required")
		return "", false
	}
	if len(req.Input) > config.MaxInputLength {
		httputil.RespondError(w, http.StatusBadRequest, "input exceeds maximum length")
		return "", false
	}

	return req.Input, true
}
