// Package conversation implements the turn pipeline: state building,
// parallel enrichment, provider request rendering, dispatch, persistence,
// and asynchronous turn stripping.
package conversation

import (
	"sync"

	"reverie/internal/domain/models"
)

// State is the per-turn working set the enrichers cooperatively populate.
// The per-type collections, perceptions, flags, semantic provenance, and
// recent turns are written by concurrent enrichers and are guarded by the
// mutex. Scalar fields are each written by exactly one writer (the builder
// or a single enricher) and read only after the enrichment join.
type State struct {
	Session     *models.Session
	CurrentTurn *models.Turn

	RecentTurnsCount    int
	MaxDialogueLogTurns int

	Persona      string
	PersonaName  string
	PersonaID    int64
	UserName     string
	IsOOCRequest bool
	ProviderName string

	PreviousTurn     *models.Turn
	PreviousResponse string
	DialogueLog      string
	RecentContext    string

	GeminiRequest *models.GeminiRequest
	ClaudeRequest *models.ClaudeRequest

	mu   sync.Mutex
	byID map[int64]struct{}

	quotes            []*models.ContextData
	voiceSamples      []*models.ContextData
	memories          []*models.ContextData
	insights          []*models.ContextData
	characterProfiles []*models.ContextData
	data              []*models.ContextData
	userProfile       *models.ContextData

	// Provenance: which state entries arrived via semantic retrieval or a
	// trigger match. Entries also live in the per-type collections above.
	semantic  map[models.ContextType][]*models.ContextData
	triggered []*models.ContextData

	perceptions []string
	flags       []models.Flag
	recentTurns []models.Turn
}

// NewState creates a state seeded with the session and the freshly created
// turn row.
func NewState(session *models.Session, turn *models.Turn) *State {
	return &State{
		Session:     session,
		CurrentTurn: turn,
		byID:        make(map[int64]struct{}),
		semantic:    make(map[models.ContextType][]*models.ContextData),
	}
}

// AddContextData routes the item to its type's collection. The add is a
// no-op when an item with the same id already exists anywhere in the state,
// the user profile slot included. Reports whether the item was added.
func (s *State) AddContextData(item *models.ContextData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(item)
}

// AddContextDataRange adds every item with the same uniqueness guarantee.
func (s *State) AddContextDataRange(items []*models.ContextData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.addLocked(item)
	}
}

func (s *State) addLocked(item *models.ContextData) bool {
	if item == nil {
		return false
	}
	if _, dup := s.byID[item.ID]; dup {
		return false
	}
	s.byID[item.ID] = struct{}{}

	switch item.Type {
	case models.ContextTypeQuote:
		s.quotes = append(s.quotes, item)
	case models.ContextTypePersonaVoiceSample:
		s.voiceSamples = append(s.voiceSamples, item)
	case models.ContextTypeMemory:
		s.memories = append(s.memories, item)
	case models.ContextTypeInsight:
		s.insights = append(s.insights, item)
	case models.ContextTypeCharacterProfile:
		s.characterProfiles = append(s.characterProfiles, item)
	default:
		s.data = append(s.data, item)
	}
	return true
}

// AddTriggered adds a trigger-matched item and records its provenance so the
// request builder can render it in the triggered block. Items already in
// state are not re-added and gain no trigger provenance.
func (s *State) AddTriggered(item *models.ContextData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.addLocked(item) {
		return false
	}
	s.triggered = append(s.triggered, item)
	return true
}

// AddSemanticResults adds retrieved items for one type, keeping only those
// not already in state, and records their provenance for the grouped
// rendering.
func (s *State) AddSemanticResults(t models.ContextType, items []*models.ContextData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if s.addLocked(item) {
			s.semantic[t] = append(s.semantic[t], item)
		}
	}
}

// SetUserProfile places the item into the distinguished user-profile slot.
// If the same id was already added to a collection it is moved out so it
// cannot render twice.
func (s *State) SetUserProfile(item *models.ContextData) {
	if item == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byID[item.ID]; dup {
		s.characterProfiles = removeByID(s.characterProfiles, item.ID)
	}
	s.byID[item.ID] = struct{}{}
	s.userProfile = item
}

func removeByID(items []*models.ContextData, id int64) []*models.ContextData {
	for i, item := range items {
		if item.ID == id {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

// GetAllContextData returns a snapshot of every context entry, unique by id,
// with the user profile (when set) first.
func (s *State) GetAllContextData() []*models.ContextData {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*models.ContextData, 0, len(s.byID))
	if s.userProfile != nil {
		all = append(all, s.userProfile)
	}
	for _, group := range [][]*models.ContextData{
		s.quotes, s.voiceSamples, s.memories, s.insights, s.characterProfiles, s.data,
	} {
		all = append(all, group...)
	}
	return all
}

// Snapshot accessors. Each returns a copied slice so callers never race the
// enrichers.

func (s *State) Quotes() []*models.ContextData { return s.snapshot(&s.quotes) }

func (s *State) VoiceSamples() []*models.ContextData { return s.snapshot(&s.voiceSamples) }

func (s *State) Memories() []*models.ContextData { return s.snapshot(&s.memories) }

func (s *State) Insights() []*models.ContextData { return s.snapshot(&s.insights) }

func (s *State) CharacterProfiles() []*models.ContextData { return s.snapshot(&s.characterProfiles) }

func (s *State) Data() []*models.ContextData { return s.snapshot(&s.data) }

func (s *State) snapshot(group *[]*models.ContextData) []*models.ContextData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ContextData, len(*group))
	copy(out, *group)
	return out
}

// UserProfile returns the distinguished user CharacterProfile, or nil.
func (s *State) UserProfile() *models.ContextData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userProfile
}

// Semantic returns the semantic-provenance entries grouped by type.
func (s *State) Semantic() map[models.ContextType][]*models.ContextData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.ContextType][]*models.ContextData, len(s.semantic))
	for t, items := range s.semantic {
		copied := make([]*models.ContextData, len(items))
		copy(copied, items)
		out[t] = copied
	}
	return out
}

// Triggered returns the trigger-provenance entries in match order.
func (s *State) Triggered() []*models.ContextData { return s.snapshot(&s.triggered) }

// AddPerception appends one rendered perception output.
func (s *State) AddPerception(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perceptions = append(s.perceptions, p)
}

// Perceptions returns the collected perception outputs.
func (s *State) Perceptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.perceptions))
	copy(out, s.perceptions)
	return out
}

// AddFlags appends active flags.
func (s *State) AddFlags(flags []models.Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flags...)
}

// Flags returns the collected flags.
func (s *State) Flags() []models.Flag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Flag, len(s.flags))
	copy(out, s.flags)
	return out
}

// SetRecentTurns stores the history window, oldest first.
func (s *State) SetRecentTurns(turns []models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentTurns = turns
}

// RecentTurns returns the history window, oldest first.
func (s *State) RecentTurns() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.recentTurns))
	copy(out, s.recentTurns)
	return out
}

// Summary counts state content per slot, used by the debug endpoint.
func (s *State) Summary() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int{
		"quotes":            len(s.quotes),
		"voiceSamples":      len(s.voiceSamples),
		"memories":          len(s.memories),
		"insights":          len(s.insights),
		"characterProfiles": len(s.characterProfiles),
		"data":              len(s.data),
		"triggered":         len(s.triggered),
		"perceptions":       len(s.perceptions),
		"flags":             len(s.flags),
		"recentTurns":       len(s.recentTurns),
	}
	if s.userProfile != nil {
		counts["userProfile"] = 1
	}
	semantic := 0
	for _, items := range s.semantic {
		semantic += len(items)
	}
	counts["semantic"] = semantic
	return counts
}
