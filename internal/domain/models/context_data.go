package models

import "time"

// ContextType classifies a ContextData record.
type ContextType string

const (
	ContextTypeQuote              ContextType = "Quote"
	ContextTypePersonaVoiceSample ContextType = "PersonaVoiceSample"
	ContextTypeMemory             ContextType = "Memory"
	ContextTypeInsight            ContextType = "Insight"
	ContextTypeCharacterProfile   ContextType = "CharacterProfile"
	ContextTypeGeneric            ContextType = "Generic"
)

// AllContextTypes lists every context type in canonical order.
var AllContextTypes = []ContextType{
	ContextTypeQuote,
	ContextTypePersonaVoiceSample,
	ContextTypeMemory,
	ContextTypeInsight,
	ContextTypeCharacterProfile,
	ContextTypeGeneric,
}

// Valid reports whether t is a known context type.
func (t ContextType) Valid() bool {
	switch t {
	case ContextTypeQuote, ContextTypePersonaVoiceSample, ContextTypeMemory,
		ContextTypeInsight, ContextTypeCharacterProfile, ContextTypeGeneric:
		return true
	}
	return false
}

// Availability is the mechanism by which a ContextData record becomes part
// of a turn.
type Availability string

const (
	AvailabilityAlwaysOn Availability = "AlwaysOn"
	AvailabilityManual   Availability = "Manual"
	AvailabilitySemantic Availability = "Semantic"
	AvailabilityTrigger  Availability = "Trigger"
	AvailabilityArchive  Availability = "Archive"
)

// Valid reports whether a is a known availability.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityAlwaysOn, AvailabilityManual, AvailabilitySemantic,
		AvailabilityTrigger, AvailabilityArchive:
		return true
	}
	return false
}

// SupportsAvailability reports whether the (type, availability) pair is
// permitted. AlwaysOn and Archive are universal; Manual is denied to voice
// samples; Semantic is limited to embeddable types; Trigger is limited to
// keyword-scannable types.
func (t ContextType) SupportsAvailability(a Availability) bool {
	switch a {
	case AvailabilityAlwaysOn, AvailabilityArchive:
		return true
	case AvailabilityManual:
		return t != ContextTypePersonaVoiceSample
	case AvailabilitySemantic:
		switch t {
		case ContextTypeQuote, ContextTypePersonaVoiceSample, ContextTypeMemory, ContextTypeInsight:
			return true
		}
		return false
	case AvailabilityTrigger:
		switch t {
		case ContextTypeMemory, ContextTypeInsight, ContextTypeCharacterProfile, ContextTypeGeneric:
			return true
		}
		return false
	}
	return false
}

// SupportsSemantic reports whether records of this type can be embedded.
func (t ContextType) SupportsSemantic() bool {
	return t.SupportsAvailability(AvailabilitySemantic)
}

// ContextData is the polymorphic context record: a (type, availability) tag
// pair over a single table rather than per-type entities. Availability alone
// is the source of truth for how the record reaches a turn; the manual flags
// plus PreviousAvailability encode a temporary override of it.
type ContextData struct {
	ID        int64       `json:"id" db:"id"`
	ProfileID int64       `json:"profileId" db:"profile_id"`
	Name      string      `json:"name" db:"name"`
	Content   string      `json:"content" db:"content"`
	Type      ContextType `json:"type" db:"type"`

	Availability Availability `json:"availability" db:"availability"`

	TokenCount          *int       `json:"tokenCount,omitempty" db:"token_count"`
	TokenCountUpdatedAt *time.Time `json:"tokenCountUpdatedAt,omitempty" db:"token_count_updated_at"`

	IsEnabled  bool `json:"isEnabled" db:"is_enabled"`
	IsArchived bool `json:"isArchived" db:"is_archived"`
	SortOrder  int  `json:"sortOrder" db:"sort_order"`

	// Trigger availability fields.
	TriggerKeywords      string     `json:"triggerKeywords,omitempty" db:"trigger_keywords"`
	TriggerLookbackTurns int        `json:"triggerLookbackTurns,omitempty" db:"trigger_lookback_turns"`
	TriggerMinMatchCount int        `json:"triggerMinMatchCount,omitempty" db:"trigger_min_match_count"`
	TriggerCount         int        `json:"triggerCount" db:"trigger_count"`
	LastTriggeredAt      *time.Time `json:"lastTriggeredAt,omitempty" db:"last_triggered_at"`

	// Manual override flags. PreviousAvailability snapshots the availability
	// that was in force when the override began; it is never overwritten
	// while the record stays Manual.
	UseNextTurnOnly      bool          `json:"useNextTurnOnly" db:"use_next_turn_only"`
	UseEveryTurn         bool          `json:"useEveryTurn" db:"use_every_turn"`
	PreviousAvailability *Availability `json:"previousAvailability,omitempty" db:"previous_availability"`

	// Semantic bookkeeping. InVectorDB=true means an embedding exists in the
	// type's vector collection and must be deleted before the availability
	// can move away from Semantic.
	InVectorDB bool     `json:"inVectorDb" db:"in_vector_db"`
	Tags       []string `json:"tags,omitempty" db:"tags"`

	// RelevanceScore is transient: set from the vector search score during
	// semantic retrieval, never persisted.
	RelevanceScore float64 `json:"relevanceScore,omitempty" db:"-"`

	// Source pointers.
	SourceSessionID   *int64 `json:"sourceSessionId,omitempty" db:"source_session_id"`
	Speaker           string `json:"speaker,omitempty" db:"speaker"`
	Path              string `json:"path,omitempty" db:"path"`
	NonverbalBehavior string `json:"nonverbalBehavior,omitempty" db:"nonverbal_behavior"`

	// IsUser marks the CharacterProfile entry describing the human
	// participant.
	IsUser bool `json:"isUser" db:"is_user"`

	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	ModifiedAt time.Time `json:"modifiedAt" db:"modified_at"`
}

// IsDynamic reports whether the record originated from a session (as opposed
// to authored canon). The request builder labels the two differently.
func (c *ContextData) IsDynamic() bool {
	return c.SourceSessionID != nil
}
