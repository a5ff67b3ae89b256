package models

import "time"

// SystemMessageType classifies what a system message is used for.
type SystemMessageType string

const (
	SystemMessagePersona     SystemMessageType = "Persona"
	SystemMessagePerception  SystemMessageType = "Perception"
	SystemMessageTechnical   SystemMessageType = "Technical"
	SystemMessageContextFile SystemMessageType = "ContextFile"
)

// Valid reports whether t is a known system message type.
func (t SystemMessageType) Valid() bool {
	switch t {
	case SystemMessagePersona, SystemMessagePerception, SystemMessageTechnical, SystemMessageContextFile:
		return true
	}
	return false
}

// SystemMessage is a versioned prompt fragment. Updates never mutate a row:
// they insert a new version with ParentID pointing at the family root and
// activate it while deactivating every sibling.
type SystemMessage struct {
	ID                    int64             `json:"id" db:"id"`
	ProfileID             int64             `json:"profileId" db:"profile_id"`
	Name                  string            `json:"name" db:"name"`
	Content               string            `json:"content" db:"content"`
	Type                  SystemMessageType `json:"type" db:"type"`
	IsActive              bool              `json:"isActive" db:"is_active"`
	IsArchived            bool              `json:"isArchived" db:"is_archived"`
	Version               int               `json:"version" db:"version"`
	ParentID              *int64            `json:"parentId,omitempty" db:"parent_id"`
	AttachedToPersonas    []int64           `json:"attachedToPersonas" db:"attached_to_personas"`
	AttachedToPerceptions []int64           `json:"attachedToPerceptions" db:"attached_to_perceptions"`
	IsUserProfile         bool              `json:"isUserProfile" db:"is_user_profile"`
	CreatedAt             time.Time         `json:"createdAt" db:"created_at"`
	ModifiedAt            time.Time         `json:"modifiedAt" db:"modified_at"`
}

// RootID returns the id of the version family's root (the first version).
func (m *SystemMessage) RootID() int64 {
	if m.ParentID != nil {
		return *m.ParentID
	}
	return m.ID
}
