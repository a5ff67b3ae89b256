package models

import "time"

// Flag is a short directive injected into every request while active.
// Constant=false flags are consumed by the first turn that uses them;
// constant=true flags persist until deactivated by hand.
type Flag struct {
	ID         int64      `json:"id" db:"id"`
	ProfileID  int64      `json:"profileId" db:"profile_id"`
	Value      string     `json:"value" db:"value"`
	Active     bool       `json:"active" db:"active"`
	Constant   bool       `json:"constant" db:"constant"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}
