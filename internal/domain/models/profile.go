package models

import "time"

// Profile is the top-level grouping key for all user-owned entities.
// At most one profile is active at a time; activation is atomic.
type Profile struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	IsActive        bool       `json:"isActive" db:"is_active"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	LastActivatedAt *time.Time `json:"lastActivatedAt,omitempty" db:"last_activated_at"`
}
