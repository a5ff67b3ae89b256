package models

import "time"

// Session is a numbered conversation scope within a profile.
// Number is monotonic per profile; at most one session is active per profile.
type Session struct {
	ID        int64     `json:"id" db:"id"`
	ProfileID int64     `json:"profileId" db:"profile_id"`
	Number    int       `json:"number" db:"number"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
