package models

import "time"

// Turn is one user/assistant exchange. The row is created before LLM
// dispatch; Response is filled on completion, StrippedTurn asynchronously by
// the strip worker, DisplayResponse by truncating Response at the response
// separator.
type Turn struct {
	ID              int64     `json:"id" db:"id"`
	SessionID       int64     `json:"sessionId" db:"session_id"`
	Input           string    `json:"input" db:"input"`
	JSONInput       string    `json:"jsonInput" db:"json_input"`
	Response        string    `json:"response" db:"response"`
	StrippedTurn    string    `json:"strippedTurn" db:"stripped_turn"`
	DisplayResponse string    `json:"displayResponse" db:"display_response"`
	Accepted        bool      `json:"accepted" db:"accepted"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
