package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	PIN      string    `json:"pin,omitempty"`

	IsEphemeral bool `json:"is_ephemeral"`

	Points     int `json:"points"`
	MatchesWon int `json:"matches_won"`
}
