package models

import "time"

// ChatRecord is a persisted room chat line.
type ChatRecord struct {
	ID       int64     `json:"id"`
	RoomID   string    `json:"room_id"`
	Username string    `json:"username"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}
