package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a chat message persisted for a room.
// Username is denormalized from the users table for broadcast payloads.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
