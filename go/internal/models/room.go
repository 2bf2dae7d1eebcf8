package models

import (
	"time"

	"github.com/google/uuid"
)

// Room represents a shared study room grouping participants, messages
// and at most one live countdown timer.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant links a user to a room they are authorized to read/write in.
type Participant struct {
	ID     uuid.UUID `json:"id"`
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}
