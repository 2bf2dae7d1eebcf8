package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerRecord is a persisted pomodoro session row for a room.
// The live countdown state lives in the timer engine, not here.
type TimerRecord struct {
	ID              uuid.UUID `json:"id"`
	RoomID          uuid.UUID `json:"room_id"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	StartedAt       time.Time `json:"started_at"`
}
