package gateway

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
)

// InboundEvent is the envelope for every payload received on a room socket.
// Content is type-dependent: a JSON string for "message", a TimerCommand
// object for "timer".
type InboundEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

const (
	inboundTypeMessage = "message"
	inboundTypeTimer   = "timer"
)

// TimerCommand is the content of a "timer" inbound event.
type TimerCommand struct {
	Event    string `json:"event"`
	Duration *int   `json:"duration,omitempty"`
}

const (
	timerActionStart  = "start_timer"
	timerActionPause  = "pause_timer"
	timerActionResume = "resume_timer"
	timerActionReset  = "reset_timer"
)

// Outbound event names.
const (
	EventPreviousMessage = "previous_message"
	EventNewMessage      = "new_message"
	EventTimerUpdate     = "timer_update"
	EventUserLeft        = "user_left"
)

// MessageEvent carries a chat message, either replayed history
// (previous_message) or a fresh broadcast (new_message).
type MessageEvent struct {
	Event   string         `json:"event"`
	Message models.Message `json:"message"`
}

// TimerUpdateEvent mirrors one engine notification out to subscribers.
type TimerUpdateEvent struct {
	Event     string `json:"event"`
	Remaining int    `json:"remaining"`
	IsRunning bool   `json:"is_running"`
	Duration  int    `json:"duration"`
}

// UserLeftEvent tells remaining subscribers that a participant disconnected.
type UserLeftEvent struct {
	Event    string    `json:"event"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// ErrorNotice is sent to a single connection when its input was rejected.
// The connection stays open.
type ErrorNotice struct {
	Error string `json:"error"`
}
