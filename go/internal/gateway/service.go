package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// TokenVerifier defines what the gateway needs from the credential layer.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserStore defines what the gateway needs from the users repository.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// RoomStore defines what the gateway needs from the rooms repository.
type RoomStore interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// MessageStore defines what the gateway needs from the messages repository.
// RecentMessages returns newest-first.
type MessageStore interface {
	SaveMessage(ctx context.Context, roomID, userID uuid.UUID, content string) (*models.Message, error)
	RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)
}

// ReplayCache is an optional cache in front of MessageStore for history
// replay. Recent reports whether the cache was warm for the room.
type ReplayCache interface {
	Recent(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, bool, error)
	Push(ctx context.Context, roomID uuid.UUID, msg models.Message) error
	Prime(ctx context.Context, roomID uuid.UUID, msgs []models.Message) error
}

// EventRelay is an optional egress firehose for room events.
type EventRelay interface {
	Publish(ctx context.Context, roomID uuid.UUID, eventType string, event any) error
}

// TimerEngine defines what sessions need from the timer engine.
type TimerEngine interface {
	Start(roomID uuid.UUID, duration int, notify timer.NotifyFunc)
	Pause(roomID uuid.UUID)
	Resume(roomID uuid.UUID, notify timer.NotifyFunc)
	Reset(roomID uuid.UUID, duration *int, notify timer.NotifyFunc)
	Stop(roomID uuid.UUID)
	State(roomID uuid.UUID) (timer.Snapshot, bool)
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	ReplayLimit      int
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		ReplayLimit:      50,
	}
}

// Deps bundles the external collaborators a Service needs. Cache and Relay
// are optional.
type Deps struct {
	Tokens   TokenVerifier
	Users    UserStore
	Rooms    RoomStore
	Messages MessageStore
	Engine   TimerEngine
	Cache    ReplayCache
	Relay    EventRelay
}

// Service is the realtime session service: it owns the connection registry
// and coordinates per-connection sessions against the timer engine and the
// stores.
type Service struct {
	registry *Registry
	handler  *RoomHandler
	config   Config
	deps     Deps
}

// NewService creates the gateway service.
func NewService(config Config, deps Deps) *Service {
	if config.ReplayLimit <= 0 {
		config.ReplayLimit = 50
	}
	s := &Service{
		registry: NewRegistry(config.ConnectionConfig),
		config:   config,
		deps:     deps,
	}
	s.handler = NewRoomHandler(s)
	return s
}

// Start runs the registry fan-out loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.registry.Start(ctx)
}

// Registry exposes the connection registry, mainly for stats endpoints.
func (s *Service) Registry() *Registry {
	return s.registry
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// broadcastRoom fans an event out to the room and, when a relay is
// configured, publishes it to the event stream. The relay publish runs off
// the caller's goroutine so a slow broker never stalls ticks or chat.
func (s *Service) broadcastRoom(roomID uuid.UUID, eventType string, event any) {
	s.registry.Broadcast(roomID, event)

	if s.deps.Relay == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Relay.Publish(ctx, roomID, eventType, event); err != nil {
			log.Warn().
				Err(err).
				Str("room_id", roomID.String()).
				Str("event_type", eventType).
				Msg("failed to relay room event")
		}
	}()
}

// timerSink returns the notification sink handed to engine operations: every
// engine update becomes a timer_update broadcast for the room.
func (s *Service) timerSink() timer.NotifyFunc {
	return func(roomID uuid.UUID, remaining int, running bool, duration int) {
		s.broadcastRoom(roomID, EventTimerUpdate, TimerUpdateEvent{
			Event:     EventTimerUpdate,
			Remaining: remaining,
			IsRunning: running,
			Duration:  duration,
		})
	}
}
