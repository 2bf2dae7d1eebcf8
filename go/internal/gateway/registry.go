package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

type broadcastMessage struct {
	roomID uuid.UUID
	event  any
}

// Registry maps each room to its set of live connections and fans events out
// to them. It is the only owner of that mapping; sessions reference rooms by
// ID and never hold the set themselves.
type Registry struct {
	mu        sync.RWMutex
	roomConns map[uuid.UUID]map[*Connection]bool

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	broadcastCh chan broadcastMessage
}

// NewRegistry creates a connection registry.
func NewRegistry(config ConnectionConfig) *Registry {
	return &Registry{
		roomConns: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start drains the broadcast queue until the context is cancelled.
func (r *Registry) Start(ctx context.Context) {
	log.Info().Msg("connection registry started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection registry shutting down")
			return
		case message := <-r.broadcastCh:
			r.deliver(message)
		}
	}
}

// Connect adds a connection to the room's subscriber set, creating the set if
// absent. Safe against concurrent connects to the same or different rooms.
func (r *Registry) Connect(roomID uuid.UUID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roomConns[roomID] == nil {
		r.roomConns[roomID] = make(map[*Connection]bool)
	}
	r.roomConns[roomID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", roomID.String()).
		Int("subscribers", len(r.roomConns[roomID])).
		Msg("connection registered")
}

// Disconnect removes a connection from the room's subscriber set. The caller
// decides timer teardown based on ActiveCount; the registry does not own timer
// lifecycle. Idempotent.
func (r *Registry) Disconnect(roomID uuid.UUID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections, exists := r.roomConns[roomID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	conn.shutdown()

	if len(connections) == 0 {
		delete(r.roomConns, roomID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Str("room_id", roomID.String()).
		Msg("connection unregistered")
}

// Broadcast queues an event for delivery to every current subscriber of the
// room. Membership is evaluated at delivery time, not at call time.
func (r *Registry) Broadcast(roomID uuid.UUID, event any) {
	select {
	case r.broadcastCh <- broadcastMessage{roomID: roomID, event: event}:
	default:
		log.Warn().Str("room_id", roomID.String()).Msg("broadcast channel full, dropping message")
	}
}

// ActiveCount returns the number of live subscribers for a room.
func (r *Registry) ActiveCount(roomID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomConns[roomID])
}

// deliver fans one event out to the room's current subscribers. A connection
// that cannot accept the payload is evicted without aborting delivery to the
// rest.
func (r *Registry) deliver(message broadcastMessage) {
	r.mu.RLock()
	connections, exists := r.roomConns[message.roomID]
	if !exists {
		r.mu.RUnlock()
		return
	}

	// Snapshot so the lock is not held during delivery.
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	// Marshal once for the whole room.
	data, err := json.Marshal(message.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		// Dead connections are evicted before the send is attempted so a
		// free buffer slot cannot mask an exited write pump.
		select {
		case <-conn.closed:
			r.Disconnect(message.roomID, conn)
			continue
		default:
		}

		select {
		case conn.Send <- data:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			r.Disconnect(message.roomID, conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("room_id", message.roomID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns counts of active connections, grouped by room.
func (r *Registry) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	roomCounts := make(map[string]int)
	for roomID, connections := range r.roomConns {
		roomCounts[roomID.String()] = len(connections)
		total += len(connections)
	}

	return map[string]any{
		"total_connections": total,
		"active_rooms":      len(r.roomConns),
		"room_connections":  roomCounts,
	}
}
