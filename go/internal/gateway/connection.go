package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Connection represents one live WebSocket subscriber of a room.
type Connection struct {
	ID       string
	UserID   uuid.UUID
	Username string
	RoomID   uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte

	registry    *Registry
	ConnectedAt time.Time

	// closed signals the write pump to exit. Send is never closed so that
	// concurrent enqueuers can never write to a closed channel.
	closed    chan struct{}
	closeOnce sync.Once
}

func newConnection(registry *Registry, conn *websocket.Conn, roomID, userID uuid.UUID, username string) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Username:    username,
		RoomID:      roomID,
		Conn:        conn,
		Send:        make(chan []byte, registry.config.SendBufferSize),
		registry:    registry,
		ConnectedAt: time.Now(),
		closed:      make(chan struct{}),
	}
}

// shutdown marks the connection as dead. Idempotent; safe from any goroutine.
func (c *Connection) shutdown() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// enqueue marshals the event and hands it to the write pump without blocking.
// Events for a dead or saturated connection are dropped; the broadcast path
// handles eviction.
func (c *Connection) enqueue(event any) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal outbound event")
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID.String()).
			Msg("connection send buffer full, dropping event")
		return false
	}
}

// writePump is the single writer for the underlying WebSocket connection. It
// drains the send queue and keeps the connection alive with periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.registry.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.registry.Disconnect(c.RoomID, c)
	}()

	for {
		select {
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(c.registry.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.registry.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.registry.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}
