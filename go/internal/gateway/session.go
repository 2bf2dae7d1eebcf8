package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Close reasons for policy-violation closes during session setup.
const (
	closeReasonMissingToken   = "Missing authentication token"
	closeReasonInvalidToken   = "Invalid or expired token"
	closeReasonUserNotFound   = "User not found"
	closeReasonRoomNotFound   = "Room not found"
	closeReasonNotParticipant = "You are not a participant of this room"
)

// session is the per-connection control loop: authenticate, authorize,
// replay history, then multiplex inbound chat and timer commands until the
// transport drops.
type session struct {
	svc    *Service
	ws     *websocket.Conn
	roomID uuid.UUID
	token  string

	user *models.User
	conn *Connection
}

func newSession(svc *Service, ws *websocket.Conn, roomID uuid.UUID, token string) *session {
	return &session{svc: svc, ws: ws, roomID: roomID, token: token}
}

// run drives the session through its lifecycle. It returns when the
// connection is closed, by either side.
func (s *session) run(ctx context.Context) {
	if !s.authenticate(ctx) {
		return
	}
	if !s.authorize(ctx) {
		return
	}

	s.conn = newConnection(s.svc.registry, s.ws, s.roomID, s.user.ID, s.user.Username)
	go s.conn.writePump()

	s.replay(ctx)

	s.svc.registry.Connect(s.roomID, s.conn)
	log.Info().
		Str("connection_id", s.conn.ID).
		Str("user_id", s.user.ID.String()).
		Str("room_id", s.roomID.String()).
		Msg("user joined room")

	s.readLoop(ctx)
	s.teardown()
}

// authenticate validates the bearer token from the handshake and resolves the
// principal username. Failure closes the socket with a policy-violation code.
func (s *session) authenticate(_ context.Context) bool {
	if s.token == "" {
		s.closePolicy(closeReasonMissingToken)
		return false
	}
	username, err := s.svc.deps.Tokens.Verify(s.token)
	if err != nil {
		s.closePolicy(closeReasonInvalidToken)
		return false
	}
	s.user = &models.User{Username: username}
	return true
}

// authorize resolves the principal to a user record and confirms the target
// room exists and the user participates in it.
func (s *session) authorize(ctx context.Context) bool {
	user, err := s.svc.deps.Users.GetUserByUsername(ctx, s.user.Username)
	if err != nil || user == nil {
		s.closePolicy(closeReasonUserNotFound)
		return false
	}
	s.user = user

	room, err := s.svc.deps.Rooms.GetRoom(ctx, s.roomID)
	if err != nil || room == nil {
		s.closePolicy(closeReasonRoomNotFound)
		return false
	}

	ok, err := s.svc.deps.Rooms.IsParticipant(ctx, s.roomID, s.user.ID)
	if err != nil || !ok {
		s.closePolicy(closeReasonNotParticipant)
		return false
	}
	return true
}

// replay delivers the room's recent history to this connection only,
// oldest-first. A replay failure is logged but does not kill the session.
func (s *session) replay(ctx context.Context) {
	messages, err := s.recentMessages(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Str("room_id", s.roomID.String()).
			Msg("failed to fetch message history for replay")
		return
	}

	// Stored newest-first; deliver oldest-first.
	for i := len(messages) - 1; i >= 0; i-- {
		s.conn.enqueue(MessageEvent{Event: EventPreviousMessage, Message: messages[i]})
	}
}

// recentMessages serves history from the replay cache when warm and primes it
// from the store on a miss.
func (s *session) recentMessages(ctx context.Context) ([]models.Message, error) {
	limit := s.svc.config.ReplayLimit

	if cache := s.svc.deps.Cache; cache != nil {
		messages, warm, err := cache.Recent(ctx, s.roomID, limit)
		if err != nil {
			log.Warn().Err(err).Str("room_id", s.roomID.String()).Msg("replay cache read failed")
		} else if warm {
			return messages, nil
		}
	}

	messages, err := s.svc.deps.Messages.RecentMessages(ctx, s.roomID, limit)
	if err != nil {
		return nil, err
	}
	if cache := s.svc.deps.Cache; cache != nil && len(messages) > 0 {
		if err := cache.Prime(ctx, s.roomID, messages); err != nil {
			log.Warn().Err(err).Str("room_id", s.roomID.String()).Msg("replay cache prime failed")
		}
	}
	return messages, nil
}

// readLoop receives inbound payloads until the transport drops. Malformed
// input is answered on this connection only; the loop continues.
func (s *session) readLoop(ctx context.Context) {
	s.ws.SetReadLimit(s.svc.config.ConnectionConfig.MaxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(s.svc.config.ConnectionConfig.ReadTimeout))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(s.svc.config.ConnectionConfig.ReadTimeout))
		return nil
	})

	for {
		_, payload, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().
					Err(err).
					Str("connection_id", s.conn.ID).
					Msg("unexpected WebSocket close")
			}
			return
		}
		s.ws.SetReadDeadline(time.Now().Add(s.svc.config.ConnectionConfig.ReadTimeout))

		var event InboundEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			s.conn.enqueue(ErrorNotice{Error: fmt.Sprintf("invalid message format: %v", err)})
			continue
		}

		switch event.Type {
		case inboundTypeMessage:
			s.handleChat(ctx, event.Content)
		case inboundTypeTimer:
			s.handleTimerCommand(event.Content)
		default:
			s.conn.enqueue(ErrorNotice{Error: fmt.Sprintf("unknown event type: %q", event.Type)})
		}
	}
}

// handleChat persists the message and broadcasts it to the room. Persistence
// failures are reported to the sender only and the message is not broadcast.
func (s *session) handleChat(ctx context.Context, content json.RawMessage) {
	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		s.conn.enqueue(ErrorNotice{Error: "message content must be a string"})
		return
	}
	if text == "" {
		s.conn.enqueue(ErrorNotice{Error: "message content must not be empty"})
		return
	}

	message, err := s.svc.deps.Messages.SaveMessage(ctx, s.roomID, s.user.ID, text)
	if err != nil {
		log.Error().
			Err(err).
			Str("room_id", s.roomID.String()).
			Str("user_id", s.user.ID.String()).
			Msg("failed to persist chat message")
		s.conn.enqueue(ErrorNotice{Error: "database error"})
		return
	}
	message.Username = s.user.Username

	if cache := s.svc.deps.Cache; cache != nil {
		if err := cache.Push(ctx, s.roomID, *message); err != nil {
			log.Warn().Err(err).Str("room_id", s.roomID.String()).Msg("replay cache push failed")
		}
	}

	s.svc.broadcastRoom(s.roomID, EventNewMessage, MessageEvent{Event: EventNewMessage, Message: *message})
}

// handleTimerCommand dispatches one timer action to the engine. Invalid
// commands are reported to the sender only, never to the room.
func (s *session) handleTimerCommand(content json.RawMessage) {
	var cmd TimerCommand
	if err := json.Unmarshal(content, &cmd); err != nil {
		s.conn.enqueue(ErrorNotice{Error: fmt.Sprintf("invalid timer command: %v", err)})
		return
	}

	switch cmd.Event {
	case timerActionStart:
		if cmd.Duration == nil || *cmd.Duration <= 0 {
			s.conn.enqueue(ErrorNotice{Error: "timer duration must be a positive number of seconds"})
			return
		}
		s.svc.deps.Engine.Start(s.roomID, *cmd.Duration, s.svc.timerSink())

	case timerActionPause:
		s.svc.deps.Engine.Pause(s.roomID)

	case timerActionResume:
		s.svc.deps.Engine.Resume(s.roomID, s.svc.timerSink())

	case timerActionReset:
		if cmd.Duration != nil && *cmd.Duration <= 0 {
			s.conn.enqueue(ErrorNotice{Error: "timer duration must be a positive number of seconds"})
			return
		}
		s.svc.deps.Engine.Reset(s.roomID, cmd.Duration, s.svc.timerSink())

	default:
		s.conn.enqueue(ErrorNotice{Error: fmt.Sprintf("unknown timer action: %q", cmd.Event)})
	}
}

// teardown deregisters the connection, stops the room's timer when the last
// subscriber is gone, and tells the remaining subscribers who left.
func (s *session) teardown() {
	s.svc.registry.Disconnect(s.roomID, s.conn)

	if s.svc.registry.ActiveCount(s.roomID) == 0 {
		s.svc.deps.Engine.Stop(s.roomID)
	}

	s.svc.broadcastRoom(s.roomID, EventUserLeft, UserLeftEvent{
		Event:    EventUserLeft,
		UserID:   s.user.ID,
		Username: s.user.Username,
	})

	log.Info().
		Str("user_id", s.user.ID.String()).
		Str("room_id", s.roomID.String()).
		Msg("user left room")
}

// closePolicy rejects the connection with a policy-violation close frame and
// the given reason, then closes the transport.
func (s *session) closePolicy(reason string) {
	deadline := time.Now().Add(s.svc.config.ConnectionConfig.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := s.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Debug().Err(err).Msg("failed to write close frame")
	}
	s.ws.Close()

	log.Info().
		Str("room_id", s.roomID.String()).
		Str("reason", reason).
		Msg("connection rejected")
}
