package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/auth"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/rooms"
	"github.com/mcdev12/studyhall/go/internal/timer"
	"github.com/mcdev12/studyhall/go/internal/timerlog"
	"github.com/rs/zerolog/log"
)

const defaultMessageLimit = 50

// RoomStore defines what the room endpoints need from the rooms repository.
type RoomStore interface {
	CreateRoom(ctx context.Context, req rooms.CreateRoomRequest) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID) (*models.Participant, error)
	RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.User, error)
}

// MessageStore defines what the room endpoints need from the messages
// repository.
type MessageStore interface {
	RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)
}

// TimerStore defines what the room endpoints need from the timer log.
type TimerStore interface {
	CreateRecord(ctx context.Context, roomID uuid.UUID, req timerlog.CreateRecordRequest) (*models.TimerRecord, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.TimerRecord, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// TimerEngine exposes the live countdown state to the REST surface.
type TimerEngine interface {
	State(roomID uuid.UUID) (timer.Snapshot, bool)
}

// UsernameResolver maps an authenticated username to its user record.
type UsernameResolver interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// RoomsHandler serves room, participant, message history and timer record
// endpoints.
type RoomsHandler struct {
	rooms  RoomStore
	msgs   MessageStore
	timers TimerStore
	users  UsernameResolver
	engine TimerEngine
	verify TokenVerifier
}

// NewRoomsHandler creates a new RoomsHandler.
func NewRoomsHandler(roomStore RoomStore, msgStore MessageStore, timerStore TimerStore, userStore UsernameResolver, engine TimerEngine, verifier TokenVerifier) *RoomsHandler {
	return &RoomsHandler{
		rooms:  roomStore,
		msgs:   msgStore,
		timers: timerStore,
		users:  userStore,
		engine: engine,
		verify: verifier,
	}
}

// RegisterRoutes registers the room HTTP routes.
func (h *RoomsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", RequireAuth(h.verify, h.handleCreateRoom))
	mux.HandleFunc("GET /rooms", h.handleListRooms)
	mux.HandleFunc("GET /rooms/{room_id}", h.handleGetRoom)
	mux.HandleFunc("DELETE /rooms/{room_id}", RequireAuth(h.verify, h.handleDeleteRoom))

	mux.HandleFunc("POST /rooms/{room_id}/participants", RequireAuth(h.verify, h.handleAddParticipant))
	mux.HandleFunc("GET /rooms/{room_id}/participants", h.handleListParticipants)
	mux.HandleFunc("DELETE /rooms/{room_id}/participants/{user_id}", RequireAuth(h.verify, h.handleRemoveParticipant))

	mux.HandleFunc("GET /rooms/{room_id}/messages", RequireAuth(h.verify, h.handleListMessages))

	mux.HandleFunc("POST /rooms/{room_id}/timers", RequireAuth(h.verify, h.handleCreateTimer))
	mux.HandleFunc("GET /rooms/{room_id}/timers", h.handleListTimers)
	mux.HandleFunc("GET /rooms/{room_id}/timer", h.handleLiveTimer)
	mux.HandleFunc("POST /rooms/{room_id}/timers/{timer_id}/stop", RequireAuth(h.verify, h.handleStopTimer))
}

func (h *RoomsHandler) roomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("room_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return id, true
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (h *RoomsHandler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "room name is required")
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), rooms.CreateRoomRequest{Name: req.Name})
	if err != nil {
		if errors.Is(err, rooms.ErrNameTaken) {
			writeError(w, http.StatusConflict, "room name already taken")
			return
		}
		log.Error().Err(err).Str("name", req.Name).Msg("failed to create room")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The creator joins their own room immediately.
	if user, uerr := h.users.GetUserByUsername(r.Context(), auth.Username(r.Context())); uerr == nil {
		if _, perr := h.rooms.AddParticipant(r.Context(), room.ID, user.ID); perr != nil && !errors.Is(perr, rooms.ErrAlreadyParticipant) {
			log.Warn().Err(perr).Str("room_id", room.ID.String()).Msg("failed to add creator as participant")
		}
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomsHandler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	list, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list rooms")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []models.Room{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RoomsHandler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roomID(w, r)
	if !ok {
		return
	}
	room, err := h.rooms.GetRoom(r.Context(), id)
	if err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		log.Error().Err(err).Str("room_id", id.String()).Msg("failed to get room")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomsHandler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roomID(w, r)
	if !ok {
		return
	}
	if err := h.rooms.DeleteRoom(r.Context(), id); err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		log.Error().Err(err).Str("room_id", id.String()).Msg("failed to delete room")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addParticipantRequest struct {
	UserID *uuid.UUID `json:"user_id"`
}

func (h *RoomsHandler) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}

	// Body is optional: with no user_id the authenticated user joins.
	var req addParticipantRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var userID uuid.UUID
	if req.UserID != nil {
		userID = *req.UserID
	} else {
		user, err := h.users.GetUserByUsername(r.Context(), auth.Username(r.Context()))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		userID = user.ID
	}

	if _, err := h.rooms.GetRoom(r.Context(), roomID); err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to get room")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	p, err := h.rooms.AddParticipant(r.Context(), roomID, userID)
	if err != nil {
		if errors.Is(err, rooms.ErrAlreadyParticipant) {
			writeError(w, http.StatusConflict, "user is already a participant")
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to add participant")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *RoomsHandler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	list, err := h.rooms.ListParticipants(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list participants")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []models.User{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RoomsHandler) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.rooms.RemoveParticipant(r.Context(), roomID, userID); err != nil {
		if errors.Is(err, rooms.ErrNotParticipant) {
			writeError(w, http.StatusNotFound, "user is not a participant")
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to remove participant")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomsHandler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := h.msgs.RecentMessages(r.Context(), roomID, limit)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list messages")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	writeJSON(w, http.StatusOK, list)
}

type createTimerRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

func (h *RoomsHandler) handleCreateTimer(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	var req createTimerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}

	if _, err := h.rooms.GetRoom(r.Context(), roomID); err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to get room")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	rec, err := h.timers.CreateRecord(r.Context(), roomID, timerlog.CreateRecordRequest{
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to create timer record")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *RoomsHandler) handleListTimers(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	list, err := h.timers.ListByRoom(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to list timer records")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []models.TimerRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleLiveTimer returns the in-memory countdown snapshot for the room, or
// 404 when no timer has been started since the room was last empty.
func (h *RoomsHandler) handleLiveTimer(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}
	snap, found := h.engine.State(roomID)
	if !found {
		writeError(w, http.StatusNotFound, "no timer for room")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RoomsHandler) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.roomID(w, r); !ok {
		return
	}
	timerID, err := uuid.Parse(r.PathValue("timer_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timer id")
		return
	}
	if err := h.timers.Deactivate(r.Context(), timerID); err != nil {
		if errors.Is(err, timerlog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "timer record not found")
			return
		}
		log.Error().Err(err).Str("timer_id", timerID.String()).Msg("failed to stop timer record")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
