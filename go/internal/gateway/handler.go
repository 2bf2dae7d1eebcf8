package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RoomHandler handles WebSocket upgrade requests for room connections.
type RoomHandler struct {
	svc *Service
}

// NewRoomHandler creates a new room WebSocket handler.
func NewRoomHandler(svc *Service) *RoomHandler {
	return &RoomHandler{svc: svc}
}

// HandleRoomConnection upgrades the request and runs the session loop for one
// room connection. The bearer token travels as a query parameter because
// browser WebSocket clients cannot set headers.
func (h *RoomHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("room_id"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	token := r.URL.Query().Get("token")

	ws, err := h.svc.registry.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to upgrade WebSocket connection")
		return
	}

	newSession(h.svc, ws, roomID, token).run(r.Context())
}

// HandleConnectionStats returns statistics about active connections.
func (h *RoomHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.svc.registry.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *RoomHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/rooms/{room_id}", h.HandleRoomConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
