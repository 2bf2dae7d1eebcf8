package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/rooms"
	"github.com/mcdev12/studyhall/go/internal/timer"
	"github.com/mcdev12/studyhall/go/internal/timerlog"
	"github.com/mcdev12/studyhall/go/internal/users"
)

// memRoomStore is an in-memory RoomStore for handler tests.
type memRoomStore struct {
	rooms        map[uuid.UUID]*models.Room
	participants map[uuid.UUID]map[uuid.UUID]bool
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{
		rooms:        make(map[uuid.UUID]*models.Room),
		participants: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (s *memRoomStore) CreateRoom(_ context.Context, req rooms.CreateRoomRequest) (*models.Room, error) {
	for _, room := range s.rooms {
		if room.Name == req.Name {
			return nil, rooms.ErrNameTaken
		}
	}
	room := &models.Room{ID: uuid.New(), Name: req.Name, CreatedAt: time.Now()}
	s.rooms[room.ID] = room
	return room, nil
}

func (s *memRoomStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, rooms.ErrNotFound
	}
	return room, nil
}

func (s *memRoomStore) ListRooms(_ context.Context) ([]models.Room, error) {
	var list []models.Room
	for _, room := range s.rooms {
		list = append(list, *room)
	}
	return list, nil
}

func (s *memRoomStore) DeleteRoom(_ context.Context, id uuid.UUID) error {
	if _, ok := s.rooms[id]; !ok {
		return rooms.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *memRoomStore) AddParticipant(_ context.Context, roomID, userID uuid.UUID) (*models.Participant, error) {
	if s.participants[roomID][userID] {
		return nil, rooms.ErrAlreadyParticipant
	}
	if s.participants[roomID] == nil {
		s.participants[roomID] = make(map[uuid.UUID]bool)
	}
	s.participants[roomID][userID] = true
	return &models.Participant{ID: uuid.New(), RoomID: roomID, UserID: userID}, nil
}

func (s *memRoomStore) RemoveParticipant(_ context.Context, roomID, userID uuid.UUID) error {
	if !s.participants[roomID][userID] {
		return rooms.ErrNotParticipant
	}
	delete(s.participants[roomID], userID)
	return nil
}

func (s *memRoomStore) ListParticipants(_ context.Context, roomID uuid.UUID) ([]models.User, error) {
	var list []models.User
	for userID := range s.participants[roomID] {
		list = append(list, models.User{ID: userID})
	}
	return list, nil
}

type memMessageStore struct {
	history []models.Message
}

func (s *memMessageStore) RecentMessages(_ context.Context, _ uuid.UUID, limit int) ([]models.Message, error) {
	if len(s.history) > limit {
		return s.history[:limit], nil
	}
	return s.history, nil
}

type memTimerStore struct {
	records map[uuid.UUID]*models.TimerRecord
}

func newMemTimerStore() *memTimerStore {
	return &memTimerStore{records: make(map[uuid.UUID]*models.TimerRecord)}
}

func (s *memTimerStore) CreateRecord(_ context.Context, roomID uuid.UUID, req timerlog.CreateRecordRequest) (*models.TimerRecord, error) {
	rec := &models.TimerRecord{
		ID:              uuid.New(),
		RoomID:          roomID,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
		StartedAt:       time.Now(),
	}
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *memTimerStore) ListByRoom(_ context.Context, roomID uuid.UUID) ([]models.TimerRecord, error) {
	var list []models.TimerRecord
	for _, rec := range s.records {
		if rec.RoomID == roomID {
			list = append(list, *rec)
		}
	}
	return list, nil
}

func (s *memTimerStore) Deactivate(_ context.Context, id uuid.UUID) error {
	rec, ok := s.records[id]
	if !ok {
		return timerlog.ErrNotFound
	}
	rec.IsActive = false
	return nil
}

// stubEngine serves a fixed live snapshot for one room.
type stubEngine struct {
	roomID uuid.UUID
	snap   timer.Snapshot
}

func (e *stubEngine) State(roomID uuid.UUID) (timer.Snapshot, bool) {
	if roomID != e.roomID {
		return timer.Snapshot{}, false
	}
	return e.snap, true
}

// stubVerifier accepts any token and uses it as the username.
type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) { return token, nil }

type roomsEnv struct {
	srv    *httptest.Server
	rooms  *memRoomStore
	timers *memTimerStore
	engine *stubEngine
	alice  *models.User
}

func newRoomsEnv(t *testing.T) *roomsEnv {
	t.Helper()

	userStore := newMemUserStore()
	alice, err := userStore.CreateUser(context.Background(), users.CreateUserRequest{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("seed user failed: %v", err)
	}

	roomStore := newMemRoomStore()
	timerStore := newMemTimerStore()
	engine := &stubEngine{}

	handler := NewRoomsHandler(roomStore, &memMessageStore{}, timerStore, userStore, engine, stubVerifier{})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &roomsEnv{srv: srv, rooms: roomStore, timers: timerStore, engine: engine, alice: alice}
}

// doAuthed issues a request carrying alice's bearer token; stubVerifier
// treats the token itself as the username.
func doAuthed(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	req.Header.Set("Authorization", "Bearer alice")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestCreateRoomRequiresAuth(t *testing.T) {
	env := newRoomsEnv(t)
	resp := postJSON(t, env.srv.URL+"/rooms", map[string]string{"name": "focus"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateRoomAddsCreatorAsParticipant(t *testing.T) {
	env := newRoomsEnv(t)

	resp := doAuthed(t, http.MethodPost, env.srv.URL+"/rooms", map[string]string{"name": "focus"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var room models.Room
	decodeBody(t, resp, &room)
	if room.Name != "focus" {
		t.Fatalf("room name = %q, want %q", room.Name, "focus")
	}
	if !env.rooms.participants[room.ID][env.alice.ID] {
		t.Fatal("creator was not added as participant")
	}
}

func TestCreateRoomDuplicateName(t *testing.T) {
	env := newRoomsEnv(t)

	resp := doAuthed(t, http.MethodPost, env.srv.URL+"/rooms", map[string]string{"name": "focus"})
	resp.Body.Close()
	resp = doAuthed(t, http.MethodPost, env.srv.URL+"/rooms", map[string]string{"name": "focus"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	env := newRoomsEnv(t)
	resp, err := http.Get(env.srv.URL + "/rooms/" + uuid.NewString())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetRoomInvalidID(t *testing.T) {
	env := newRoomsEnv(t)
	resp, err := http.Get(env.srv.URL + "/rooms/not-a-uuid")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestListMessagesRejectsInvalidLimit(t *testing.T) {
	env := newRoomsEnv(t)
	roomID := uuid.New()
	env.rooms.rooms[roomID] = &models.Room{ID: roomID, Name: "focus"}

	resp := doAuthed(t, http.MethodGet, env.srv.URL+"/rooms/"+roomID.String()+"/messages?limit=zero", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateTimerValidation(t *testing.T) {
	env := newRoomsEnv(t)
	roomID := uuid.New()
	env.rooms.rooms[roomID] = &models.Room{ID: roomID, Name: "focus"}

	resp := doAuthed(t, http.MethodPost, env.srv.URL+"/rooms/"+roomID.String()+"/timers",
		map[string]int{"duration_minutes": 0})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = doAuthed(t, http.MethodPost, env.srv.URL+"/rooms/"+roomID.String()+"/timers",
		map[string]int{"duration_minutes": 25})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var rec models.TimerRecord
	decodeBody(t, resp, &rec)
	if rec.DurationMinutes != 25 || !rec.IsActive {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestLiveTimerSnapshot(t *testing.T) {
	env := newRoomsEnv(t)
	roomID := uuid.New()
	env.engine.roomID = roomID
	env.engine.snap = timer.Snapshot{Duration: 300, Remaining: 120, Running: true}

	resp, err := http.Get(env.srv.URL + "/rooms/" + roomID.String() + "/timer")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var snap timer.Snapshot
	decodeBody(t, resp, &snap)
	if snap.Remaining != 120 || !snap.Running {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	resp, err = http.Get(env.srv.URL + "/rooms/" + uuid.NewString() + "/timer")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("no-timer status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
