package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/auth"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/users"
)

// memUserStore is an in-memory UserStore for handler tests.
type memUserStore struct {
	byName map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byName: make(map[string]*models.User)}
}

func (s *memUserStore) CreateUser(_ context.Context, req users.CreateUserRequest) (*models.User, error) {
	if _, ok := s.byName[req.Username]; ok {
		return nil, users.ErrUsernameTaken
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		CreatedAt:    time.Now(),
	}
	s.byName[req.Username] = user
	return user, nil
}

func (s *memUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	user, ok := s.byName[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}

func newAuthServer(t *testing.T) (*httptest.Server, *memUserStore) {
	t.Helper()
	store := newMemUserStore()
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           "test-secret",
		AccessTokenDuration: time.Hour,
		Issuer:              "test",
	})
	handler := NewAuthHandler(store, jwtManager, jwtManager, auth.NewPasswordHasher())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created models.User
	decodeBody(t, resp, &created)
	if created.Username != "alice" {
		t.Fatalf("registered username = %q, want %q", created.Username, "alice")
	}

	resp = postJSON(t, srv.URL+"/auth/login", map[string]string{
		"username": "alice",
		"password": "s3cret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var token tokenResponse
	decodeBody(t, resp, &token)
	if token.AccessToken == "" || token.TokenType != "bearer" {
		t.Fatalf("unexpected token response: %+v", token)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me request failed: %v", err)
	}
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want %d", meResp.StatusCode, http.StatusOK)
	}
	var me models.User
	decodeBody(t, meResp, &me)
	if me.Username != "alice" {
		t.Fatalf("me username = %q, want %q", me.Username, "alice")
	}
}

func TestRegisterValidation(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{"username": "alice"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv, _ := newAuthServer(t)

	body := map[string]string{"username": "alice", "email": "a@example.com", "password": "pw"}
	resp := postJSON(t, srv.URL+"/auth/register", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	resp = postJSON(t, srv.URL+"/auth/register", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{
		"username": "alice", "email": "a@example.com", "password": "right",
	})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	resp = postJSON(t, srv.URL+"/auth/login", map[string]string{
		"username": "nobody", "password": "whatever",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestMeRequiresToken(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp, err := http.Get(srv.URL + "/auth/me")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
