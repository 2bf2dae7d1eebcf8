package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/mcdev12/studyhall/go/internal/auth"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/users"
	"github.com/rs/zerolog/log"
)

// UserStore defines what the auth endpoints need from the users repository.
type UserStore interface {
	CreateUser(ctx context.Context, req users.CreateUserRequest) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// TokenIssuer issues access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(username string) (string, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// AuthHandler serves registration, login and identity endpoints.
type AuthHandler struct {
	users  UserStore
	tokens TokenIssuer
	verify TokenVerifier
	hasher PasswordHasher
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userStore UserStore, issuer TokenIssuer, verifier TokenVerifier, hasher PasswordHasher) *AuthHandler {
	return &AuthHandler{
		users:  userStore,
		tokens: issuer,
		verify: verifier,
		hasher: hasher,
	}
}

// RegisterRoutes registers the auth HTTP routes.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/me", RequireAuth(h.verify, h.handleMe))
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.users.CreateUser(r.Context(), users.CreateUserRequest{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("failed to create user")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.Info().Str("username", user.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("failed to look up user")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.hasher.Verify(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.tokens.GenerateAccessToken(user.Username)
	if err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	username := auth.Username(r.Context())
	user, err := h.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		log.Error().Err(err).Str("username", username).Msg("failed to look up user")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
