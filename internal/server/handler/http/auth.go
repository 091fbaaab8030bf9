// Package http provides HTTP handlers for user authentication and
// per-user document storage.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/FocusKeeper/internal/middleware"
	"github.com/atinyakov/FocusKeeper/internal/service"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates a new user with the given login and password.
	Register(ctx context.Context, login, password string) error
	// Login verifies credentials and returns a fresh session token.
	Login(ctx context.Context, login, password string) (string, error)
	// Logout invalidates a session token.
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles HTTP requests for registration, login, and logout.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
}

// CredentialsRequest represents the JSON payload for registration and login.
type CredentialsRequest struct {
	// Login is the account name.
	Login string `json:"login"`
	// Password is the account password in clear text (TLS protects transit).
	Password string `json:"password"`
}

// Register handles user registration requests.
// It expects a JSON body with non-empty "login" and "password" fields.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.AuthService.Register(r.Context(), req.Login, req.Password); err != nil {
		http.Error(w, "registration failed", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"user":   req.Login,
	})
}

// Login handles password login requests and returns a bearer token the
// client presents on every document operation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"token": token,
		"user":  req.Login,
	})
}

// Logout invalidates the presented bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetTokenFromRequest(r)
	if err := h.AuthService.Logout(r.Context(), token); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
