package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"time"

	"github.com/FikFikk/luminastore/internal/backend"
	"github.com/FikFikk/luminastore/internal/session"
)

type authAPI interface {
	Login(ctx context.Context, req backend.LoginRequest) (*backend.AuthResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResult, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
}

type AuthHandler struct {
	backend   authAPI
	cookieTTL time.Duration
}

func NewAuthHandler(client authAPI, cookieTTL time.Duration) *AuthHandler {
	if cookieTTL <= 0 {
		cookieTTL = 7 * 24 * time.Hour
	}
	return &AuthHandler{backend: client, cookieTTL: cookieTTL}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequestDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequestDTO struct {
	Email string `json:"email"`
}

func validEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "invalid_email", "please enter a valid email address")
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_password", "password is required")
		return
	}

	result, err := h.backend.Login(r.Context(), backend.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	session.Write(w, result.Token, h.cookieTTL)
	respondJSON(w, http.StatusOK, result.User)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "invalid_email", "please enter a valid email address")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "invalid_password", "password must be at least 8 characters")
		return
	}

	result, err := h.backend.Register(r.Context(), backend.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	session.Write(w, result.Token, h.cookieTTL)
	respondJSON(w, http.StatusCreated, result.User)
}

// Logout clears the cookie regardless of what the backend says: a dead
// backend must not trap the shopper in a logged-in state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFrom(r.Context()); token != "" {
		if err := h.backend.Logout(r.Context(), token); err != nil {
			logError(r, err)
		}
	}
	session.Clear(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "invalid_email", "please enter a valid email address")
		return
	}

	if err := h.backend.ForgotPassword(r.Context(), req.Email); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
