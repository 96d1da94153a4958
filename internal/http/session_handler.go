package http

import (
	"net/http"
	"time"

	"github.com/FikFikk/luminastore/internal/session"
)

// SessionHandler answers the navigation gate the server-rendered pages
// consult before routing: restricted pages bounce anonymous visitors to
// /login, auth pages bounce logged-in visitors home.
type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

type GateResponseDTO struct {
	Authenticated bool   `json:"authenticated"`
	Redirect      string `json:"redirect,omitempty"`
}

func (h *SessionHandler) Gate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" || path[0] != '/' {
		respondError(w, http.StatusBadRequest, "invalid_path", "path must be an absolute route")
		return
	}

	token := tokenFrom(r.Context())
	hasToken := token != ""
	if hasToken && session.ProbeExpired(token, time.Now()) {
		session.Clear(w)
		hasToken = false
	}

	target, redirect := session.Gate(path, hasToken)
	resp := GateResponseDTO{Authenticated: hasToken}
	if redirect {
		resp.Redirect = target
	}
	respondJSON(w, http.StatusOK, resp)
}
