package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FikFikk/luminastore/internal/session"
)

type contextKey int

const (
	tokenKey contextKey = iota
	requestIDKey
)

// SessionMiddleware lifts the bearer token out of the session cookie, or
// a Bearer Authorization header when no cookie is set, into the request
// context. It never rejects; RequireSession does that for the routes that
// need it.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.Token(r)
		if token == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token != "" {
			r = r.WithContext(context.WithValue(r.Context(), tokenKey, token))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests that carry no token. Tokens that parse
// as a JWT and are provably past exp are rejected here too, saving the
// backend round trip; opaque tokens pass through and the backend decides.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r.Context())
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "please log in to continue")
			return
		}
		if session.ProbeExpired(token, time.Now()) {
			session.Clear(w)
			respondError(w, http.StatusUnauthorized, "unauthenticated", "your session has expired, please log in again")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware tags each request with a unique id, echoed in the
// X-Request-ID response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFrom(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey).(string); ok {
		return token
	}
	return ""
}

func requestIDFrom(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
