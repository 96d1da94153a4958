// Package session handles the opaque bearer token stored in the `token`
// cookie and the navigation gate driven by its presence.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "token"

// Route prefixes that require a session. Everything else is public.
var restrictedPrefixes = []string{
	"/cart",
	"/checkout",
	"/orders",
	"/account",
	"/addresses",
}

// Routes that only make sense for an anonymous visitor.
var authRoutes = map[string]bool{
	"/login":           true,
	"/register":        true,
	"/forgot-password": true,
}

// Token extracts the session token from the request cookie, "" when absent.
func Token(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Write stores the token with the given lifetime.
func Write(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie immediately.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Gate decides the redirect for a navigation. It returns the target route
// and true when a redirect applies: restricted route without a token goes to
// /login, auth routes with a token go home. Missing cookie simply means
// logged out; there is no failure mode here.
func Gate(path string, hasToken bool) (string, bool) {
	if !hasToken && isRestricted(path) {
		return "/login", true
	}
	if hasToken && authRoutes[path] {
		return "/", true
	}
	return "", false
}

func isRestricted(path string) bool {
	for _, p := range restrictedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// ProbeExpired reports whether the token is a JWT whose exp claim has
// passed. The token is treated as opaque when it does not parse; the
// backend stays the authority on validity either way, this only saves a
// round trip for tokens that are provably stale.
func ProbeExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
