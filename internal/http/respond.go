package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/FikFikk/luminastore/internal/apperr"
)

// logError records a failure that is not surfaced to the client.
func logError(r *http.Request, err error) {
	log.Printf("request %s %s %s: %v", requestIDFrom(r.Context()), r.Method, r.URL.Path, err)
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError translates a service error into the uniform JSON error
// envelope. Unknown errors are never echoed to the client.
func handleError(w http.ResponseWriter, err error) {
	class := apperr.ClassOf(err)
	if class == apperr.ClassUnknown {
		log.Printf("unhandled error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var code string
	switch class {
	case apperr.ClassValidation:
		code = "invalid_request"
	case apperr.ClassSession:
		code = "unauthenticated"
	case apperr.ClassRateLimited:
		code = "rate_limit_exceeded"
	case apperr.ClassTimeout:
		code = "timeout"
	case apperr.ClassUpstreamValidation:
		code = "rejected"
	case apperr.ClassUpstream:
		code = "service_unavailable"
	case apperr.ClassParse:
		code = "bad_upstream_response"
	case apperr.ClassConfig:
		code = "not_configured"
	default:
		code = "internal_error"
	}

	respondError(w, apperr.StatusOf(err), code, apperr.MessageOf(err))
}
