// Package apperr defines the error classes shared by the proxy routes and
// the checkout orchestration. Every failure that crosses the HTTP boundary
// is wrapped in an *Error so handlers can map it to a status code and a
// user-facing message without inspecting transport details.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassSession
	ClassRateLimited
	ClassTimeout
	ClassUpstreamValidation
	ClassUpstream
	ClassParse
	ClassConfig
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassSession:
		return "session"
	case ClassRateLimited:
		return "rate_limited"
	case ClassTimeout:
		return "timeout"
	case ClassUpstreamValidation:
		return "upstream_validation"
	case ClassUpstream:
		return "upstream"
	case ClassParse:
		return "parse"
	case ClassConfig:
		return "config"
	default:
		return "unknown"
	}
}

type Error struct {
	Class   Class
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Error values by class alone, so tests and
// callers can compare against a bare constructor result.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Class == t.Class
}

// HTTPStatus maps the class to the status the proxy surface responds with.
func (e *Error) HTTPStatus() int {
	switch e.Class {
	case ClassValidation, ClassUpstreamValidation:
		return http.StatusBadRequest
	case ClassSession:
		return http.StatusUnauthorized
	case ClassRateLimited:
		return http.StatusTooManyRequests
	case ClassTimeout:
		return http.StatusGatewayTimeout
	case ClassUpstream:
		return http.StatusServiceUnavailable
	case ClassParse:
		return http.StatusBadGateway
	case ClassConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Class: ClassValidation, Message: message}
}

func Session(message string) *Error {
	if message == "" {
		message = "your session has expired, please log in again"
	}
	return &Error{Class: ClassSession, Message: message}
}

func RateLimited(message string) *Error {
	if message == "" {
		message = "too many requests, please wait a moment and try again"
	}
	return &Error{Class: ClassRateLimited, Message: message}
}

func Timeout(err error) *Error {
	return &Error{Class: ClassTimeout, Message: "the server did not respond in time", Err: err}
}

func UpstreamValidation(message string) *Error {
	return &Error{Class: ClassUpstreamValidation, Message: message}
}

func Upstream(message string, err error) *Error {
	if message == "" {
		message = "something went wrong, please try again later"
	}
	return &Error{Class: ClassUpstream, Message: message, Err: err}
}

func Parse(err error) *Error {
	return &Error{Class: ClassParse, Message: "unexpected response from server", Err: err}
}

func Config(message string) *Error {
	return &Error{Class: ClassConfig, Message: message}
}

// ClassOf extracts the class from any error, ClassUnknown when the chain
// holds no *Error.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassUnknown
}

// MessageOf returns the user-facing message, falling back to a generic one
// for unclassified errors so internal detail never leaks to the client.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// StatusOf is HTTPStatus for classified errors, 500 otherwise.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
