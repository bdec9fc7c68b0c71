// Package apperr classifies failures into user-facing categories and retries
// transient ones.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Category string

const (
	Network        Category = "network"
	Authentication Category = "authentication"
	Validation     Category = "validation"
	Upload         Category = "upload"
	Transcription  Category = "transcription"
	AIGeneration   Category = "ai_generation"
	Storage        Category = "storage"
	RateLimit      Category = "rate_limit"
	Server         Category = "server"
	Unknown        Category = "unknown"
)

type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

type profile struct {
	severity    Severity
	recoverable bool
	retryable   bool
	status      int
	message     string
}

var profiles = map[Category]profile{
	Network:        {Medium, true, true, http.StatusBadGateway, "Network error. Check your connection and try again."},
	Authentication: {High, false, false, http.StatusUnauthorized, "Authentication failed. Check your credentials."},
	Validation:     {Low, true, false, http.StatusBadRequest, "The request is invalid."},
	Upload:         {Medium, true, true, http.StatusBadGateway, "Upload failed. Please try again."},
	Transcription:  {Medium, true, false, http.StatusBadGateway, "Transcription failed."},
	AIGeneration:   {Medium, true, true, http.StatusBadGateway, "Content generation failed. Please try again."},
	Storage:        {High, true, true, http.StatusInternalServerError, "A storage error occurred."},
	RateLimit:      {Medium, true, true, http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again."},
	Server:         {High, false, true, http.StatusInternalServerError, "The server encountered an error."},
	Unknown:        {Medium, false, false, http.StatusInternalServerError, "An unexpected error occurred."},
}

// Error is a classified failure. Message is safe to show to users; Err is
// the underlying cause and is only meant for logs.
type Error struct {
	Category    Category
	Severity    Severity
	Message     string
	StatusCode  int
	Recoverable bool
	Retryable   bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the category's default severity, status and
// retry behaviour. An empty message uses the category default.
func New(cat Category, message string) *Error {
	p, ok := profiles[cat]
	if !ok {
		cat, p = Unknown, profiles[Unknown]
	}
	if message == "" {
		message = p.message
	}
	return &Error{
		Category:    cat,
		Severity:    p.severity,
		Message:     message,
		StatusCode:  p.status,
		Recoverable: p.recoverable,
		Retryable:   p.retryable,
	}
}

// Wrap classifies err under cat with a user-facing message.
func Wrap(cat Category, err error, message string) *Error {
	e := New(cat, message)
	e.Err = err
	return e
}

// Validationf is shorthand for a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// StatusCoder is implemented by errors that carry an HTTP status from an
// upstream call.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.StatusCode != 0 {
		return ae.StatusCode
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// Classify maps any error onto the taxonomy. Already classified errors are
// returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return Wrap(categoryForStatus(sc.HTTPStatus()), err, "")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Network, err, "The operation timed out. Please try again.")
	}
	if errors.Is(err, context.Canceled) {
		e := Wrap(Unknown, err, "The operation was cancelled.")
		e.Severity = Low
		return e
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Wrap(Network, err, "")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return Wrap(RateLimit, err, "")
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
		return Wrap(Authentication, err, "")
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return Wrap(Network, err, "")
	}
	return Wrap(Unknown, err, "")
}

func categoryForStatus(status int) Category {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return Validation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Authentication
	case status == http.StatusTooManyRequests:
		return RateLimit
	case status >= 500:
		return Server
	}
	return Unknown
}

// UserMessage returns a sanitized message for err, never a raw cause.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).Message
}
