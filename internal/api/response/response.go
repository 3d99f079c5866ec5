// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, r *http.Request, failure *models.Failure) {
	if failure.RequestID == "" {
		failure.RequestID = middleware.GetRequestID(r.Context())
	}
	failure.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, errText string) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), errText))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, errText string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), errText))
}

// TooManyRequests writes a 429 Too Many Requests error response.
func TooManyRequests(w http.ResponseWriter, r *http.Request, errText string) {
	Error(w, r, models.NewTooManyRequests(middleware.GetRequestID(r.Context()), errText))
}

// InternalError writes a 500 Internal Server Error response. message is
// shown to the caller, so it must not carry upstream detail.
func InternalError(w http.ResponseWriter, r *http.Request, errText, message string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), errText).WithMessage(message))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, errText string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), errText))
}
