package models

import (
	"encoding/json"
	"net/http"
)

// Failure is the error envelope returned by every endpoint.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`

	// Status is the HTTP status code written with the envelope.
	Status int `json:"-"`

	// RequestID is echoed in the X-Request-Id header.
	RequestID string `json:"-"`
}

// NewFailure creates a Failure with the given status and error text.
func NewFailure(status int, requestID, errText string) *Failure {
	return &Failure{
		Success:   false,
		Error:     errText,
		Status:    status,
		RequestID: requestID,
	}
}

// WithMessage adds a detail message to the Failure.
func (f *Failure) WithMessage(message string) *Failure {
	f.Message = message
	return f
}

// Write writes the Failure as JSON to the ResponseWriter.
func (f *Failure) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if f.RequestID != "" {
		w.Header().Set("X-Request-Id", f.RequestID)
	}
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(f)
}

// NewBadRequest creates a 400 Bad Request failure.
func NewBadRequest(requestID, errText string) *Failure {
	return NewFailure(http.StatusBadRequest, requestID, errText)
}

// NewNotFound creates a 404 Not Found failure.
func NewNotFound(requestID, errText string) *Failure {
	return NewFailure(http.StatusNotFound, requestID, errText)
}

// NewTooManyRequests creates a 429 Too Many Requests failure.
func NewTooManyRequests(requestID, errText string) *Failure {
	return NewFailure(http.StatusTooManyRequests, requestID, errText)
}

// NewInternalError creates a 500 Internal Server Error failure.
func NewInternalError(requestID, errText string) *Failure {
	return NewFailure(http.StatusInternalServerError, requestID, errText)
}

// NewServiceUnavailable creates a 503 Service Unavailable failure.
func NewServiceUnavailable(requestID, errText string) *Failure {
	return NewFailure(http.StatusServiceUnavailable, requestID, errText)
}
