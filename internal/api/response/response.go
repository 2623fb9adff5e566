// Package response writes the JSON bodies of the aire API.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/aire-xalapa/aire/internal/api/middleware"
	"github.com/aire-xalapa/aire/internal/api/models"
)

// Values of the X-Data-Source header on collection responses.
const (
	SourceLive     = "live"
	SourceStored   = "stored"
	SourceFallback = "fallback"
)

// JSON writes data with the given status. The body is encoded before any
// header is sent, so a value that cannot be encoded (a NaN concentration,
// say) turns into a 500 rather than a truncated 200. Nil data is written
// as null.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		InternalError(w, r, "failed to encode response")
		return
	}

	h := w.Header()
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		h.Set(middleware.RequestIDHeader, requestID)
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// List writes items with 200. A nil slice is written as [].
func List[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	JSON(w, r, http.StatusOK, items)
}

// Sourced is List with X-Data-Source set to source.
func Sourced[T any](w http.ResponseWriter, r *http.Request, source string, items []T) {
	w.Header().Set(middleware.DataSourceHeader, source)
	List(w, r, items)
}

// Created writes a 201 response.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusCreated, data)
}

// Error writes an {"error": message} body with the given status code.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	models.WriteError(w, middleware.GetRequestID(r.Context()), status, message)
}

// InternalError writes a 500 with message.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusInternalServerError, message)
}
