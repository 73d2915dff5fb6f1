// Package httpx renders the uniform {success, data|error} response envelope.
package httpx

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/logging"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool          `json:"success"`
	Error   *apierr.Error `json:"error"`
}

// Message is the payload of operations that return nothing but a confirmation.
type Message struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, successEnvelope{Success: true, Data: data})
}

// Fail writes e as an error envelope.
func Fail(w http.ResponseWriter, e *apierr.Error) {
	writeJSON(w, e.Status(), errorEnvelope{Success: false, Error: e})
}

// WriteError renders err. An *apierr.Error is sent as-is; anything else is
// logged with full detail and downgraded to INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	if e, ok := apierr.As(err); ok {
		Fail(w, e)
		return
	}
	log.Error(r.Context(), "unhandled error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimw.GetReqID(r.Context()),
	)
	Fail(w, apierr.Internal())
}
