// Package response writes the wire bodies used across the API: success
// payloads are returned as-is, failures are {message} objects, server
// faults add a diagnostic error string.
package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorBody{Message: message})
}

// InternalError keeps the client-facing message generic; the detail string
// carries the underlying error for the caller's logs without a stack trace.
func InternalError(w http.ResponseWriter, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	JSON(w, http.StatusInternalServerError, errorBody{Message: "Server error", Error: detail})
}
