package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// response mirrors the marketplace API envelope so console clients can use
// the same decoder for both.
type response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, response{Success: true, Data: data, RequestID: reqID})
}

// respondError writes a failure response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, msg string) {
	respondJSON(w, status, response{Success: false, Message: msg, RequestID: reqID})
}

func respondJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
