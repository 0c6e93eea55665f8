package model

import (
	"encoding/json"
	"fmt"
)

// APIError is a failed call to the marketplace API, already reduced to
// a status code and a message suitable for display.
type APIError struct {
	Status  int    `json:"status"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Path, e.Status, e.Message)
}

// Unauthorized reports whether the server rejected the credential.
func (e *APIError) Unauthorized() bool {
	return e.Status == 401
}

// ErrorMessage digs a message out of a failed response body. It looks at the
// envelope message first, then data.message. It returns "" when neither is set.
func ErrorMessage(body []byte) string {
	var env struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	if len(env.Data) > 0 {
		var data struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil && data.Message != "" {
			return data.Message
		}
	}
	return env.Error
}
