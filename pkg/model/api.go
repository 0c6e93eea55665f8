package model

import "encoding/json"

// Envelope is the response shape used by every marketplace API endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// AuthResult is the data payload of a successful login or register call.
type AuthResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
