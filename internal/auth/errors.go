package auth

import "errors"

var (
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("invalid input")
	// ErrTokenPersist marks a token the token store could not keep.
	ErrTokenPersist = errors.New("token not persisted")
	// ErrBadResponse marks a success response missing required data.
	ErrBadResponse = errors.New("unexpected response")
)

// Error is a failed auth operation. Its message is safe to show to users;
// the underlying cause is kept for logging and errors.Is.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
