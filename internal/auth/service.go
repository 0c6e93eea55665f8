// Package auth orchestrates login, registration, logout and email
// verification against the marketplace API, keeping the token store and the
// session store in step.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/me/servicehub/internal/apiclient"
	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/session"
	"github.com/me/servicehub/pkg/model"
)

// API is the subset of the API client used by the auth operations.
type API interface {
	Get(ctx context.Context, path string, out any) (*model.Envelope, error)
	Post(ctx context.Context, path string, body, out any) (*model.Envelope, error)
}

// Tokens is the subset of the token store used by the auth operations.
type Tokens interface {
	Store(ctx context.Context, token string) bool
	Has(ctx context.Context) bool
}

// Service runs the auth operations.
type Service struct {
	api      API
	tokens   Tokens
	session  *session.Store
	logger   *slog.Logger
	profiles singleflight.Group
}

// NewService creates an auth Service.
func NewService(api API, tokens Tokens, sess *session.Store, logger *slog.Logger) *Service {
	return &Service{
		api:     api,
		tokens:  tokens,
		session: sess,
		logger:  logging.OrDiscard(logger).With("component", "auth"),
	}
}

// Login signs in with credentials. On success the token is stored and the
// session updated. On failure the session keeps its user and token and
// records the message.
func (s *Service) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, invalid("login", err)
	}
	return s.authenticate(ctx, "login", apiclient.PathLogin, creds, "Login failed. Please try again.")
}

// Register creates an account and signs in with it. The new user starts
// with an unverified email, which the route guard will gate on.
func (s *Service) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	if reg.Role == "" {
		reg.Role = model.RoleUser
	}
	if err := validateRegistration(reg); err != nil {
		return nil, invalid("register", err)
	}
	return s.authenticate(ctx, "register", apiclient.PathRegister, reg, "Registration failed. Please try again.")
}

func (s *Service) authenticate(ctx context.Context, op, path string, body any, fallback string) (*model.User, error) {
	end := s.session.BeginOperation(ctx)
	defer end()
	s.session.ClearError(ctx)

	var res model.AuthResult
	if _, err := s.api.Post(ctx, path, body, &res); err != nil {
		s.logger.Warn(op+" failed", "error", err)
		return nil, s.fail(ctx, op, apiclient.ErrorMessage(err, fallback), err)
	}
	if res.Token == "" || res.User == nil {
		return nil, s.fail(ctx, op, fallback, ErrBadResponse)
	}
	if !s.tokens.Store(ctx, res.Token) {
		return nil, s.fail(ctx, op, "Could not save your session. Please try again.", ErrTokenPersist)
	}

	s.session.UpdateUser(ctx, res.User)
	s.logger.Info(op+" succeeded", "user_id", res.User.ID, "role", res.User.Role)
	return res.User.Clone(), nil
}

// Logout tells the server the session is over, then tears down the local
// session whatever the server said.
func (s *Service) Logout(ctx context.Context) {
	if _, err := s.api.Post(ctx, apiclient.PathLogout, nil, nil); err != nil {
		s.logger.Warn("logout request failed, clearing local session anyway", "error", err)
	}
	s.session.Logout(ctx)
	s.logger.Info("logged out")
}

// SendVerificationEmail asks the server to (re)send the verification email.
// Failures are returned for display but leave the session untouched.
func (s *Service) SendVerificationEmail(ctx context.Context) error {
	if _, err := s.api.Post(ctx, apiclient.PathSendVerification, nil, nil); err != nil {
		s.logger.Warn("send verification email failed", "error", err)
		return &Error{
			Op:      "send-verification",
			Message: apiclient.ErrorMessage(err, "Could not send the verification email. Please try again."),
			Err:     err,
		}
	}
	s.logger.Info("verification email requested")
	return nil
}

// VerifyEmailToken redeems an email verification token. When a session is
// active its user is replaced with the verified one, which opens the route
// guard's verification gate without a new login.
func (s *Service) VerifyEmailToken(ctx context.Context, token string) (*model.User, error) {
	if err := validateVerificationToken(token); err != nil {
		return nil, invalid("verify-email", err)
	}

	end := s.session.BeginOperation(ctx)
	defer end()
	s.session.ClearError(ctx)

	var data json.RawMessage
	if _, err := s.api.Post(ctx, apiclient.PathVerifyEmail, map[string]string{"token": token}, &data); err != nil {
		s.logger.Warn("email verification failed", "error", err)
		return nil, s.fail(ctx, "verify-email", apiclient.ErrorMessage(err, "Email verification failed."), err)
	}

	user := decodeUser(data)
	if user == nil {
		if user = s.session.Snapshot().User; user != nil {
			user.IsEmailVerified = true
		}
	}
	if user != nil && s.tokens.Has(ctx) {
		s.session.UpdateUser(ctx, user)
	}
	s.logger.Info("email verified")
	return user, nil
}

// RefreshProfile reloads the current user from the server. Concurrent
// callers share a single request, which is detached from the cancellation
// of whichever caller started it; each caller stops waiting when its own
// ctx is done. A rejected token shows up as an unauthenticated session on
// return.
func (s *Service) RefreshProfile(ctx context.Context) (*model.User, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.profiles.DoChan("profile", func() (any, error) {
		var data json.RawMessage
		if _, err := s.api.Get(shared, apiclient.PathProfile, &data); err != nil {
			return nil, err
		}
		user := decodeUser(data)
		if user == nil {
			return nil, ErrBadResponse
		}
		return user, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, &Error{Op: "profile", Message: "Could not load your profile.", Err: ctx.Err()}
	}
	if err := res.Err; err != nil {
		s.session.Revalidate(ctx)
		return nil, &Error{Op: "profile", Message: apiclient.ErrorMessage(err, "Could not load your profile."), Err: err}
	}

	user := res.Val.(*model.User).Clone()
	if s.tokens.Has(ctx) {
		s.session.UpdateUser(ctx, user)
	}
	return user, nil
}

func (s *Service) fail(ctx context.Context, op, msg string, err error) error {
	s.session.SetError(ctx, msg)
	return &Error{Op: op, Message: msg, Err: err}
}

// invalid reports rejected input. The session is left alone: nothing was
// attempted.
func invalid(op string, err error) error {
	return &Error{Op: op, Message: err.Error(), Err: fmt.Errorf("%w: %v", ErrValidation, err)}
}

// decodeUser accepts both {"user": {...}} and a bare user object.
func decodeUser(data json.RawMessage) *model.User {
	if len(data) == 0 {
		return nil
	}
	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil || (u.ID == "" && u.Email == "") {
		return nil
	}
	return &u
}
