// Package session holds the client's current user and authentication state.
//
// A Store is created once per process (one "page load") and shared by every
// consumer. IsAuthenticated is derived: it is only ever true while a user is
// set and the token store held a token when the state was computed.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/pkg/model"
)

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseInitializing    Phase = "initializing"
	PhaseAuthenticated   Phase = "ready-authenticated"
	PhaseUnauthenticated Phase = "ready-unauthenticated"
)

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	User            *model.User
	IsAuthenticated bool
	IsLoading       bool
	IsInitialized   bool
	Error           string
}

// Phase maps the snapshot onto the session state machine.
func (s Snapshot) Phase() Phase {
	switch {
	case !s.IsInitialized && s.IsLoading:
		return PhaseInitializing
	case !s.IsInitialized:
		return PhaseUninitialized
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Tokens is the session's view of the token store.
// Check returns an error when the token store could not be read; the session
// treats that as unknown, never as a missing token.
type Tokens interface {
	Check(ctx context.Context) (bool, error)
	Remove(ctx context.Context)
}

// Store is the process-wide session state. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	state     Snapshot
	pending   int
	tokens    Tokens
	persister Persister
	listeners map[int]func(Snapshot)
	nextID    int
	logger    *slog.Logger
}

// New creates a Store and hydrates the user from persister, if any.
// Hydration never authenticates on its own: that waits for Initialize,
// which checks the token store.
func New(ctx context.Context, tokens Tokens, persister Persister, logger *slog.Logger) *Store {
	s := &Store{
		tokens:    tokens,
		persister: persister,
		listeners: make(map[int]func(Snapshot)),
		logger:    logging.OrDiscard(logger).With("component", "session"),
	}
	if persister != nil {
		m, err := persister.Load(ctx)
		if err != nil {
			s.logger.Warn("hydrate session failed", "error", err)
		} else if m != nil && m.User != nil {
			s.state.User = m.User.Clone()
			s.logger.Debug("session hydrated", "user_id", m.User.ID, "was_authenticated", m.IsAuthenticated)
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := s.state
	snap.User = s.state.User.Clone()
	return snap
}

// Initialize determines whether the session is authenticated. It runs at
// most once; later calls are no-ops. While an auth operation is in flight
// it is also a no-op, and the operation initializes the store when it ends.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.state.IsInitialized {
		s.mu.Unlock()
		return
	}
	if s.pending > 0 {
		s.mu.Unlock()
		s.logger.Debug("initialize deferred, auth operation in flight")
		return
	}
	s.initializeLocked(ctx)
	s.state.IsLoading = false
	s.commit(ctx)
}

// initializeLocked leaves the store uninitialized when the token store
// cannot be read, so the next Initialize retries.
func (s *Store) initializeLocked(ctx context.Context) {
	hasToken, err := s.tokens.Check(ctx)
	if err != nil {
		s.logger.Warn("initialize deferred, token store unreadable", "error", err)
		return
	}
	s.state.IsAuthenticated = hasToken && s.state.User != nil
	s.state.IsInitialized = true
	s.logger.Debug("session initialized", "authenticated", s.state.IsAuthenticated, "has_token", hasToken)
}

// UpdateUser sets the current user and marks the session authenticated.
// Callers persist the token before calling it. A nil user is ignored.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) {
	if user == nil {
		s.logger.Warn("ignoring nil user update")
		return
	}
	s.mu.Lock()
	s.state.User = user.Clone()
	s.state.IsAuthenticated = true
	s.state.Error = ""
	s.commit(ctx)
}

// Logout removes the token from both backends and resets the session. The
// store stays initialized: the session is known to be empty. Local teardown
// completes even when ctx is already cancelled.
func (s *Store) Logout(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.tokens.Remove(ctx)

	s.mu.Lock()
	s.state = Snapshot{IsInitialized: true, IsLoading: s.pending > 0}
	if s.persister != nil {
		if err := s.persister.Clear(ctx); err != nil {
			s.logger.Warn("clear persisted session failed", "error", err)
		}
	}
	s.commit(ctx)
}

// Revalidate drops authentication when the token has disappeared since the
// state was computed, e.g. after the API client saw a 401. A failed read of
// the token store keeps the current state.
func (s *Store) Revalidate(ctx context.Context) Snapshot {
	s.mu.Lock()
	if !s.state.IsAuthenticated {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	hasToken, err := s.tokens.Check(ctx)
	if err != nil || hasToken {
		if err != nil {
			s.logger.Warn("revalidate skipped, token store unreadable", "error", err)
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.logger.Info("token gone, session no longer authenticated")
	s.state.IsAuthenticated = false
	snap := s.snapshotLocked()
	s.commit(ctx)
	return snap
}

// ClearError clears the last error only.
func (s *Store) ClearError(ctx context.Context) {
	s.mu.Lock()
	if s.state.Error == "" {
		s.mu.Unlock()
		return
	}
	s.state.Error = ""
	s.commit(ctx)
}

// SetError records the message of a failed operation.
func (s *Store) SetError(ctx context.Context, msg string) {
	s.mu.Lock()
	s.state.Error = msg
	s.commit(ctx)
}

// BeginOperation marks an auth operation in flight and returns the function
// that ends it. IsLoading stays true until every operation has ended.
func (s *Store) BeginOperation(ctx context.Context) (end func()) {
	s.mu.Lock()
	s.pending++
	s.state.IsLoading = true
	s.commit(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.pending--
			if s.pending == 0 {
				s.state.IsLoading = false
			}
			if !s.state.IsInitialized {
				s.initializeLocked(ctx)
			}
			s.commit(ctx)
		})
	}
}

// Subscribe registers fn to receive a snapshot after every change.
// fn runs outside the store's lock and must not block for long.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// commit persists the mirror, releases the lock and notifies listeners.
// It must be called with s.mu held.
func (s *Store) commit(ctx context.Context) {
	snap := s.snapshotLocked()
	if s.persister != nil && (snap.User != nil || snap.IsAuthenticated) {
		if err := s.persister.Save(context.WithoutCancel(ctx), Mirror{User: snap.User, IsAuthenticated: snap.IsAuthenticated}); err != nil {
			s.logger.Warn("persist session failed", "error", err)
		}
	}
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
