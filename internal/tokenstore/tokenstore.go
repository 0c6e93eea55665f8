// Package tokenstore holds the bearer credential in two independent
// backends: a short-lived cookie and durable local storage.
//
// Writes go to both backends and Remove always clears both. Reads prefer the
// cookie and fall back to the durable copy.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/servicehub/internal/logging"
)

// TokenStore combines a cookie backend and a durable backend.
type TokenStore struct {
	cookie  Backend
	durable Backend
	logger  *slog.Logger
}

// New creates a TokenStore. cookie is consulted first on reads.
func New(cookie, durable Backend, logger *slog.Logger) *TokenStore {
	return &TokenStore{
		cookie:  cookie,
		durable: durable,
		logger:  logging.OrDiscard(logger).With("component", "tokenstore"),
	}
}

// NewMemory returns a TokenStore whose backends live in process memory.
func NewMemory() *TokenStore {
	return New(&MemoryBackend{}, &MemoryBackend{}, nil)
}

// Store writes token to both backends and verifies the durable copy by
// reading it back. It returns false when the token could not be persisted.
func (t *TokenStore) Store(ctx context.Context, token string) bool {
	if token == "" {
		t.logger.Warn("refusing to store empty token")
		return false
	}

	if err := t.cookie.Set(ctx, token); err != nil {
		t.logger.Warn("write token cookie failed", "error", err)
	}
	if err := t.durable.Set(ctx, token); err != nil {
		t.logger.Error("write durable token failed", "error", err)
		return false
	}

	got, ok, err := t.durable.Get(ctx)
	if err != nil || !ok || got != token {
		t.logger.Error("token verification failed", "present", ok, "error", err)
		return false
	}

	t.logger.Debug("token stored")
	return true
}

// Retrieve returns the stored token, preferring the cookie backend.
// Backend errors are logged and treated as absence.
func (t *TokenStore) Retrieve(ctx context.Context) (string, bool) {
	tok, ok, _ := t.lookup(ctx)
	return tok, ok
}

// Has reports whether a token is retrievable.
func (t *TokenStore) Has(ctx context.Context) bool {
	_, ok := t.Retrieve(ctx)
	return ok
}

// Check reports whether a token is stored. Unlike Has it returns an error
// when no backend could be read, so callers can tell a failed read apart
// from a missing token.
func (t *TokenStore) Check(ctx context.Context) (bool, error) {
	_, ok, err := t.lookup(ctx)
	return ok, err
}

// lookup reads the cookie first, then the durable copy. Reads are detached
// from ctx cancellation: a caller giving up must not look like a logout.
func (t *TokenStore) lookup(ctx context.Context) (string, bool, error) {
	ctx = context.WithoutCancel(ctx)

	tok, ok, cookieErr := t.cookie.Get(ctx)
	if cookieErr != nil {
		t.logger.Warn("read token cookie failed", "error", cookieErr)
	} else if ok {
		return tok, true, nil
	}

	tok, ok, err := t.durable.Get(ctx)
	if err != nil {
		t.logger.Warn("read durable token failed", "error", err)
		return "", false, fmt.Errorf("read token: %w", errors.Join(cookieErr, err))
	}
	return tok, ok, nil
}

// Remove deletes the token from both backends. It runs to completion even
// when ctx is already cancelled.
func (t *TokenStore) Remove(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := t.cookie.Remove(ctx); err != nil {
		t.logger.Warn("remove token cookie failed", "error", err)
	}
	if err := t.durable.Remove(ctx); err != nil {
		t.logger.Warn("remove durable token failed", "error", err)
	}
	t.logger.Debug("token removed")
}
