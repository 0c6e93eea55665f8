// Package app wires the auth and session core together for the servicehub
// binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/servicehub/internal/apiclient"
	"github.com/me/servicehub/internal/auth"
	"github.com/me/servicehub/internal/config"
	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/session"
	"github.com/me/servicehub/internal/store"
	"github.com/me/servicehub/internal/tokenstore"
)

// App holds one process's session and everything it depends on.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   *store.SQLiteStore
	Tokens  *tokenstore.TokenStore
	Client  *apiclient.Client
	Session *session.Store
	Auth    *auth.Service
	Guard   *guard.Guard

	unsubscribe func()
}

// New opens local state and builds the components in dependency order:
// store, token store, API client, session store, auth operations, guard.
// The session is hydrated but not initialized.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...apiclient.Option) (*App, error) {
	logger = logging.OrDiscard(logger)

	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate local state: %w", err)
	}
	if n, err := st.DeleteExpiredCookies(ctx); err != nil {
		logger.Warn("prune expired cookies failed", "error", err)
	} else if n > 0 {
		logger.Debug("pruned expired cookies", "count", n)
	}

	tokens := tokenstore.New(
		tokenstore.NewCookieBackend(st, cfg.TokenMaxAge),
		tokenstore.NewLocalBackend(st),
		logger,
	)

	opts = append([]apiclient.Option{apiclient.WithTimeout(cfg.RequestTimeout)}, opts...)
	client, err := apiclient.New(cfg.APIBaseURL, tokens, logger, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}

	sess := session.New(ctx, tokens, session.NewItemPersister(st), logger)
	unsubscribe := sess.Subscribe(phaseLogger(logger))

	logger.Debug("app ready", "api", cfg.APIBaseURL, "db", dbPath)
	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Tokens:  tokens,
		Client:  client,
		Session: sess,
		Auth:    auth.NewService(client, tokens, sess, logger),
		Guard:   guard.New(sess, logger),

		unsubscribe: unsubscribe,
	}, nil
}

// Close releases local state.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.Store.Close()
}

// phaseLogger returns a session listener that logs each phase transition
// once, with the user it applies to.
func phaseLogger(logger *slog.Logger) func(session.Snapshot) {
	var mu sync.Mutex
	last := session.PhaseUninitialized
	return func(snap session.Snapshot) {
		phase := snap.Phase()
		mu.Lock()
		from := last
		last = phase
		mu.Unlock()
		if phase == from {
			return
		}
		attrs := []any{"from", from, "to", phase}
		if snap.User != nil {
			attrs = append(attrs, "user_id", snap.User.ID, "role", snap.User.Role)
		}
		logger.Info("session phase changed", attrs...)
	}
}
