package store

import (
	"context"
	"time"
)

// Cookie is a persisted client-side cookie.
type Cookie struct {
	Name      string
	Value     string
	Path      string
	ExpiresAt time.Time
}

// Expired reports whether the cookie has passed its expiry at now.
// A zero expiry never expires.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store is the durable client-side state of servicehub: a key/value area
// (the "local storage" of the client) and a cookie jar.
type Store interface {
	// Local storage
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error

	// Cookies
	GetCookie(ctx context.Context, name string) (*Cookie, error)
	SetCookie(ctx context.Context, c *Cookie) error
	DeleteCookie(ctx context.Context, name string) error
	DeleteExpiredCookies(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
