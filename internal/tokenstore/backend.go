package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/me/servicehub/internal/store"
)

const (
	// CookieName is the cookie holding the bearer token.
	CookieName = "token"
	// CookiePath is the path the token cookie is scoped to.
	CookiePath = "/"
	// LocalKey is the durable local storage key mirroring the token.
	LocalKey = "auth_token"
	// DefaultCookieMaxAge is the token cookie lifetime.
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

// Backend is one place a bearer token can live.
// Get reports ok=false when no token is present.
type Backend interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

// CookieBackend keeps the token in a short-lived cookie.
type CookieBackend struct {
	store  store.Store
	maxAge time.Duration
	now    func() time.Time
}

// NewCookieBackend returns a cookie backend over st. A non-positive maxAge
// falls back to DefaultCookieMaxAge.
func NewCookieBackend(st store.Store, maxAge time.Duration) *CookieBackend {
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &CookieBackend{store: st, maxAge: maxAge, now: time.Now}
}

func (b *CookieBackend) Get(ctx context.Context) (string, bool, error) {
	c, err := b.store.GetCookie(ctx, CookieName)
	if err != nil {
		return "", false, err
	}
	if c == nil || c.Value == "" {
		return "", false, nil
	}
	return c.Value, true, nil
}

// Set writes the cookie. The cookie never outlives the token's own exp claim.
func (b *CookieBackend) Set(ctx context.Context, token string) error {
	return b.store.SetCookie(ctx, &store.Cookie{
		Name:      CookieName,
		Value:     token,
		Path:      CookiePath,
		ExpiresAt: b.expiry(token),
	})
}

func (b *CookieBackend) Remove(ctx context.Context) error {
	return b.store.DeleteCookie(ctx, CookieName)
}

func (b *CookieBackend) expiry(token string) time.Time {
	exp := b.now().Add(b.maxAge)
	if tokenExp, ok := TokenExpiry(token); ok && tokenExp.Before(exp) {
		return tokenExp
	}
	return exp
}

// TokenExpiry returns the exp claim of a JWT bearer token. The signature is
// not checked; the server remains the authority on validity. ok is false for
// opaque tokens and JWTs without exp.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// LocalBackend keeps the token in durable local storage.
type LocalBackend struct {
	store store.Store
}

// NewLocalBackend returns a durable backend over st.
func NewLocalBackend(st store.Store) *LocalBackend {
	return &LocalBackend{store: st}
}

func (b *LocalBackend) Get(ctx context.Context) (string, bool, error) {
	v, ok, err := b.store.GetItem(ctx, LocalKey)
	if err != nil || !ok || v == "" {
		return "", false, err
	}
	return v, true, nil
}

func (b *LocalBackend) Set(ctx context.Context, token string) error {
	return b.store.SetItem(ctx, LocalKey, token)
}

func (b *LocalBackend) Remove(ctx context.Context) error {
	return b.store.RemoveItem(ctx, LocalKey)
}

// MemoryBackend holds the token in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	token string
}

func (b *MemoryBackend) Get(context.Context) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, b.token != "", nil
}

func (b *MemoryBackend) Set(_ context.Context, token string) error {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Remove(context.Context) error {
	b.mu.Lock()
	b.token = ""
	b.mu.Unlock()
	return nil
}
