package apiclient

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// TokenSource is the client's view of the token store.
type TokenSource interface {
	Retrieve(ctx context.Context) (string, bool)
	Remove(ctx context.Context)
}

// bearerTransport decorates every outgoing request with the stored bearer
// token and the JSON headers the API expects. A missing token is not an
// error: the request goes out unauthenticated and the server decides.
type bearerTransport struct {
	next   http.RoundTripper
	tokens TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	if tok, ok := t.tokens.Retrieve(r.Context()); ok {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	if r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", "req_"+uuid.New().String()[:8])
	}
	return t.next.RoundTrip(r)
}

// unauthorizedTransport drops the stored token whenever the server answers
// 401, except for the login and register calls: a failed sign-in attempt
// says nothing about a token from a different, still valid session.
// It never touches session state; readers notice the missing token on
// their next check.
type unauthorizedTransport struct {
	next   http.RoundTripper
	tokens TokenSource
	exempt map[string]bool
	logger *slog.Logger
}

func (t *unauthorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusUnauthorized && !t.exempt[req.URL.Path] {
		t.logger.Info("token rejected by server, clearing", "path", req.URL.Path)
		t.tokens.Remove(req.Context())
	}
	return resp, nil
}
