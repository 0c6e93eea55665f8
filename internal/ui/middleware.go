package ui

import (
	"context"
	"net/http"

	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/pkg/model"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the user a Protect middleware admitted.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userContextKey).(*model.User)
	return u
}

// Protect gates next behind req. Visitors who do not meet it get an
// interstitial instead: a loading page while the session settles, a
// redirecting page (with a 303) to login or to their own dashboard, or the
// verify-your-email page.
func (ui *UI) Protect(req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := ui.guard.Check(r.Context(), req)
			switch d.State {
			case guard.StateAuthorized:
				ctx := context.WithValue(r.Context(), userContextKey, ui.session.Snapshot().User)
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.StateChecking:
				ui.renderLoading(w)
			case guard.StateEmailUnverified:
				ui.render(w, http.StatusForbidden, "verify-notice", map[string]any{
					"Title": "Verify your email - ServiceHub",
					"User":  ui.session.Snapshot().User,
				})
			default:
				w.Header().Set("Location", d.Redirect)
				ui.render(w, http.StatusSeeOther, "redirecting", map[string]any{
					"Title":  "Redirecting - ServiceHub",
					"Target": d.Redirect,
				})
			}
		})
	}
}
