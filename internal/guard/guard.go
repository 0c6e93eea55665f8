// Package guard decides whether the current session may see a protected
// destination, and where to send it otherwise.
package guard

import (
	"context"
	"log/slog"

	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/session"
	"github.com/me/servicehub/pkg/model"
)

// Navigation destinations.
const (
	LoginPath             = "/login"
	AdminDashboardPath    = "/admin-dashboard"
	ProviderDashboardPath = "/provider-dashboard"
	UserDashboardPath     = "/user-dashboard"
)

// State is the outcome of a guard check.
type State string

const (
	StateChecking        State = "checking"
	StateUnauthenticated State = "unauthenticated"
	StateWrongRole       State = "wrong-role"
	StateEmailUnverified State = "email-unverified"
	StateAuthorized      State = "authorized"
)

// Requirement describes what a protected destination demands. An empty
// Roles list admits any authenticated user.
type Requirement struct {
	Roles                    []model.Role
	RequireEmailVerification bool
}

// Decision is the result of evaluating a Requirement against a session.
// Redirect is set for the states that navigate away.
type Decision struct {
	State    State
	Redirect string
}

// Allowed reports whether the protected content may be shown.
func (d Decision) Allowed() bool { return d.State == StateAuthorized }

// DashboardFor returns the dashboard of role. Unknown roles land on the
// user dashboard.
func DashboardFor(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return AdminDashboardPath
	case model.RoleProvider:
		return ProviderDashboardPath
	default:
		return UserDashboardPath
	}
}

// Dashboards holds the requirement of each dashboard destination. Each one
// admits only its own role; unknown roles count as user, matching
// DashboardFor.
var Dashboards = map[string]Requirement{
	AdminDashboardPath:    {Roles: []model.Role{model.RoleAdmin}, RequireEmailVerification: true},
	ProviderDashboardPath: {Roles: []model.Role{model.RoleProvider}, RequireEmailVerification: true},
	UserDashboardPath:     {Roles: []model.Role{model.RoleUser}, RequireEmailVerification: true},
}

// Evaluate applies req to snap. Checks run in a fixed order: loading,
// authentication, role, email verification.
func Evaluate(snap session.Snapshot, req Requirement) Decision {
	if snap.IsLoading || !snap.IsInitialized {
		return Decision{State: StateChecking}
	}
	if !snap.IsAuthenticated || snap.User == nil {
		return Decision{State: StateUnauthenticated, Redirect: LoginPath}
	}
	if len(req.Roles) > 0 && !snap.User.HasRole(req.Roles...) {
		return Decision{State: StateWrongRole, Redirect: DashboardFor(snap.User.Role)}
	}
	if req.RequireEmailVerification && !snap.User.IsEmailVerified {
		return Decision{State: StateEmailUnverified}
	}
	return Decision{State: StateAuthorized}
}

// Navigator performs the redirects a Decision asks for.
type Navigator interface {
	Navigate(ctx context.Context, to string)
}

// Guard evaluates requirements against a live session store.
type Guard struct {
	session *session.Store
	logger  *slog.Logger
}

// New creates a Guard over sess.
func New(sess *session.Store, logger *slog.Logger) *Guard {
	return &Guard{session: sess, logger: logging.OrDiscard(logger).With("component", "guard")}
}

// Check initializes the session if nobody has yet, drops authentication if
// the token vanished, then evaluates req.
func (g *Guard) Check(ctx context.Context, req Requirement) Decision {
	if !g.session.Snapshot().IsInitialized {
		g.session.Initialize(ctx)
	}
	d := Evaluate(g.session.Revalidate(ctx), req)
	g.logger.Debug("guard check", "state", d.State, "redirect", d.Redirect)
	return d
}

// Enforce runs Check and hands any redirect to nav.
func (g *Guard) Enforce(ctx context.Context, req Requirement, nav Navigator) Decision {
	d := g.Check(ctx, req)
	if d.Redirect != "" && nav != nil {
		nav.Navigate(ctx, d.Redirect)
	}
	return d
}
