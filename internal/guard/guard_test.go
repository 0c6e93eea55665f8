package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/servicehub/internal/session"
	"github.com/me/servicehub/internal/tokenstore"
	"github.com/me/servicehub/pkg/model"
)

func ready(u *model.User) session.Snapshot {
	return session.Snapshot{User: u, IsAuthenticated: u != nil, IsInitialized: true}
}

func TestEvaluate(t *testing.T) {
	provider := &model.User{ID: "p", Role: model.RoleProvider, IsEmailVerified: true}
	unverified := &model.User{ID: "u", Role: model.RoleUser}
	admin := &model.User{ID: "a", Role: model.RoleAdmin, IsEmailVerified: true}

	tests := []struct {
		name string
		snap session.Snapshot
		req  Requirement
		want Decision
	}{
		{"uninitialized", session.Snapshot{}, Requirement{}, Decision{State: StateChecking}},
		{"loading", session.Snapshot{IsInitialized: true, IsLoading: true, User: admin, IsAuthenticated: true},
			Requirement{}, Decision{State: StateChecking}},
		{"anonymous", ready(nil), Requirement{}, Decision{State: StateUnauthenticated, Redirect: LoginPath}},
		{"user without auth flag", session.Snapshot{IsInitialized: true, User: admin}, Requirement{},
			Decision{State: StateUnauthenticated, Redirect: LoginPath}},
		{"provider on admin page", ready(provider), Requirement{Roles: []model.Role{model.RoleAdmin}},
			Decision{State: StateWrongRole, Redirect: ProviderDashboardPath}},
		{"admin on admin page", ready(admin), Requirement{Roles: []model.Role{model.RoleAdmin}},
			Decision{State: StateAuthorized}},
		{"any role", ready(provider), Requirement{}, Decision{State: StateAuthorized}},
		{"unverified email", ready(unverified), Requirement{RequireEmailVerification: true},
			Decision{State: StateEmailUnverified}},
		{"unverified email not required", ready(unverified), Requirement{}, Decision{State: StateAuthorized}},
		{"role checked before verification", ready(unverified),
			Requirement{Roles: []model.Role{model.RoleProvider}, RequireEmailVerification: true},
			Decision{State: StateWrongRole, Redirect: UserDashboardPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.snap, tt.req))
		})
	}
}

func TestDashboardFor(t *testing.T) {
	assert.Equal(t, AdminDashboardPath, DashboardFor(model.RoleAdmin))
	assert.Equal(t, ProviderDashboardPath, DashboardFor(model.RoleProvider))
	assert.Equal(t, UserDashboardPath, DashboardFor(model.RoleUser))
	assert.Equal(t, UserDashboardPath, DashboardFor(model.Role("mystery")))
}

type recorder struct{ to []string }

func (r *recorder) Navigate(_ context.Context, to string) { r.to = append(r.to, to) }

func TestGuard_InitializesAndRevalidates(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	sess := session.New(ctx, tokens, nil, nil)
	g := New(sess, nil)

	d := g.Check(ctx, Requirement{})
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.True(t, sess.Snapshot().IsInitialized)

	require.True(t, tokens.Store(ctx, "tok"))
	sess.UpdateUser(ctx, &model.User{ID: "a", Role: model.RoleAdmin})
	assert.True(t, g.Check(ctx, Requirement{Roles: []model.Role{model.RoleAdmin}}).Allowed())

	// A 401 elsewhere removed the token.
	tokens.Remove(ctx)
	nav := &recorder{}
	d = g.Enforce(ctx, Requirement{}, nav)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, []string{LoginPath}, nav.to)
	assert.False(t, sess.Snapshot().IsAuthenticated)
}

func TestGuard_EnforceWithoutRedirect(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	require.True(t, tokens.Store(ctx, "tok"))
	sess := session.New(ctx, tokens, nil, nil)
	sess.UpdateUser(ctx, &model.User{ID: "u", Role: model.RoleUser})

	nav := &recorder{}
	d := New(sess, nil).Enforce(ctx, Requirement{RequireEmailVerification: true}, nav)
	assert.Equal(t, StateEmailUnverified, d.State)
	assert.Empty(t, nav.to)
}

func TestDashboards_RoleRedirectsSettle(t *testing.T) {
	// Following a wrong-role redirect must always land on an allowed page.
	for _, role := range []model.Role{model.RoleAdmin, model.RoleProvider, model.RoleUser, "mystery"} {
		u := &model.User{ID: "x", Role: role, IsEmailVerified: true}
		for path, req := range Dashboards {
			d := Evaluate(ready(u), req)
			if d.State != StateWrongRole {
				continue
			}
			next := Evaluate(ready(u), Dashboards[d.Redirect])
			assert.True(t, next.Allowed(), "role %q: %s -> %s", role, path, d.Redirect)
		}
	}
}

func TestDashboards_EachAdmitsOnlyItsRole(t *testing.T) {
	for _, role := range []model.Role{model.RoleAdmin, model.RoleProvider, model.RoleUser, "mystery"} {
		u := &model.User{ID: "x", Role: role, IsEmailVerified: true}
		home := DashboardFor(role)
		for path, req := range Dashboards {
			d := Evaluate(ready(u), req)
			if path == home {
				assert.True(t, d.Allowed(), "role %q should reach %s", role, path)
				continue
			}
			assert.Equal(t, StateWrongRole, d.State, "role %q reached %s", role, path)
			assert.Equal(t, home, d.Redirect)
		}
	}
}
