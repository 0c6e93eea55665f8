package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/me/servicehub/internal/apiclient"
	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/pkg/model"
)

var (
	errNotSignedIn   = errors.New("not signed in: run `servicehub login`")
	errEmailNotReady = errors.New("email not verified: check your inbox or run `servicehub resend-verification`")
)

// redirects records the destinations the guard navigates to.
type redirects struct{ to []string }

func (r *redirects) Navigate(_ context.Context, to string) { r.to = append(r.to, to) }

func newWhoamiCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if d := application.Guard.Check(ctx, guard.Requirement{}); !d.Allowed() {
				return errNotSignedIn
			}

			user := application.Session.Snapshot().User
			if refresh {
				fresh, err := application.Auth.RefreshProfile(ctx)
				if err != nil {
					if apiclient.IsUnauthorized(err) {
						return errNotSignedIn
					}
					return err
				}
				user = fresh
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Reload the profile from the server")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard [admin|provider|user]",
		Short: "Open a dashboard (defaults to your own)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application.Session.Initialize(ctx)

			var path string
			if len(args) == 1 {
				path = "/" + strings.TrimPrefix(strings.TrimSuffix(args[0], "-dashboard"), "/") + "-dashboard"
			} else if u := application.Session.Snapshot().User; u != nil {
				path = guard.DashboardFor(u.Role)
			} else {
				path = guard.UserDashboardPath
			}
			return openDashboard(ctx, cmd.OutOrStdout(), path, true)
		},
	}
}

// openDashboard enforces the dashboard's requirement and prints it. A
// wrong-role redirect is followed once.
func openDashboard(ctx context.Context, w io.Writer, path string, follow bool) error {
	req, ok := guard.Dashboards[path]
	if !ok {
		return fmt.Errorf("unknown dashboard %q", path)
	}

	nav := &redirects{}
	d := application.Guard.Enforce(ctx, req, nav)
	switch d.State {
	case guard.StateAuthorized:
		fmt.Fprintf(w, "== %s ==\n", path)
		printUser(w, application.Session.Snapshot().User)
		return nil
	case guard.StateChecking:
		return errors.New("session is still loading, try again")
	case guard.StateEmailUnverified:
		return errEmailNotReady
	case guard.StateWrongRole:
		fmt.Fprintf(w, "Redirecting to %s\n", nav.to[0])
		if !follow {
			return fmt.Errorf("not allowed to open %s", path)
		}
		return openDashboard(ctx, w, nav.to[0], false)
	default:
		return errNotSignedIn
	}
}

func printUser(w io.Writer, u *model.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
	fmt.Fprintf(tw, "Email verified:\t%t\n", u.IsEmailVerified)
	fmt.Fprintf(tw, "Phone verified:\t%t\n", u.IsPhoneVerified)
	fmt.Fprintf(tw, "Active:\t%t\n", u.IsActive)
	tw.Flush()
}
