package cli

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/pkg/model"
)

func newLoginCmd() *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the marketplace",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if email == "" {
				var err error
				if email, err = prompt(in, out, "Email"); err != nil {
					return err
				}
			}
			pw, err := password(in, out, passwordStdin)
			if err != nil {
				return err
			}

			user, err := application.Auth.Login(cmd.Context(), model.Credentials{Email: email, Password: pw})
			if err != nil {
				return err
			}
			printSignedIn(out, user)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var reg model.Registration
	var role string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a marketplace account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if reg.Name == "" {
				if reg.Name, err = prompt(in, out, "Name"); err != nil {
					return err
				}
			}
			if reg.Email == "" {
				if reg.Email, err = prompt(in, out, "Email"); err != nil {
					return err
				}
			}
			if reg.Password, err = password(in, out, passwordStdin); err != nil {
				return err
			}
			reg.Role = model.Role(role)

			user, err := application.Auth.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			printSignedIn(out, user)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "Display name (prompted if omitted)")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "Phone number, digits only")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "Account type: user or provider")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application.Auth.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newVerifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Redeem an email verification token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application.Session.Initialize(cmd.Context())

			user, err := application.Auth.VerifyEmailToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if user != nil && user.Email != "" {
				fmt.Fprintf(out, "Email %s verified.\n", user.Email)
			} else {
				fmt.Fprintln(out, "Email verified.")
			}
			if snap := application.Session.Snapshot(); !snap.IsAuthenticated {
				fmt.Fprintln(out, "Run `servicehub login` to continue.")
			}
			return nil
		},
	}
}

func newResendVerificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend-verification",
		Short: "Send another verification email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := application.Auth.SendVerificationEmail(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Verification email sent.")
			return nil
		},
	}
}

func printSignedIn(w io.Writer, u *model.User) {
	fmt.Fprintf(w, "Signed in as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
	fmt.Fprintf(w, "Dashboard: %s\n", guard.DashboardFor(u.Role))
	if !u.IsEmailVerified {
		fmt.Fprintln(w, "Your email is not verified yet. Check your inbox or run `servicehub resend-verification`.")
	}
}
