package ui

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/me/servicehub/internal/auth"
	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/session"
	"github.com/me/servicehub/pkg/model"
)

// UI serves the local web console.
type UI struct {
	auth      *auth.Service
	session   *session.Store
	guard     *guard.Guard
	logger    *slog.Logger
	startTime time.Time
}

// New creates the web console over the shared session.
func New(authSvc *auth.Service, sess *session.Store, g *guard.Guard, logger *slog.Logger) *UI {
	return &UI{
		auth:      authSvc,
		session:   sess,
		guard:     g,
		logger:    logging.OrDiscard(logger).With("component", "ui"),
		startTime: time.Now(),
	}
}

// HandleHome sends the visitor to their dashboard, or to login.
func (ui *UI) HandleHome(w http.ResponseWriter, r *http.Request) {
	d := ui.guard.Check(r.Context(), guard.Requirement{})
	if d.State == guard.StateChecking {
		ui.renderLoading(w)
		return
	}
	if user := ui.session.Snapshot().User; d.Allowed() && user != nil {
		http.Redirect(w, r, guard.DashboardFor(user.Role), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// HandleLogin renders the login page.
func (ui *UI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if user := ui.signedIn(r); user != nil {
		http.Redirect(w, r, guard.DashboardFor(user.Role), http.StatusSeeOther)
		return
	}

	ui.render(w, http.StatusOK, "login", map[string]any{
		"Title": "Sign in - ServiceHub",
		"Error": r.URL.Query().Get("error"),
		"Email": r.URL.Query().Get("email"),
	})
}

// HandleLoginPost processes the login form.
func (ui *UI) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, guard.LoginPath, "Invalid request", nil)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	user, err := ui.auth.Login(r.Context(), model.Credentials{Email: email, Password: r.FormValue("password")})
	if err != nil {
		ui.logger.Warn("login failed", "email", email, "error", err)
		redirectWithError(w, r, guard.LoginPath, err.Error(), url.Values{"email": {email}})
		return
	}

	http.Redirect(w, r, guard.DashboardFor(user.Role), http.StatusSeeOther)
}

// HandleRegister renders the registration page.
func (ui *UI) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if user := ui.signedIn(r); user != nil {
		http.Redirect(w, r, guard.DashboardFor(user.Role), http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	ui.render(w, http.StatusOK, "register", map[string]any{
		"Title": "Create account - ServiceHub",
		"Error": q.Get("error"),
		"Name":  q.Get("name"),
		"Email": q.Get("email"),
		"Role":  q.Get("role"),
	})
}

// HandleRegisterPost processes the registration form.
func (ui *UI) HandleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "/register", "Invalid request", nil)
		return
	}

	reg := model.Registration{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Phone:    strings.TrimSpace(r.FormValue("phone")),
		Password: r.FormValue("password"),
		Role:     model.Role(r.FormValue("role")),
	}
	user, err := ui.auth.Register(r.Context(), reg)
	if err != nil {
		ui.logger.Warn("registration failed", "email", reg.Email, "error", err)
		redirectWithError(w, r, "/register", err.Error(), url.Values{
			"name":  {reg.Name},
			"email": {reg.Email},
			"role":  {string(reg.Role)},
		})
		return
	}

	http.Redirect(w, r, guard.DashboardFor(user.Role), http.StatusSeeOther)
}

// HandleLogout ends the session and returns to the login page.
func (ui *UI) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ui.auth.Logout(r.Context())
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// HandleVerifyEmail redeems the token from a verification link.
func (ui *UI) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Verify email - ServiceHub"}

	user, err := ui.auth.VerifyEmailToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		data["Error"] = err.Error()
		ui.render(w, http.StatusBadRequest, "verify-result", data)
		return
	}

	data["Verified"] = true
	if snap := ui.session.Snapshot(); snap.IsAuthenticated && snap.User != nil {
		data["User"] = snap.User
		data["Dashboard"] = guard.DashboardFor(snap.User.Role)
	} else if user != nil {
		data["Email"] = user.Email
	}
	ui.render(w, http.StatusOK, "verify-result", data)
}

// HandleResendVerification asks the API to send another verification email
// and shows the verification notice again with the outcome.
func (ui *UI) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title": "Verify your email - ServiceHub",
		"User":  ui.session.Snapshot().User,
	}
	if err := ui.auth.SendVerificationEmail(r.Context()); err != nil {
		data["Error"] = err.Error()
	} else {
		data["Notice"] = "A new verification email is on its way."
	}
	ui.render(w, http.StatusOK, "verify-notice", data)
}

// HandleDashboard renders the dashboard named by title for the user the
// guard let through.
func (ui *UI) HandleDashboard(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		ui.render(w, http.StatusOK, "dashboard", map[string]any{
			"Title":     title + " - ServiceHub",
			"Dashboard": title,
			"User":      user,
			"Uptime":    time.Since(ui.startTime).Round(time.Second).String(),
		})
	}
}

// signedIn returns the current user when the session is authenticated.
func (ui *UI) signedIn(r *http.Request) *model.User {
	d := ui.guard.Check(r.Context(), guard.Requirement{})
	if !d.Allowed() {
		return nil
	}
	return ui.session.Snapshot().User
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, msg string, keep url.Values) {
	q := url.Values{}
	for k, v := range keep {
		q[k] = v
	}
	q.Set("error", msg)
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusSeeOther)
}

func (ui *UI) render(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderLoading(w http.ResponseWriter) {
	w.Header().Set("Refresh", "1")
	ui.render(w, http.StatusOK, "loading", map[string]any{"Title": "Loading - ServiceHub"})
}

func (ui *UI) renderNotFound(w http.ResponseWriter, r *http.Request) {
	ui.render(w, http.StatusNotFound, "error", map[string]any{
		"Title":   "Not Found - ServiceHub",
		"Message": "No page at " + r.URL.Path,
	})
}
