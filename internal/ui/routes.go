package ui

import (
	"github.com/go-chi/chi/v5"

	"github.com/me/servicehub/internal/guard"
)

var dashboardTitles = map[string]string{
	guard.AdminDashboardPath:    "Admin dashboard",
	guard.ProviderDashboardPath: "Provider dashboard",
	guard.UserDashboardPath:     "Dashboard",
}

// RegisterRoutes registers all console routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	// Public routes.
	r.Get("/", ui.HandleHome)
	r.Get("/login", ui.HandleLogin)
	r.Post("/login", ui.HandleLoginPost)
	r.Get("/register", ui.HandleRegister)
	r.Post("/register", ui.HandleRegisterPost)
	r.Get("/verify-email", ui.HandleVerifyEmail)

	// Session actions. Logout changes state, so it is POST only.
	r.Post("/logout", ui.HandleLogout)
	r.Post("/resend-verification", ui.HandleResendVerification)

	// Protected dashboards.
	for path, req := range guard.Dashboards {
		r.With(ui.Protect(req)).Get(path, ui.HandleDashboard(dashboardTitles[path]))
	}

	r.NotFound(ui.renderNotFound)
}
