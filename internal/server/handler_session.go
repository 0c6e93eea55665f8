package server

import (
	"net/http"

	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/pkg/model"
)

type sessionResponse struct {
	Phase           string      `json:"phase"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	IsLoading       bool        `json:"isLoading"`
	IsInitialized   bool        `json:"isInitialized"`
	Error           string      `json:"error,omitempty"`
	User            *model.User `json:"user,omitempty"`
	Dashboard       string      `json:"dashboard,omitempty"`
}

// handleSession reports the console's session after a guard check, so the
// loading interstitial can poll it.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	d := s.guard.Check(r.Context(), guard.Requirement{})
	snap := s.session.Snapshot()

	resp := sessionResponse{
		Phase:           string(snap.Phase()),
		IsAuthenticated: snap.IsAuthenticated,
		IsLoading:       snap.IsLoading,
		IsInitialized:   snap.IsInitialized,
		Error:           snap.Error,
		User:            snap.User,
	}
	if d.Allowed() && snap.User != nil {
		resp.Dashboard = guard.DashboardFor(snap.User.Role)
	}
	if d.State == guard.StateUnauthenticated {
		w.Header().Set("Location", d.Redirect)
		respondJSON(w, http.StatusUnauthorized, response{Success: false, Message: "Not signed in", Data: resp, RequestID: reqID})
		return
	}
	respondOK(w, reqID, resp)
}
