package http

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the settings store answers, which exercises the
// database connection.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"rejected":       s.limiter.Hits(),
		},
		"requests": s.tracer.TotalRequests(),
	}
	status, code := "ready", http.StatusOK
	if _, err := s.deps.Settings.NotificationsEnabled(ctx, s.deps.NotificationsDefault); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	enabled, err := s.deps.Settings.NotificationsEnabled(r.Context(), s.deps.NotificationsDefault)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) handleSetNotifications(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req notificationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "enabled is required", Field: "enabled"})
		return
	}
	if err := s.deps.Settings.SetNotificationsEnabled(r.Context(), *req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Logger.InfoContext(r.Context(), "Notifications setting changed",
		"enabled", *req.Enabled, "member_id", viewer.MemberID)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}
