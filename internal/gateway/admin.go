package gateway

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tradesim-engine/internal/logger"

	"github.com/pquerna/otp/totp"
)

const adminOTPHeader = "X-Admin-OTP"

// PurgeResponse is returned by DELETE /api/admin/coaching/history.
type PurgeResponse struct {
	Deleted int64     `json:"deleted"`
	Before  time.Time `json:"before"`
}

// requireOTP checks the admin TOTP code. Admin routes are disabled when no
// secret is configured.
func (s *Server) requireOTP(w http.ResponseWriter, r *http.Request) bool {
	if s.adminSecret == "" {
		writeError(w, http.StatusForbidden, "admin endpoints disabled")
		return false
	}
	code := strings.TrimSpace(r.Header.Get(adminOTPHeader))
	if code == "" || !totp.Validate(code, s.adminSecret) {
		writeError(w, http.StatusUnauthorized, "invalid one-time code")
		return false
	}
	return true
}

// handlePurgeHistory deletes journal entries created before ?before=RFC3339.
// Without before, the whole journal is purged.
func (s *Server) handlePurgeHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireOTP(w, r) {
		return
	}

	before := s.now().UTC()
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = t.UTC()
	}

	n, err := s.svc.PurgeHistory(r.Context(), before)
	if err != nil {
		slog.Error("purge coaching history failed",
			append(logger.LogWithTrace(r.Context()), slog.String("error", err.Error()))...)
		writeError(w, http.StatusInternalServerError, "purge failed")
		return
	}

	slog.Info("coaching history purged",
		append(logger.LogWithTrace(r.Context()),
			slog.Int64("deleted", n),
			slog.Time("before", before),
		)...,
	)
	writeJSON(w, http.StatusOK, PurgeResponse{Deleted: n, Before: before})
}
