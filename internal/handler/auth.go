package handler

import (
	"log/slog"
	"net/http"
)

const adminRealm = `Basic realm="examreader admin", charset="UTF-8"`

// requireAdmin is middleware that checks HTTP basic credentials against the
// stored administrator accounts.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		valid, err := h.store.AuthenticateAdmin(username, password)
		if err != nil {
			slog.Error("admin authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		if !valid {
			slog.Warn("admin login rejected", "username", username, "remote", r.RemoteAddr)
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", adminRealm)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}
