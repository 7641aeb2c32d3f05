package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// requireSecret rejects requests whose bearer token does not match the trigger secret.
func (h *Handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			h.logger.Warn("trigger rejected", slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.secret)) == 1
}
