package middleware

import (
	"net/http"

	"github.com/dancetime/booking/internal/session"
)

// LoadIdentity resolves the caller's session once and stores it on the
// request context for handlers and role gates.
func LoadIdentity(m session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := m.Load(r)
			next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole sends anyone whose session lacks role to the login page.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := session.FromContext(r.Context())
			if id.Role != role {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
