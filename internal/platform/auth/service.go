package auth

import (
	"net/http"
	"strings"
)

// RequireService allows the request only if RequireUser already injected
// role=service into context. Internal endpoints (cascade deletion signals,
// backfills) are called by sibling services with a service token, never by
// end users.
func RequireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if strings.ToLower(strings.TrimSpace(role)) != "service" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
