package middleware

import (
	"net/http"

	"hris/internal/transport/http/api"
)

type PermissionChecker interface {
	Allows(roleName, permission string) bool
}

func RequirePermission(permission string, perms PermissionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			if user.TenantID == "" {
				api.Fail(w, http.StatusForbidden, "forbidden", "caller has no tenant", GetRequestID(r.Context()))
				return
			}
			if !perms.Allows(user.RoleName, permission) {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
