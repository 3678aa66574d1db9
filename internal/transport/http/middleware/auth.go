package middleware

import (
	"net/http"
	"strings"

	"hris/internal/domain/auth"
	"hris/internal/transport/http/api"
)

const (
	HeaderAPIKey   = "X-API-Key"
	HeaderTenantID = "X-Tenant-ID"

	serviceUserID = "payroll-service"
)

// Auth attaches the bearer token's claims to the request. Requests without a
// valid token pass through unauthenticated and are refused later by RBAC.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), auth.UserContext{
				UserID:   claims.UserID,
				TenantID: claims.TenantID,
				RoleID:   claims.RoleID,
				RoleName: claims.RoleName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKey authenticates machine payroll callers. A request carrying X-API-Key
// must match the configured bcrypt hash and name its tenant in X-Tenant-ID.
// Requests already authenticated by a bearer token are left alone.
func APIKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := GetUser(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if err := auth.CheckAPIKey(hash, key); err != nil {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "invalid api key", GetRequestID(r.Context()))
				return
			}
			tenantID := strings.TrimSpace(r.Header.Get(HeaderTenantID))
			if tenantID == "" {
				api.Fail(w, http.StatusBadRequest, "tenant_required", HeaderTenantID+" header is required", GetRequestID(r.Context()))
				return
			}
			ctx := WithUser(r.Context(), auth.UserContext{
				UserID:   serviceUserID,
				TenantID: tenantID,
				RoleName: auth.RoleService,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
