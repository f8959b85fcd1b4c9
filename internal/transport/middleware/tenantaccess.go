package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
	"github.com/courseloom/platform/internal/transport"
)

// RequireTenantAccess resolves the tenant a request targets (body, query,
// header, then URL parameter) and runs the tenant isolation guard against
// the resolved caller. Denials are audited before the response is written.
func RequireTenantAccess(recorder AuditRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				writeTenantError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			target, err := auth.ResolveTargetTenant(r)
			if err != nil {
				writeTenantError(w, http.StatusBadRequest, "malformed tenant id")
				return
			}

			if err := auth.AssertTenantAccess(user.Role, user.TenantID, target); err != nil {
				slog.Warn("cross-tenant access denied",
					"user_id", user.ID,
					"role", user.Role,
					"caller_tenant", user.TenantID,
					"target_tenant", target,
					"path", r.URL.Path)

				entry := audit.Entry{
					UserID:       &user.ID,
					TenantID:     user.TenantID,
					ActorRole:    string(user.Role),
					Action:       "tenant.access.denied",
					ResourceType: "tenant",
					ResourceID:   target,
					Details:      map[string]any{"path": r.URL.Path, "method": r.Method},
					Severity:     audit.SeverityWarn,
				}
				audit.MetaFromRequest(r).Apply(&entry)
				recorder.EmitSync(r.Context(), entry)
				transport.RecordTenantDenial()

				writeTenantError(w, http.StatusForbidden, "Cross-tenant access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeTenantError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
