package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
	"github.com/courseloom/platform/internal/transport"
)

// AuditRecorder is the slice of the audit emitter middleware denials use.
// Denial rows are written synchronously: rejection and recording must not
// diverge.
type AuditRecorder interface {
	EmitSync(ctx context.Context, entry audit.Entry)
}

// RequirePermissions gates a route on the caller's role holding EVERY listed
// permission. A caller without a resolved identity is evaluated as the
// least-privileged role.
func RequirePermissions(recorder AuditRecorder, permissions ...auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := auth.LeastPrivileged()
			user, ok := auth.UserFromContext(r.Context())
			if ok && user != nil {
				role = user.Role
			}

			if role.HasAllPermissions(permissions...) {
				next.ServeHTTP(w, r)
				return
			}

			required := make([]string, len(permissions))
			for i, p := range permissions {
				required[i] = string(p)
			}

			slog.Warn("access denied: insufficient permissions",
				"role", role,
				"required_permissions", required,
				"path", r.URL.Path)

			entry := audit.Entry{
				Action:       "permission.denied",
				ResourceType: "route",
				Details: map[string]any{
					"required": required,
					"path":     r.URL.Path,
					"method":   r.Method,
				},
				Severity: audit.SeverityWarn,
			}
			if user != nil {
				entry.UserID = &user.ID
				entry.TenantID = user.TenantID
				entry.ActorRole = string(user.Role)
			}
			audit.MetaFromRequest(r).Apply(&entry)
			recorder.EmitSync(r.Context(), entry)
			transport.RecordPermissionDenial()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":    "Forbidden: insufficient permissions",
				"required": required,
			})
		})
	}
}
